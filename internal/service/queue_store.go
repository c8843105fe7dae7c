package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/iliyamo/section-queue/internal/model"
	"github.com/iliyamo/section-queue/internal/queue"
	"github.com/iliyamo/section-queue/internal/repository"
)

// EnqueueInput is the request to add a customer to a section's queue.
type EnqueueInput struct {
	Section          string `json:"section"`
	MembershipNumber string `json:"membership_number"`
}

func (in *EnqueueInput) normalize() error {
	in.Section = strings.TrimSpace(in.Section)
	in.MembershipNumber = strings.TrimSpace(in.MembershipNumber)
	if in.Section == "" {
		return validationError("section is required")
	}
	if in.MembershipNumber == "" {
		return validationError("membership_number is required")
	}
	return nil
}

// QueueStore owns position assignment and ordering of the tickets in each
// section.  Every mutation runs inside the section's critical section and
// publishes a queue-updated event before leaving it, so subscribers see
// the events of one section in commit order.
type QueueStore struct {
	tickets  TicketStore
	locker   *SectionLocker
	notifier Notifier
	logger   *zap.Logger
}

func NewQueueStore(tickets TicketStore, locker *SectionLocker, notifier Notifier, logger *zap.Logger) *QueueStore {
	return &QueueStore{tickets: tickets, locker: locker, notifier: notifier, logger: logger}
}

// Enqueue appends a ticket at position count+1.  A section with no serving
// ticket makes the new ticket the serving one.  The same membership number
// may hold several tickets.
func (s *QueueStore) Enqueue(ctx context.Context, in EnqueueInput) (*model.Ticket, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	unlock, err := s.locker.Lock(ctx, in.Section)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.tickets.ListBySection(ctx, in.Section)
	if err != nil {
		return nil, errors.Wrap(err, "list section tickets")
	}
	t := &model.Ticket{
		ID:               uuid.NewString(),
		MembershipNumber: in.MembershipNumber,
		Section:          in.Section,
		Position:         len(current) + 1,
		IsServing:        servingTicket(current) == nil,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.tickets.Insert(ctx, t); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrConcurrentWrite
		}
		return nil, errors.Wrap(err, "insert ticket")
	}
	s.logger.Info("ticket enqueued",
		zap.String("section", t.Section),
		zap.String("ticket_id", t.ID),
		zap.Int("position", t.Position),
		zap.Bool("serving", t.IsServing))
	s.notifier.Publish(queue.QueueUpdated(t.Section))
	return t, nil
}

// Dequeue removes a ticket and closes the gap: the survivors are renumbered
// 1..N-1 in their existing order within the same batch.  When the removed
// ticket was serving, its successor takes over both its position and the
// serving marker.  It returns the removed ticket.
func (s *QueueStore) Dequeue(ctx context.Context, ticketID string) (*model.Ticket, error) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return nil, validationError("ticket id is required")
	}
	// The ticket's section can change between the lookup and taking the lock
	// (a rename), so the lookup is repeated under the lock.
	for attempt := 0; attempt < 3; attempt++ {
		t, err := s.getTicket(ctx, ticketID)
		if err != nil {
			return nil, err
		}
		removed, retry, err := s.dequeueLocked(ctx, t.Section, ticketID)
		if retry {
			continue
		}
		return removed, err
	}
	return nil, ErrConcurrentWrite
}

func (s *QueueStore) dequeueLocked(ctx context.Context, section, ticketID string) (*model.Ticket, bool, error) {
	unlock, err := s.locker.Lock(ctx, section)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	current, err := s.tickets.ListBySection(ctx, section)
	if err != nil {
		return nil, false, errors.Wrap(err, "list section tickets")
	}
	var (
		removed *model.Ticket
		updates []model.PositionUpdate
		serveID string
	)
	next := 1
	for i := range current {
		t := current[i]
		if t.ID == ticketID {
			removed = &t
			continue
		}
		if removed != nil && removed.IsServing && serveID == "" {
			serveID = t.ID
		}
		if t.Position != next {
			updates = append(updates, model.PositionUpdate{TicketID: t.ID, Position: next})
		}
		next++
	}
	if removed == nil {
		_, err := s.tickets.GetByID(ctx, ticketID)
		switch {
		case err == nil:
			return nil, true, nil
		case errors.Is(err, repository.ErrNotFound):
			return nil, false, ErrTicketNotFound
		}
		return nil, false, errors.Wrap(err, "get ticket")
	}

	if err := s.tickets.DeleteAndRenumber(ctx, removed.ID, updates, serveID); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, false, ErrTicketNotFound
		case errors.Is(err, repository.ErrDuplicate):
			return nil, false, ErrConcurrentWrite
		}
		return nil, false, errors.Wrap(err, "delete and renumber")
	}
	s.logger.Info("ticket dequeued",
		zap.String("section", section),
		zap.String("ticket_id", removed.ID),
		zap.Int("renumbered", len(updates)),
		zap.String("now_serving", serveID))
	s.notifier.Publish(queue.QueueUpdated(section))
	return removed, false, nil
}

func (s *QueueStore) getTicket(ctx context.Context, id string) (*model.Ticket, error) {
	t, err := s.tickets.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get ticket")
	}
	return t, nil
}

// List returns the section's tickets by ascending position; an unknown
// section yields an empty slice.
func (s *QueueStore) List(ctx context.Context, section string) ([]model.Ticket, error) {
	section = strings.TrimSpace(section)
	if section == "" {
		return nil, validationError("section is required")
	}
	out, err := s.tickets.ListBySection(ctx, section)
	if err != nil {
		return nil, errors.Wrap(err, "list section tickets")
	}
	return out, nil
}

// ListAll returns every ticket ordered by section then position.
func (s *QueueStore) ListAll(ctx context.Context) ([]model.Ticket, error) {
	out, err := s.tickets.ListAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list tickets")
	}
	return out, nil
}

// RenameSectionRefs moves every ticket of oldName to newName while holding
// both sections.  Merging into a section that already has tickets would
// clash positions, so it is refused with ErrSectionOccupied.
func (s *QueueStore) RenameSectionRefs(ctx context.Context, oldName, newName string) error {
	oldName, newName = strings.TrimSpace(oldName), strings.TrimSpace(newName)
	if oldName == "" || newName == "" {
		return validationError("old and new section names are required")
	}
	if oldName == newName {
		return nil
	}
	unlock, err := s.locker.LockMany(ctx, oldName, newName)
	if err != nil {
		return err
	}
	defer unlock()

	target, err := s.tickets.ListBySection(ctx, newName)
	if err != nil {
		return errors.Wrap(err, "list section tickets")
	}
	if len(target) > 0 {
		return ErrSectionOccupied
	}
	n, err := s.tickets.RenameSection(ctx, oldName, newName)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrSectionOccupied
		}
		return errors.Wrap(err, "rename section tickets")
	}
	s.logger.Info("section tickets renamed",
		zap.String("from", oldName), zap.String("to", newName), zap.Int64("tickets", n))
	if n > 0 {
		s.notifier.Publish(queue.QueueUpdated(oldName))
		s.notifier.Publish(queue.QueueUpdated(newName))
	}
	return nil
}

// dropSection holds the section's lock, runs before and then deletes the
// section's tickets.  When the lock cannot be taken or before fails, nothing
// is deleted.  undo runs when the ticket delete fails after before succeeded.
func (s *QueueStore) dropSection(ctx context.Context, section string, before, undo func(context.Context) error) (int64, error) {
	unlock, err := s.locker.Lock(ctx, section)
	if err != nil {
		return 0, err
	}
	defer unlock()
	if before != nil {
		if err := before(ctx); err != nil {
			return 0, err
		}
	}
	n, err := s.tickets.DeleteBySection(ctx, section)
	if err != nil {
		if undo != nil {
			if uerr := undo(ctx); uerr != nil {
				s.logger.Error("section drop rollback failed", zap.String("section", section), zap.Error(uerr))
			}
		}
		return 0, errors.Wrap(err, "delete section tickets")
	}
	if n > 0 {
		s.notifier.Publish(queue.QueueUpdated(section))
	}
	return n, nil
}

func servingTicket(tickets []model.Ticket) *model.Ticket {
	for i := range tickets {
		if tickets[i].IsServing {
			return &tickets[i]
		}
	}
	return nil
}
