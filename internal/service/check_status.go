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

// AddEntryInput is the request to move a queued member into the
// check-status ledger.
type AddEntryInput struct {
	MembershipNumber string `json:"membership_number"`
}

// CheckStatusLedger runs the post-service verification workflow:
// pending → ready → collected (deleted).  It reads tickets and customers
// but never mutates them.
type CheckStatusLedger struct {
	entries   CheckStatusStore
	tickets   TicketStore
	customers CustomerStore
	notifier  Notifier
	logger    *zap.Logger
}

// NewCheckStatusLedger wires the ledger.  customers may be nil, in which
// case entries carry no display details.
func NewCheckStatusLedger(entries CheckStatusStore, tickets TicketStore, customers CustomerStore, notifier Notifier, logger *zap.Logger) *CheckStatusLedger {
	return &CheckStatusLedger{entries: entries, tickets: tickets, customers: customers, notifier: notifier, logger: logger}
}

// AddEntry creates a pending entry for a member that holds a ticket in any
// section.  A second entry for the same membership number is refused with
// ErrEntryExists; the store's unique key makes that hold under concurrent
// calls.
func (l *CheckStatusLedger) AddEntry(ctx context.Context, in AddEntryInput) (*model.CheckStatusEntry, error) {
	membership := strings.TrimSpace(in.MembershipNumber)
	if membership == "" {
		return nil, validationError("membership_number is required")
	}
	t, err := l.tickets.FindByMembership(ctx, membership)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrMemberNotQueued
	}
	if err != nil {
		return nil, errors.Wrap(err, "find ticket by membership")
	}
	if _, err := l.entries.FindByMembership(ctx, membership); err == nil {
		return nil, ErrEntryExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, errors.Wrap(err, "find check-status entry")
	}

	e := &model.CheckStatusEntry{
		ID:               uuid.NewString(),
		MembershipNumber: t.MembershipNumber,
		Section:          t.Section,
		Status:           model.CheckStatusPending,
		CreatedAt:        time.Now().UTC(),
	}
	l.fillDisplay(ctx, e)
	if err := l.entries.Insert(ctx, e); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEntryExists
		}
		return nil, errors.Wrap(err, "insert check-status entry")
	}
	l.logger.Info("check-status entry added",
		zap.String("entry_id", e.ID), zap.String("section", e.Section))
	l.notifier.Publish(queue.CheckStatusUpdated())
	return e, nil
}

// fillDisplay copies name, designation and hospital from the customer
// record.  A missing record leaves them empty.
func (l *CheckStatusLedger) fillDisplay(ctx context.Context, e *model.CheckStatusEntry) {
	if l.customers == nil {
		return
	}
	c, err := l.customers.GetByMembership(ctx, e.MembershipNumber)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			l.logger.Warn("customer lookup failed", zap.String("membership", e.MembershipNumber), zap.Error(err))
		}
		return
	}
	e.Name, e.Designation, e.Hospital = c.Name, c.Designation, c.Hospital
}

// MarkReady moves an entry to ready.  Calling it on an entry that is
// already ready succeeds without a second event.
func (l *CheckStatusLedger) MarkReady(ctx context.Context, entryID string) (*model.CheckStatusEntry, error) {
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return nil, validationError("entry id is required")
	}
	e, err := l.getEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if e.IsReady() {
		return e, nil
	}
	if err := l.entries.UpdateStatus(ctx, entryID, model.CheckStatusReady); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, errors.Wrap(err, "update check-status entry")
	}
	e.Status = model.CheckStatusReady
	e.UpdatedAt = time.Now().UTC()
	l.logger.Info("check-status entry ready", zap.String("entry_id", e.ID))
	l.notifier.Publish(queue.CheckStatusUpdated())
	return e, nil
}

// Collect deletes the entry.  ErrEntryNotFound tells the caller nothing
// was deleted.
func (l *CheckStatusLedger) Collect(ctx context.Context, entryID string) error {
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return validationError("entry id is required")
	}
	if err := l.entries.Delete(ctx, entryID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrEntryNotFound
		}
		return errors.Wrap(err, "delete check-status entry")
	}
	l.logger.Info("check-status entry collected", zap.String("entry_id", entryID))
	l.notifier.Publish(queue.CheckStatusUpdated())
	return nil
}

// List returns all entries in creation order.
func (l *CheckStatusLedger) List(ctx context.Context) ([]model.CheckStatusEntry, error) {
	out, err := l.entries.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list check-status entries")
	}
	return out, nil
}

func (l *CheckStatusLedger) getEntry(ctx context.Context, id string) (*model.CheckStatusEntry, error) {
	e, err := l.entries.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get check-status entry")
	}
	return e, nil
}
