package service

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/iliyamo/section-queue/internal/model"
	"github.com/iliyamo/section-queue/internal/queue"
	"github.com/iliyamo/section-queue/internal/repository"
)

// AdvanceResult describes a completed FinishService.  Next is nil when the
// section became idle.
type AdvanceResult struct {
	Section  string        `json:"section"`
	Finished model.Ticket  `json:"finished"`
	Next     *model.Ticket `json:"next"`
}

// ServingAdvancer moves the serving marker within a section.  It only
// toggles is_serving; positions belong to QueueStore.
type ServingAdvancer struct {
	tickets  TicketStore
	locker   *SectionLocker
	notifier Notifier
	logger   *zap.Logger
}

func NewServingAdvancer(tickets TicketStore, locker *SectionLocker, notifier Notifier, logger *zap.Logger) *ServingAdvancer {
	return &ServingAdvancer{tickets: tickets, locker: locker, notifier: notifier, logger: logger}
}

// FinishService ends the current service in section and hands the marker
// to the ticket one position behind, by position rather than by "first
// remaining".  With no serving ticket it fails with ErrNoActiveService and
// changes nothing.
func (a *ServingAdvancer) FinishService(ctx context.Context, section string) (*AdvanceResult, error) {
	section = strings.TrimSpace(section)
	if section == "" {
		return nil, validationError("section is required")
	}
	unlock, err := a.locker.Lock(ctx, section)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := a.tickets.ListBySection(ctx, section)
	if err != nil {
		return nil, errors.Wrap(err, "list section tickets")
	}
	finished := servingTicket(current)
	if finished == nil {
		return nil, ErrNoActiveService
	}
	var next *model.Ticket
	for i := range current {
		if current[i].Position == finished.Position+1 {
			next = &current[i]
			break
		}
	}
	nextID := ""
	if next != nil {
		nextID = next.ID
	}
	if err := a.tickets.HandOverServing(ctx, finished.ID, nextID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrConcurrentWrite
		}
		return nil, errors.Wrap(err, "hand over serving")
	}

	res := &AdvanceResult{Section: section, Finished: *finished}
	res.Finished.IsServing = false
	if next != nil {
		n := *next
		n.IsServing = true
		res.Next = &n
	}
	a.logger.Info("service finished",
		zap.String("section", section),
		zap.String("finished", finished.ID),
		zap.String("next", nextID))
	a.notifier.Publish(queue.QueueUpdated(section))
	return res, nil
}
