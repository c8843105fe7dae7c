// Package service holds the queue engine: position assignment and
// renumbering (QueueStore), serving advancement (ServingAdvancer), the
// check-status ledger, and the section and customer services built around
// them.  Store handles, the section locker and the notifier are constructed
// by the process bootstrap and injected.
package service

import (
	"context"

	"github.com/iliyamo/section-queue/internal/model"
	"github.com/iliyamo/section-queue/internal/queue"
)

// TicketStore is the record store for tickets.  Implementations report
// missing records with repository.ErrNotFound and unique key violations
// with repository.ErrDuplicate.
type TicketStore interface {
	GetByID(ctx context.Context, id string) (*model.Ticket, error)
	FindByMembership(ctx context.Context, membership string) (*model.Ticket, error)
	ListBySection(ctx context.Context, section string) ([]model.Ticket, error)
	ListAll(ctx context.Context) ([]model.Ticket, error)
	Insert(ctx context.Context, t *model.Ticket) error
	DeleteAndRenumber(ctx context.Context, id string, updates []model.PositionUpdate, serveID string) error
	HandOverServing(ctx context.Context, fromID, toID string) error
	RenameSection(ctx context.Context, oldName, newName string) (int64, error)
	DeleteBySection(ctx context.Context, section string) (int64, error)
}

// CheckStatusStore is the record store for check-status entries.
type CheckStatusStore interface {
	GetByID(ctx context.Context, id string) (*model.CheckStatusEntry, error)
	FindByMembership(ctx context.Context, membership string) (*model.CheckStatusEntry, error)
	List(ctx context.Context) ([]model.CheckStatusEntry, error)
	Insert(ctx context.Context, e *model.CheckStatusEntry) error
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
}

// SectionStore is the record store for sections.
type SectionStore interface {
	Insert(ctx context.Context, s *model.Section) error
	GetByID(ctx context.Context, id string) (*model.Section, error)
	List(ctx context.Context) ([]model.Section, error)
	UpdateName(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id string) error
}

// CustomerStore is the record store for customer reference data.
type CustomerStore interface {
	GetByID(ctx context.Context, id string) (*model.Customer, error)
	GetByMembership(ctx context.Context, membershipNo string) (*model.Customer, error)
	List(ctx context.Context) ([]model.Customer, error)
	Insert(ctx context.Context, c *model.Customer) error
	Update(ctx context.Context, c *model.Customer) error
	Delete(ctx context.Context, id string) error
	UpsertBulk(ctx context.Context, customers []model.Customer) error
}

// Notifier receives an event after every committed mutation.  Publish must
// not block and has no failure mode visible to the caller.
type Notifier interface {
	Publish(ev queue.Event)
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) Publish(queue.Event) {}
