package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/section-queue/internal/queue"
	"github.com/iliyamo/section-queue/internal/repository"
)

func TestSectionService_CreateDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sec, err := f.sectionSv.Create(ctx, SectionInput{Name: " Loan "})
	require.NoError(t, err)
	assert.Equal(t, "Loan", sec.Name)
	assert.Equal(t, 1, f.notifier.count(queue.EventSectionAdded))

	_, err = f.sectionSv.Create(ctx, SectionInput{Name: "Loan"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.sectionSv.Create(ctx, SectionInput{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSectionService_RenameMovesTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sec, err := f.sectionSv.Create(ctx, SectionInput{Name: "Loan"})
	require.NoError(t, err)
	f.enqueue(t, "Loan", "A", "B")

	renamed, err := f.sectionSv.Rename(ctx, sec.ID, SectionInput{Name: "Loans"})
	require.NoError(t, err)
	assert.Equal(t, "Loans", renamed.Name)

	order, _, serving := f.snapshot(t, "Loans")
	assert.Equal(t, []string{"A", "B"}, order)
	assert.Equal(t, "A", serving)
	assert.Equal(t, 1, f.notifier.count(queue.EventSectionUpdated))
}

func TestSectionService_RenameRevertedWhenTargetOccupied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sec, err := f.sectionSv.Create(ctx, SectionInput{Name: "Loan"})
	require.NoError(t, err)
	f.enqueue(t, "Loan", "A")
	f.enqueue(t, "Walk-in", "W") // tickets in a section with no record

	_, err = f.sectionSv.Rename(ctx, sec.ID, SectionInput{Name: "Walk-in"})
	assert.ErrorIs(t, err, ErrConflict)

	got, err := f.sections.GetByID(ctx, sec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Loan", got.Name)
	order, _, _ := f.snapshot(t, "Loan")
	assert.Equal(t, []string{"A"}, order)
}

func TestSectionService_RenameToExistingName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.sectionSv.Create(ctx, SectionInput{Name: "Loan"})
	require.NoError(t, err)
	_, err = f.sectionSv.Create(ctx, SectionInput{Name: "Cards"})
	require.NoError(t, err)

	_, err = f.sectionSv.Rename(ctx, a.ID, SectionInput{Name: "Cards"})
	assert.ErrorIs(t, err, ErrSectionExists)
}

func TestSectionService_DeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sec, err := f.sectionSv.Create(ctx, SectionInput{Name: "Loan"})
	require.NoError(t, err)
	f.enqueue(t, "Loan", "A", "B")
	f.enqueue(t, "Cards", "X")

	require.NoError(t, f.sectionSv.Delete(ctx, sec.ID))

	list, err := f.queue.List(ctx, "Loan")
	require.NoError(t, err)
	assert.Empty(t, list)
	all, err := f.queue.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, 1, f.notifier.count(queue.EventSectionDeleted))

	assert.ErrorIs(t, f.sectionSv.Delete(ctx, sec.ID), ErrNotFound)
}

func TestSectionService_DeleteKeepsEverythingWhenSectionBusy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	locker := NewSectionLocker(nil, time.Second, 50*time.Millisecond, zap.NewNop())
	qs := NewQueueStore(f.tickets, locker, f.notifier, zap.NewNop())
	ss := NewSectionService(f.sections, qs, f.notifier, zap.NewNop())

	sec, err := ss.Create(ctx, SectionInput{Name: "Loan"})
	require.NoError(t, err)
	_, err = qs.Enqueue(ctx, EnqueueInput{Section: "Loan", MembershipNumber: "A001"})
	require.NoError(t, err)

	unlock, err := locker.Lock(ctx, "Loan")
	require.NoError(t, err)
	err = ss.Delete(ctx, sec.ID)
	unlock()
	assert.ErrorIs(t, err, ErrLockTimeout)

	_, err = f.sections.GetByID(ctx, sec.ID)
	require.NoError(t, err)
	list, err := qs.List(ctx, "Loan")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Zero(t, f.notifier.count(queue.EventSectionDeleted))
}

// dropFailingTickets fails every section-wide ticket delete.
type dropFailingTickets struct {
	*repository.MemoryTicketRepo
}

func (dropFailingTickets) DeleteBySection(context.Context, string) (int64, error) {
	return 0, errors.New("connection reset")
}

func TestSectionService_DeleteRestoresSectionWhenTicketsStay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	locker := NewSectionLocker(nil, time.Second, time.Second, zap.NewNop())
	qs := NewQueueStore(dropFailingTickets{f.tickets}, locker, f.notifier, zap.NewNop())
	ss := NewSectionService(f.sections, qs, f.notifier, zap.NewNop())

	sec, err := ss.Create(ctx, SectionInput{Name: "Loan"})
	require.NoError(t, err)
	f.enqueue(t, "Loan", "A001")

	err = ss.Delete(ctx, sec.ID)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))

	got, err := f.sections.GetByID(ctx, sec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Loan", got.Name)
	list, err := f.queue.List(ctx, "Loan")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
