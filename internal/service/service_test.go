package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/section-queue/internal/model"
	"github.com/iliyamo/section-queue/internal/queue"
	"github.com/iliyamo/section-queue/internal/repository"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []queue.Event
}

func (n *recordingNotifier) Publish(ev queue.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) names() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Name)
	}
	return out
}

func (n *recordingNotifier) count(name string) int {
	c := 0
	for _, got := range n.names() {
		if got == name {
			c++
		}
	}
	return c
}

type fixture struct {
	tickets   *repository.MemoryTicketRepo
	entries   *repository.MemoryCheckStatusRepo
	sections  *repository.MemorySectionRepo
	customers *repository.MemoryCustomerRepo
	notifier  *recordingNotifier

	queue     *QueueStore
	advancer  *ServingAdvancer
	ledger    *CheckStatusLedger
	sectionSv *SectionService
	customerS *CustomerService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	f := &fixture{
		tickets:   repository.NewMemoryTicketRepo(),
		entries:   repository.NewMemoryCheckStatusRepo(),
		sections:  repository.NewMemorySectionRepo(),
		customers: repository.NewMemoryCustomerRepo(),
		notifier:  &recordingNotifier{},
	}
	locker := NewSectionLocker(nil, time.Second, 5*time.Second, logger)
	f.queue = NewQueueStore(f.tickets, locker, f.notifier, logger)
	f.advancer = NewServingAdvancer(f.tickets, locker, f.notifier, logger)
	f.ledger = NewCheckStatusLedger(f.entries, f.tickets, f.customers, f.notifier, logger)
	f.sectionSv = NewSectionService(f.sections, f.queue, f.notifier, logger)
	f.customerS = NewCustomerService(f.customers, f.notifier, logger)
	return f
}

func (f *fixture) enqueue(t *testing.T, section string, members ...string) []*model.Ticket {
	t.Helper()
	out := make([]*model.Ticket, 0, len(members))
	for _, m := range members {
		tk, err := f.queue.Enqueue(context.Background(), EnqueueInput{Section: section, MembershipNumber: m})
		require.NoError(t, err)
		out = append(out, tk)
	}
	return out
}

// snapshot returns membership→position and the serving membership.
func (f *fixture) snapshot(t *testing.T, section string) ([]string, map[string]int, string) {
	t.Helper()
	list, err := f.queue.List(context.Background(), section)
	require.NoError(t, err)
	order := make([]string, 0, len(list))
	pos := map[string]int{}
	serving := ""
	for _, tk := range list {
		order = append(order, tk.MembershipNumber)
		pos[tk.MembershipNumber] = tk.Position
		if tk.IsServing {
			require.Empty(t, serving, "two serving tickets in %s", section)
			serving = tk.MembershipNumber
		}
	}
	return order, pos, serving
}

func requireContiguous(t *testing.T, list []model.Ticket) {
	t.Helper()
	for i, tk := range list {
		require.Equal(t, i+1, tk.Position, "ticket %s", tk.MembershipNumber)
	}
}
