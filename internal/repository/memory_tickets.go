package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/section-queue/internal/model"
)

// MemoryTicketRepo keeps tickets in process memory when the DB is disabled.
// It enforces the same (section, position) uniqueness as the MySQL schema
// and applies batches all-or-nothing.
type MemoryTicketRepo struct {
	mu      sync.RWMutex
	tickets map[string]model.Ticket
}

func NewMemoryTicketRepo() *MemoryTicketRepo {
	return &MemoryTicketRepo{tickets: map[string]model.Ticket{}}
}

func (r *MemoryTicketRepo) GetByID(_ context.Context, id string) (*model.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (r *MemoryTicketRepo) FindByMembership(_ context.Context, membership string) (*model.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *model.Ticket
	for _, t := range r.tickets {
		if t.MembershipNumber != membership {
			continue
		}
		if found == nil || t.CreatedAt.Before(found.CreatedAt) ||
			(t.CreatedAt.Equal(found.CreatedAt) && t.ID < found.ID) {
			t := t
			found = &t
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (r *MemoryTicketRepo) ListBySection(_ context.Context, section string) ([]model.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []model.Ticket{}
	for _, t := range r.tickets {
		if t.Section == section {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *MemoryTicketRepo) ListAll(_ context.Context) ([]model.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Ticket, 0, len(r.tickets))
	for _, t := range r.tickets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Section != out[j].Section {
			return out[i].Section < out[j].Section
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (r *MemoryTicketRepo) Insert(_ context.Context, t *model.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[t.ID]; ok {
		return ErrDuplicate
	}
	for _, other := range r.tickets {
		if other.Section == t.Section && other.Position == t.Position {
			return ErrDuplicate
		}
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	r.tickets[t.ID] = *t
	return nil
}

func (r *MemoryTicketRepo) DeleteAndRenumber(_ context.Context, id string, updates []model.PositionUpdate, serveID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed, ok := r.tickets[id]
	if !ok {
		return ErrNotFound
	}
	next := make(map[string]model.Ticket, len(updates)+1)
	for _, u := range updates {
		t, ok := r.tickets[u.TicketID]
		if !ok || u.TicketID == id {
			return ErrNotFound
		}
		t.Position = u.Position
		next[t.ID] = t
	}
	if serveID != "" {
		t, ok := next[serveID]
		if !ok {
			if t, ok = r.tickets[serveID]; !ok || serveID == id {
				return ErrNotFound
			}
		}
		t.IsServing = true
		next[serveID] = t
	}
	if !r.positionsUnique(removed.Section, id, next) {
		return ErrDuplicate
	}
	delete(r.tickets, id)
	for tid, t := range next {
		r.tickets[tid] = t
	}
	return nil
}

// positionsUnique checks the section as it would look with skip removed and
// the pending changes applied.
func (r *MemoryTicketRepo) positionsUnique(section, skip string, pending map[string]model.Ticket) bool {
	seen := map[int]bool{}
	for tid, t := range r.tickets {
		if tid == skip {
			continue
		}
		if p, ok := pending[tid]; ok {
			t = p
		}
		if t.Section != section {
			continue
		}
		if seen[t.Position] {
			return false
		}
		seen[t.Position] = true
	}
	return true
}

func (r *MemoryTicketRepo) HandOverServing(_ context.Context, fromID, toID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	from, ok := r.tickets[fromID]
	if !ok || !from.IsServing {
		return ErrNotFound
	}
	var to model.Ticket
	if toID != "" {
		if to, ok = r.tickets[toID]; !ok {
			return ErrNotFound
		}
	}
	from.IsServing = false
	r.tickets[fromID] = from
	if toID != "" {
		to.IsServing = true
		r.tickets[toID] = to
	}
	return nil
}

func (r *MemoryTicketRepo) RenameSection(_ context.Context, oldName, newName string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	taken := map[int]bool{}
	for _, t := range r.tickets {
		if t.Section == newName {
			taken[t.Position] = true
		}
	}
	var ids []string
	for id, t := range r.tickets {
		if t.Section != oldName {
			continue
		}
		if taken[t.Position] {
			return 0, ErrDuplicate
		}
		ids = append(ids, id)
	}
	for _, id := range ids {
		t := r.tickets[id]
		t.Section = newName
		r.tickets[id] = t
	}
	return int64(len(ids)), nil
}

func (r *MemoryTicketRepo) DeleteBySection(_ context.Context, section string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.tickets {
		if t.Section == section {
			delete(r.tickets, id)
			n++
		}
	}
	return n, nil
}
