package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/section-queue/internal/model"
	"github.com/iliyamo/section-queue/internal/utils"
)

// MemoryCheckStatusRepo is the in-process check-status ledger.
type MemoryCheckStatusRepo struct {
	mu      sync.RWMutex
	entries map[string]model.CheckStatusEntry
}

func NewMemoryCheckStatusRepo() *MemoryCheckStatusRepo {
	return &MemoryCheckStatusRepo{entries: map[string]model.CheckStatusEntry{}}
}

func (r *MemoryCheckStatusRepo) GetByID(_ context.Context, id string) (*model.CheckStatusEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (r *MemoryCheckStatusRepo) FindByMembership(_ context.Context, membership string) (*model.CheckStatusEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.MembershipNumber == membership {
			return &e, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryCheckStatusRepo) List(_ context.Context) ([]model.CheckStatusEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.CheckStatusEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryCheckStatusRepo) Insert(_ context.Context, e *model.CheckStatusEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[e.ID]; ok {
		return ErrDuplicate
	}
	for _, other := range r.entries {
		if other.MembershipNumber == e.MembershipNumber {
			return ErrDuplicate
		}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.UpdatedAt = e.CreatedAt
	r.entries[e.ID] = *e
	return nil
}

func (r *MemoryCheckStatusRepo) UpdateStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.Status = status
	e.UpdatedAt = time.Now().UTC()
	r.entries[id] = e
	return nil
}

func (r *MemoryCheckStatusRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return ErrNotFound
	}
	delete(r.entries, id)
	return nil
}

// MemorySectionRepo keeps section records; names are unique.
type MemorySectionRepo struct {
	mu       sync.RWMutex
	sections map[string]model.Section
}

func NewMemorySectionRepo() *MemorySectionRepo {
	return &MemorySectionRepo{sections: map[string]model.Section{}}
}

func (r *MemorySectionRepo) nameTaken(name, exceptID string) bool {
	for id, s := range r.sections {
		if id != exceptID && s.Name == name {
			return true
		}
	}
	return false
}

func (r *MemorySectionRepo) Insert(_ context.Context, s *model.Section) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sections[s.ID]; ok || r.nameTaken(s.Name, "") {
		return ErrDuplicate
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	r.sections[s.ID] = *s
	return nil
}

func (r *MemorySectionRepo) GetByID(_ context.Context, id string) (*model.Section, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sections[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *MemorySectionRepo) List(_ context.Context) ([]model.Section, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Section, 0, len(r.sections))
	for _, s := range r.sections {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemorySectionRepo) UpdateName(_ context.Context, id, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sections[id]
	if !ok {
		return ErrNotFound
	}
	if r.nameTaken(name, id) {
		return ErrDuplicate
	}
	s.Name = name
	r.sections[id] = s
	return nil
}

func (r *MemorySectionRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sections[id]; !ok {
		return ErrNotFound
	}
	delete(r.sections, id)
	return nil
}

// MemoryCustomerRepo keeps customer reference data keyed by id.
type MemoryCustomerRepo struct {
	mu        sync.RWMutex
	customers map[string]model.Customer
}

func NewMemoryCustomerRepo() *MemoryCustomerRepo {
	return &MemoryCustomerRepo{customers: map[string]model.Customer{}}
}

func (r *MemoryCustomerRepo) byMembership(no string) (model.Customer, bool) {
	for _, c := range r.customers {
		if c.MembershipNo == no {
			return c, true
		}
	}
	return model.Customer{}, false
}

func (r *MemoryCustomerRepo) GetByID(_ context.Context, id string) (*model.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (r *MemoryCustomerRepo) GetByMembership(_ context.Context, membershipNo string) (*model.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byMembership(membershipNo)
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (r *MemoryCustomerRepo) List(_ context.Context) ([]model.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Customer, 0, len(r.customers))
	for _, c := range r.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MembershipNo < out[j].MembershipNo })
	return out, nil
}

func (r *MemoryCustomerRepo) Insert(_ context.Context, c *model.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.customers[c.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := r.byMembership(c.MembershipNo); ok {
		return ErrDuplicate
	}
	r.customers[c.ID] = *c
	return nil
}

func (r *MemoryCustomerRepo) Update(_ context.Context, c *model.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.customers[c.ID]; !ok {
		return ErrNotFound
	}
	if other, ok := r.byMembership(c.MembershipNo); ok && other.ID != c.ID {
		return ErrDuplicate
	}
	r.customers[c.ID] = *c
	return nil
}

func (r *MemoryCustomerRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.customers[id]; !ok {
		return ErrNotFound
	}
	delete(r.customers, id)
	return nil
}

func (r *MemoryCustomerRepo) UpsertBulk(_ context.Context, customers []model.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range customers {
		if existing, ok := r.byMembership(c.MembershipNo); ok {
			c.ID = existing.ID
		}
		r.customers[c.ID] = c
	}
	return nil
}

// MemoryUserRepo stores staff accounts with sequential ids.
type MemoryUserRepo struct {
	mu     sync.RWMutex
	nextID uint64
	users  map[uint64]model.User
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: map[uint64]model.User{}}
}

func (r *MemoryUserRepo) Create(_ context.Context, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return 0, ErrEmailExists
		}
	}
	r.nextID++
	now := time.Now().UTC()
	r.users[r.nextID] = model.User{
		ID: r.nextID, Email: email, PasswordHash: hash, Role: role,
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	return r.nextID, nil
}

func (r *MemoryUserRepo) GetByEmail(_ context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (r *MemoryUserRepo) GetByID(_ context.Context, id uint64) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

// MemoryTokenRepo holds refresh token hashes.
type MemoryTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]model.RefreshToken
}

func NewMemoryTokenRepo() *MemoryTokenRepo {
	return &MemoryTokenRepo{tokens: map[string]model.RefreshToken{}}
}

func (r *MemoryTokenRepo) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[tokenHash]; ok {
		return ErrDuplicate
	}
	r.tokens[tokenHash] = model.RefreshToken{
		UserID: userID, TokenHash: tokenHash, ExpiresAt: exp, CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (r *MemoryTokenRepo) ValidateRefresh(_ context.Context, tokenHash string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tokenHash]
	if !ok || !t.Live(time.Now().UTC()) {
		return 0, ErrNotFound
	}
	return t.UserID, nil
}

func (r *MemoryTokenRepo) RevokeByHash(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[tokenHash]; ok && t.RevokedAt == nil {
		now := time.Now().UTC()
		t.RevokedAt = &now
		r.tokens[tokenHash] = t
	}
	return nil
}

func (r *MemoryTokenRepo) RevokeAllForUser(_ context.Context, userID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for h, t := range r.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			r.tokens[h] = t
		}
	}
	return nil
}
