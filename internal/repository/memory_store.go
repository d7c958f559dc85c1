package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Mounkaila144/produit-sub000/internal/model"
	"github.com/google/uuid"
)

// MemoryStore keeps tenants and users in process. It backs STORE_DRIVER=memory
// for local runs and mirrors the postgres semantics, including the
// conditional expiry write.
type MemoryStore struct {
	mu      sync.Mutex
	tenants map[uuid.UUID]model.Tenant
	users   map[uuid.UUID]model.User
	now     func() time.Time
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants: make(map[uuid.UUID]model.Tenant),
		users:   make(map[uuid.UUID]model.User),
		now:     time.Now,
	}
}

// PutTenant inserts or replaces a tenant as-is
func (s *MemoryStore) PutTenant(t model.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	s.tenants[t.ID] = t
}

// PutUser inserts or replaces a user as-is
func (s *MemoryStore) PutUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	s.users[u.ID] = u
}

func (s *MemoryStore) GetTenant(ctx context.Context, id string) (*model.Tenant, error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[uid]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (s *MemoryStore) ListTenants(ctx context.Context) ([]model.Tenant, error) {
	return s.filter(func(model.Tenant) bool { return true }, func(a, b model.Tenant) bool {
		return a.CreatedAt.Before(b.CreatedAt)
	}), nil
}

func (s *MemoryStore) ListOverdue(ctx context.Context, now time.Time) ([]model.Tenant, error) {
	return s.filter(func(t model.Tenant) bool {
		return t.Active && t.ExpiresAt != nil && t.ExpiresAt.Before(now)
	}, byExpiry), nil
}

func (s *MemoryStore) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]model.Tenant, error) {
	return s.filter(func(t model.Tenant) bool {
		return t.Active && t.ExpiresAt != nil && !t.ExpiresAt.Before(from) && t.ExpiresAt.Before(to)
	}, byExpiry), nil
}

func (s *MemoryStore) CountActive(ctx context.Context) (int64, error) {
	return int64(len(s.filter(func(t model.Tenant) bool { return t.Active }, nil))), nil
}

func (s *MemoryStore) ExpireTenant(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[id]
	if !ok || !t.Active || t.ExpiresAt == nil || !t.ExpiresAt.Before(now) {
		return false, nil
	}
	t.Active = false
	t.DisabledReason = model.DisabledExpired
	t.UpdatedAt = now
	s.tenants[id] = t
	return true, nil
}

func (s *MemoryStore) UpdateTenant(ctx context.Context, id string, mutate func(*model.Tenant) error) (*model.Tenant, error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[uid]
	if !ok {
		return nil, ErrNotFound
	}
	if err := mutate(&t); err != nil {
		return nil, err
	}
	t.UpdatedAt = s.now()
	s.tenants[uid] = t
	return &t, nil
}

func (s *MemoryStore) CreateTenantWithOwner(ctx context.Context, tenant *model.Tenant, owner *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tenants {
		if t.Domain == tenant.Domain {
			return ErrConflict
		}
	}
	for _, u := range s.users {
		if u.Email == owner.Email {
			return ErrConflict
		}
	}

	now := s.now()
	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}
	if owner.ID == uuid.Nil {
		owner.ID = uuid.New()
	}
	owner.TenantID = &tenant.ID
	owner.CreatedAt, owner.UpdatedAt = now, now
	tenant.OwnerID = &owner.ID
	tenant.CreatedAt, tenant.UpdatedAt = now, now

	s.tenants[tenant.ID] = *tenant
	s.users[owner.ID] = *owner
	return nil
}

func (s *MemoryStore) DeleteTenant(ctx context.Context, id string) error {
	uid, err := parseID(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.BelongsTo(uid) {
			return ErrHasDependents
		}
	}
	if _, ok := s.tenants[uid]; !ok {
		return ErrNotFound
	}
	delete(s.tenants, uid)
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) ListTenantUsers(ctx context.Context, tenantID uuid.UUID) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var users []model.User
	for _, u := range s.users {
		if u.BelongsTo(tenantID) {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *model.User) error {
	if err := checkAffiliation(user); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if user.TenantID != nil {
		if _, ok := s.tenants[*user.TenantID]; !ok {
			return ErrInvalidUser
		}
	}
	for _, u := range s.users {
		if u.Email == user.Email {
			return ErrConflict
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	for tid, t := range s.tenants {
		if t.OwnerID != nil && *t.OwnerID == id {
			t.OwnerID = nil
			s.tenants[tid] = t
		}
	}
	delete(s.users, id)
	return nil
}

func (s *MemoryStore) filter(keep func(model.Tenant) bool, less func(a, b model.Tenant) bool) []model.Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Tenant
	for _, t := range s.tenants {
		if keep(t) {
			out = append(out, t)
		}
	}
	if less != nil {
		sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out
}

func byExpiry(a, b model.Tenant) bool {
	return a.ExpiresAt.Before(*b.ExpiresAt)
}
