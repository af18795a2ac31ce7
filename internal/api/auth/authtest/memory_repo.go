// Package authtest provides an in-memory auth.AuthRepo for tests.
package authtest

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/driving-lms-auth/internal/api"
	"github.com/FACorreiaa/driving-lms-auth/internal/api/auth"
	"github.com/FACorreiaa/driving-lms-auth/internal/types"
)

var _ auth.AuthRepo = (*MemoryRepo)(nil)

// MemoryRepo mirrors the constraints of the postgres schema: unique email,
// tenant foreign key and one profile per user.
type MemoryRepo struct {
	mu      sync.RWMutex
	tenants map[string]struct{}
	users   map[uuid.UUID]*types.User
	byEmail map[string]uuid.UUID

	// Calls counts invocations per method name.
	Calls map[string]int
}

func NewMemoryRepo(tenantIDs ...string) *MemoryRepo {
	r := &MemoryRepo{
		tenants: map[string]struct{}{},
		users:   map[uuid.UUID]*types.User{},
		byEmail: map[string]uuid.UUID{},
		Calls:   map[string]int{},
	}
	for _, id := range tenantIDs {
		r.tenants[id] = struct{}{}
	}
	return r
}

func (r *MemoryRepo) AddTenant(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants[id] = struct{}{}
}

// Seed stores u as-is, bypassing signup rules. A zero ID is replaced with a new one.
func (r *MemoryRepo) Seed(u types.User) types.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
		u.UpdatedAt = u.CreatedAt
	}
	stored := clone(&u)
	r.tenants[u.TenantID] = struct{}{}
	r.users[u.ID] = &stored
	r.byEmail[u.Email] = u.ID
	return clone(&stored)
}

// CallCount returns how many times method was invoked.
func (r *MemoryRepo) CallCount(method string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Calls[method]
}

// Stored returns a copy of the raw record, hash included.
func (r *MemoryRepo) Stored(id uuid.UUID) (types.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return types.User{}, false
	}
	return clone(u), true
}

func clone(u *types.User) types.User {
	c := *u
	c.Profile.Settings = maps.Clone(u.Profile.Settings)
	if c.Profile.Settings == nil {
		c.Profile.Settings = map[string]any{}
	}
	return c
}

func (r *MemoryRepo) record(method string) {
	r.Calls[method]++
}

func (r *MemoryRepo) GetUserByEmail(_ context.Context, email string) (*types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("GetUserByEmail")
	id, ok := r.byEmail[email]
	if !ok {
		return nil, api.ErrNotFound
	}
	u := clone(r.users[id])
	return &u, nil
}

func (r *MemoryRepo) GetUserByID(_ context.Context, userID uuid.UUID) (*types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("GetUserByID")
	u, ok := r.users[userID]
	if !ok {
		return nil, api.ErrNotFound
	}
	c := clone(u)
	return &c, nil
}

func (r *MemoryRepo) TenantExists(_ context.Context, tenantID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("TenantExists")
	_, ok := r.tenants[tenantID]
	return ok, nil
}

func (r *MemoryRepo) EmailExists(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("EmailExists")
	_, ok := r.byEmail[email]
	return ok, nil
}

func (r *MemoryRepo) CreateUser(_ context.Context, user *types.User) (*types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("CreateUser")
	if _, ok := r.byEmail[user.Email]; ok {
		return nil, auth.ErrEmailAlreadyExists
	}
	if _, ok := r.tenants[user.TenantID]; !ok {
		return nil, auth.ErrInvalidTenant
	}

	now := time.Now().UTC()
	stored := clone(user)
	stored.ID = uuid.New()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.users[stored.ID] = &stored
	r.byEmail[stored.Email] = stored.ID

	out := clone(&stored)
	return &out, nil
}

func (r *MemoryRepo) mutate(method string, userID uuid.UUID, fn func(u *types.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(method)
	u, ok := r.users[userID]
	if !ok {
		return api.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepo) UpdateLastLogin(_ context.Context, userID uuid.UUID) error {
	return r.mutate("UpdateLastLogin", userID, func(u *types.User) {
		now := time.Now().UTC()
		u.LastLogin = &now
	})
}

func (r *MemoryRepo) UpdateProfile(_ context.Context, userID uuid.UUID, update types.ProfileUpdate) error {
	return r.mutate("UpdateProfile", userID, func(u *types.User) {
		for column, value := range update {
			switch column {
			case "first_name":
				u.Profile.FirstName = value.(string)
			case "last_name":
				u.Profile.LastName = value.(string)
			case "phone":
				u.Profile.Phone = value.(*string)
			case "avatar_url":
				u.Profile.AvatarURL = value.(*string)
			case "settings":
				u.Profile.Settings = maps.Clone(value.(map[string]any))
			}
		}
	})
}

func (r *MemoryRepo) UpdatePassword(_ context.Context, userID uuid.UUID, passwordHash string) error {
	return r.mutate("UpdatePassword", userID, func(u *types.User) {
		u.PasswordHash = passwordHash
	})
}

func (r *MemoryRepo) SetActive(_ context.Context, userID uuid.UUID, active bool) error {
	return r.mutate("SetActive", userID, func(u *types.User) {
		u.IsActive = active
	})
}
