package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Mounkaila144/produit-sub000/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestMemoryStore_ExpiryQueries(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	overdue := model.Tenant{ID: uuid.New(), Active: true, ExpiresAt: ptr(now.Add(-time.Hour))}
	boundary := model.Tenant{ID: uuid.New(), Active: true, ExpiresAt: ptr(now)}
	future := model.Tenant{ID: uuid.New(), Active: true, ExpiresAt: ptr(now.Add(48 * time.Hour))}
	inactive := model.Tenant{ID: uuid.New(), ExpiresAt: ptr(now.Add(-time.Hour))}
	open := model.Tenant{ID: uuid.New(), Active: true}
	for _, tn := range []model.Tenant{overdue, boundary, future, inactive, open} {
		s.PutTenant(tn)
	}
	ctx := context.Background()

	got, err := s.ListOverdue(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, overdue.ID, got[0].ID)

	// half-open window
	got, err = s.ListExpiringBetween(ctx, now, now.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, boundary.ID, got[0].ID)

	count, err := s.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestMemoryStore_ExpireTenant(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tenant := model.Tenant{ID: uuid.New(), Active: true, ExpiresAt: ptr(now.Add(-time.Minute))}
	s.PutTenant(tenant)
	ctx := context.Background()

	changed, err := s.ExpireTenant(ctx, tenant.ID, now)
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := s.GetTenant(ctx, tenant.ID.String())
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, model.DisabledExpired, got.DisabledReason)

	changed, err = s.ExpireTenant(ctx, tenant.ID, now)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = s.ExpireTenant(ctx, uuid.New(), now)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestMemoryStore_UserAffiliation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	tenant := model.Tenant{ID: uuid.New(), Active: true}
	s.PutTenant(tenant)

	assert.ErrorIs(t, s.CreateUser(ctx, &model.User{Email: "root@x.test", Role: model.RoleSuperAdmin, TenantID: &tenant.ID}), ErrInvalidUser)
	assert.ErrorIs(t, s.CreateUser(ctx, &model.User{Email: "staff@x.test", Role: model.RoleEditor}), ErrInvalidUser)
	assert.ErrorIs(t, s.CreateUser(ctx, &model.User{Email: "staff@x.test", Role: model.RoleEditor, TenantID: ptr(uuid.New())}), ErrInvalidUser)
	assert.ErrorIs(t, s.CreateUser(ctx, &model.User{Email: "who@x.test", Role: "janitor", TenantID: &tenant.ID}), ErrInvalidUser)

	require.NoError(t, s.CreateUser(ctx, &model.User{Email: "root@x.test", Role: model.RoleSuperAdmin}))
	require.NoError(t, s.CreateUser(ctx, &model.User{Email: "staff@x.test", Role: model.RoleEditor, TenantID: &tenant.ID}))
	assert.ErrorIs(t, s.CreateUser(ctx, &model.User{Email: "staff@x.test", Role: model.RoleEditor, TenantID: &tenant.ID}), ErrConflict)

	users, err := s.ListTenantUsers(ctx, tenant.ID)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "staff@x.test", users[0].Email)
}

func TestMemoryStore_DeleteUserKeepsTenant(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	tenant := &model.Tenant{Domain: "shop.test", Active: true}
	owner := &model.User{Email: "owner@shop.test", Role: model.RoleOwner, IsActive: true}
	require.NoError(t, s.CreateTenantWithOwner(ctx, tenant, owner))

	assert.ErrorIs(t, s.CreateTenantWithOwner(ctx, &model.Tenant{Domain: "shop.test"}, &model.User{Email: "x@shop.test"}), ErrConflict)
	assert.ErrorIs(t, s.DeleteTenant(ctx, tenant.ID.String()), ErrHasDependents)

	require.NoError(t, s.DeleteUser(ctx, owner.ID))
	got, err := s.GetTenant(ctx, tenant.ID.String())
	require.NoError(t, err)
	assert.Nil(t, got.OwnerID)

	require.NoError(t, s.DeleteTenant(ctx, tenant.ID.String()))
	assert.ErrorIs(t, s.DeleteTenant(ctx, tenant.ID.String()), ErrNotFound)
	assert.ErrorIs(t, s.DeleteUser(ctx, owner.ID), ErrNotFound)
}

func TestMemoryStore_UpdateTenant(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	tenant := model.Tenant{ID: uuid.New()}
	s.PutTenant(tenant)

	got, err := s.UpdateTenant(ctx, tenant.ID.String(), func(t *model.Tenant) error {
		t.Active = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, got.Active)

	_, err = s.UpdateTenant(ctx, "not-a-uuid", func(*model.Tenant) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}
