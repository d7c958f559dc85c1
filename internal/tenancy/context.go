package tenancy

import (
	"context"

	"github.com/Mounkaila144/produit-sub000/internal/model"
	"github.com/google/uuid"
)

type contextKey int

const (
	tenantKey contextKey = iota
	principalKey
)

// Principal is the authenticated caller as issued by the auth service
type Principal struct {
	UserID   uuid.UUID
	Email    string
	Role     model.Role
	TenantID *uuid.UUID
}

// IsSuperAdmin reports whether the principal has cross-tenant authority
func (p Principal) IsSuperAdmin() bool {
	return p.Role == model.RoleSuperAdmin
}

// WithTenant returns a child context carrying a copy of the resolved tenant
func WithTenant(ctx context.Context, t model.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey, t)
}

// TenantFrom returns the tenant attached by the resolver, if any
func TenantFrom(ctx context.Context) (model.Tenant, bool) {
	t, ok := ctx.Value(tenantKey).(model.Tenant)
	return t, ok
}

// WithPrincipal returns a child context carrying the authenticated principal
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the authenticated principal, if any
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
