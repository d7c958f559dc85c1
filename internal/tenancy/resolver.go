package tenancy

import (
	"context"
	"errors"
	"strings"

	"github.com/Mounkaila144/produit-sub000/internal/model"
	"github.com/Mounkaila144/produit-sub000/internal/repository"
	"github.com/benbjohnson/clock"
)

// TenantLookup is the read the resolver performs against the tenant store
type TenantLookup interface {
	GetTenant(ctx context.Context, id string) (*model.Tenant, error)
}

// Resolver decides which tenant a request targets and whether it may operate
type Resolver struct {
	lookup TenantLookup
	clock  clock.Clock
	bypass []string
}

// NewResolver creates a resolver. bypass holds the route prefixes that skip resolution.
func NewResolver(lookup TenantLookup, clk clock.Clock, bypass []string) *Resolver {
	prefixes := make([]string, 0, len(bypass))
	for _, p := range bypass {
		if p = strings.TrimRight(p, "/"); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	return &Resolver{lookup: lookup, clock: clk, bypass: prefixes}
}

// Bypassed reports whether path is exempt from tenant resolution. Prefixes
// match whole path segments, so "/api/superadmin" covers
// "/api/superadmin/tenants" but not "/api/superadmins".
func (r *Resolver) Bypassed(path string) bool {
	for _, p := range r.bypass {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Resolve loads the tenant named by id and checks that it is operable now.
func (r *Resolver) Resolve(ctx context.Context, id string) (*model.Tenant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrMissingTenantIdentifier
	}

	tenant, err := r.lookup.GetTenant(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, Wrap(KindTenantLookupFailed, "tenant lookup failed", err)
	}

	if !tenant.Active {
		return nil, disabledError(tenant.DisabledReason)
	}
	if tenant.Expired(r.clock.Now()) {
		return nil, NewError(KindTenantExpired, "tenant subscription has expired, renew to restore access")
	}
	return tenant, nil
}

func disabledError(reason model.DisabledReason) *Error {
	switch reason {
	case model.DisabledExpired:
		return NewError(KindTenantDisabled, "tenant was disabled after its subscription lapsed, renew to restore access")
	case model.DisabledManual:
		return NewError(KindTenantDisabled, "tenant has been disabled, contact support")
	}
	return ErrTenantDisabled
}
