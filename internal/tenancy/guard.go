package tenancy

import (
	"github.com/Mounkaila144/produit-sub000/internal/model"
)

// CheckMembership gates a principal against the resolved tenant. Superadmins
// pass for any tenant; everyone else must be affiliated with it.
func CheckMembership(p Principal, t model.Tenant) error {
	if p.IsSuperAdmin() {
		return nil
	}
	if p.TenantID == nil || *p.TenantID != t.ID {
		return ErrCrossTenantAccess
	}
	return nil
}

// RequireRole passes when the principal holds one of roles
func RequireRole(p Principal, roles ...model.Role) error {
	for _, r := range roles {
		if p.Role == r {
			return nil
		}
	}
	return ErrInsufficientRole
}
