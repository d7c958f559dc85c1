package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Mounkaila144/produit-sub000/internal/model"
	"github.com/Mounkaila144/produit-sub000/pkg/database"
	"github.com/Mounkaila144/produit-sub000/prometheus"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresStore persists tenants and users through gorm
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore creates a store over an initialized gorm connection
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates or updates the tenants and users tables
func (s *PostgresStore) Migrate() error {
	return database.MigrateModels(s.db, &model.Tenant{}, &model.User{})
}

// GetTenant loads a tenant by its identifier, looked up verbatim
func (s *PostgresStore) GetTenant(ctx context.Context, id string) (*model.Tenant, error) {
	defer prometheus.TrackDBOperation("tenant_get")(time.Now())

	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var tenant model.Tenant
	if err := s.db.WithContext(ctx).Where("id = ?", uid).First(&tenant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &tenant, nil
}

// ListTenants returns every tenant ordered by creation time
func (s *PostgresStore) ListTenants(ctx context.Context) ([]model.Tenant, error) {
	defer prometheus.TrackDBOperation("tenant_list")(time.Now())

	var tenants []model.Tenant
	if err := s.db.WithContext(ctx).Order("created_at").Find(&tenants).Error; err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}

// ListOverdue selects active tenants whose expiry lies before now
func (s *PostgresStore) ListOverdue(ctx context.Context, now time.Time) ([]model.Tenant, error) {
	defer prometheus.TrackDBOperation("tenant_list_overdue")(time.Now())

	var tenants []model.Tenant
	err := s.db.WithContext(ctx).
		Where("active = ? AND expires_at IS NOT NULL AND expires_at < ?", true, now).
		Order("expires_at").
		Find(&tenants).Error
	if err != nil {
		return nil, fmt.Errorf("list overdue tenants: %w", err)
	}
	return tenants, nil
}

// ListExpiringBetween selects active tenants with from <= expires_at < to
func (s *PostgresStore) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]model.Tenant, error) {
	defer prometheus.TrackDBOperation("tenant_list_expiring")(time.Now())

	var tenants []model.Tenant
	err := s.db.WithContext(ctx).
		Where("active = ? AND expires_at >= ? AND expires_at < ?", true, from, to).
		Order("expires_at").
		Find(&tenants).Error
	if err != nil {
		return nil, fmt.Errorf("list expiring tenants: %w", err)
	}
	return tenants, nil
}

// CountActive counts tenants with active=true
func (s *PostgresStore) CountActive(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Tenant{}).Where("active = ?", true).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count active tenants: %w", err)
	}
	return count, nil
}

// ExpireTenant disables the tenant only if it still matches the overdue
// predicate at write time. It reports false when a concurrent renewal got there first.
func (s *PostgresStore) ExpireTenant(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	defer prometheus.TrackDBOperation("tenant_expire")(time.Now())

	res := s.db.WithContext(ctx).Model(&model.Tenant{}).
		Where("id = ? AND active = ? AND expires_at < ?", id, true, now).
		Updates(map[string]interface{}{
			"active":          false,
			"disabled_reason": model.DisabledExpired,
			"updated_at":      now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("expire tenant %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// UpdateTenant applies mutate to the locked row and saves it in one transaction
func (s *PostgresStore) UpdateTenant(ctx context.Context, id string, mutate func(*model.Tenant) error) (*model.Tenant, error) {
	defer prometheus.TrackDBOperation("tenant_update")(time.Now())

	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var tenant model.Tenant
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", uid).First(&tenant).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := mutate(&tenant); err != nil {
			return err
		}
		return tx.Save(&tenant).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update tenant %s: %w", id, err)
	}
	return &tenant, nil
}

// CreateTenantWithOwner inserts the tenant, its owner user and the owner back-reference atomically
func (s *PostgresStore) CreateTenantWithOwner(ctx context.Context, tenant *model.Tenant, owner *model.User) error {
	defer prometheus.TrackDBOperation("tenant_create")(time.Now())

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(tenant).Error; err != nil {
			return err
		}
		owner.TenantID = &tenant.ID
		if err := tx.Create(owner).Error; err != nil {
			return err
		}
		tenant.OwnerID = &owner.ID
		return tx.Model(tenant).Update("owner_id", owner.ID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

// DeleteTenant removes a tenant that no user references any more
func (s *PostgresStore) DeleteTenant(ctx context.Context, id string) error {
	uid, err := parseID(id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var users int64
		if err := tx.Model(&model.User{}).Where("tenant_id = ?", uid).Count(&users).Error; err != nil {
			return fmt.Errorf("count tenant users: %w", err)
		}
		if users > 0 {
			return ErrHasDependents
		}
		res := tx.Where("id = ?", uid).Delete(&model.Tenant{})
		if res.Error != nil {
			return fmt.Errorf("delete tenant: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// GetUser loads a user by id
func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// ListTenantUsers returns the users affiliated with a tenant
func (s *PostgresStore) ListTenantUsers(ctx context.Context, tenantID uuid.UUID) ([]model.User, error) {
	var users []model.User
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("created_at").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list tenant users: %w", err)
	}
	return users, nil
}

// CreateUser inserts a user after checking its tenant affiliation
func (s *PostgresStore) CreateUser(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkAffiliation(user); err != nil {
			return err
		}
		if user.TenantID != nil {
			var count int64
			if err := tx.Model(&model.Tenant{}).Where("id = ?", *user.TenantID).Count(&count).Error; err != nil {
				return fmt.Errorf("check user tenant: %w", err)
			}
			if count == 0 {
				return ErrInvalidUser
			}
		}
		if err := tx.Create(user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrConflict
			}
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
}

// DeleteUser removes a user and clears any tenant owner reference to it.
// The tenant itself is never deleted.
func (s *PostgresStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Tenant{}).Where("owner_id = ?", id).Update("owner_id", nil).Error; err != nil {
			return fmt.Errorf("clear tenant owner: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&model.User{})
		if res.Error != nil {
			return fmt.Errorf("delete user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func checkAffiliation(user *model.User) error {
	if !user.Role.Valid() {
		return ErrInvalidUser
	}
	if user.Role == model.RoleSuperAdmin {
		if user.TenantID != nil {
			return ErrInvalidUser
		}
		return nil
	}
	if user.TenantID == nil {
		return ErrInvalidUser
	}
	return nil
}
