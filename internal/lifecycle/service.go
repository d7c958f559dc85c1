package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/Mounkaila144/produit-sub000/internal/model"
	"github.com/Mounkaila144/produit-sub000/internal/notify"
	"github.com/Mounkaila144/produit-sub000/internal/repository"
	"github.com/Mounkaila144/produit-sub000/internal/tenancy"
	"github.com/Mounkaila144/produit-sub000/prometheus"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Store is the tenant persistence the lifecycle service mutates
type Store interface {
	GetTenant(ctx context.Context, id string) (*model.Tenant, error)
	ListTenants(ctx context.Context) ([]model.Tenant, error)
	ListOverdue(ctx context.Context, now time.Time) ([]model.Tenant, error)
	ListExpiringBetween(ctx context.Context, from, to time.Time) ([]model.Tenant, error)
	CountActive(ctx context.Context) (int64, error)
	ExpireTenant(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	UpdateTenant(ctx context.Context, id string, mutate func(*model.Tenant) error) (*model.Tenant, error)
	CreateTenantWithOwner(ctx context.Context, tenant *model.Tenant, owner *model.User) error
	DeleteTenant(ctx context.Context, id string) error
	CreateUser(ctx context.Context, user *model.User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// Notifier delivers one lifecycle message
type Notifier interface {
	Notify(ctx context.Context, kind notify.Kind, destination, message string) error
}

// Options tunes the lifecycle service
type Options struct {
	// DefaultTerm is the subscription length granted at provisioning
	DefaultTerm time.Duration
	// RenewalYears is the extension applied when a renewal names no date
	RenewalYears int
	// PasswordMinChars is the minimum owner password length
	PasswordMinChars int
	// Location buckets the staged warnings into calendar days
	Location *time.Location
	// LockTTL bounds how long one replica holds a sweep
	LockTTL time.Duration
}

// Service owns every mutation of tenant lifecycle state
type Service struct {
	store    Store
	notifier Notifier
	coord    Coordinator
	clock    clock.Clock
	opts     Options
	log      *zap.Logger
}

// NewService creates the lifecycle service
func NewService(store Store, notifier Notifier, coord Coordinator, clk clock.Clock, opts Options, log *zap.Logger) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.RenewalYears < 1 {
		opts.RenewalYears = 1
	}
	if opts.DefaultTerm <= 0 {
		opts.DefaultTerm = 365 * 24 * time.Hour
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}
	if opts.PasswordMinChars <= 0 {
		opts.PasswordMinChars = 8
	}
	return &Service{
		store:    store,
		notifier: notifier,
		coord:    coord,
		clock:    clk,
		opts:     opts,
		log:      log,
	}
}

// Get returns one tenant
func (s *Service) Get(ctx context.Context, id string) (*model.Tenant, error) {
	tenant, err := s.store.GetTenant(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, tenancy.ErrTenantNotFound
		}
		return nil, tenancy.Wrap(tenancy.KindInternal, "failed to load tenant", err)
	}
	return tenant, nil
}

// List returns every tenant
func (s *Service) List(ctx context.Context) ([]model.Tenant, error) {
	tenants, err := s.store.ListTenants(ctx)
	if err != nil {
		return nil, tenancy.Wrap(tenancy.KindInternal, "failed to list tenants", err)
	}
	return tenants, nil
}

// Now returns the service clock's current time
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

// ProvisionRequest describes a new storefront and its owner account
type ProvisionRequest struct {
	Name          string
	Domain        string
	PlanType      model.PlanType
	Contact       model.ContactInfo
	OwnerEmail    string
	OwnerPassword string
}

// Provision creates an active tenant expiring after the default term,
// together with its owner user.
func (s *Service) Provision(ctx context.Context, req ProvisionRequest) (*model.Tenant, *model.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Domain = strings.ToLower(strings.TrimSpace(req.Domain))
	req.OwnerEmail = strings.ToLower(strings.TrimSpace(req.OwnerEmail))
	if req.PlanType == "" {
		req.PlanType = model.PlanBasic
	}
	if err := s.validateProvision(req); err != nil {
		prometheus.RecordTenantOperation("provision", "invalid")
		return nil, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.OwnerPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, tenancy.Wrap(tenancy.KindInternal, "failed to hash password", err)
	}

	expiresAt := s.clock.Now().Add(s.opts.DefaultTerm)
	tenant := &model.Tenant{
		Name:      req.Name,
		Domain:    req.Domain,
		Active:    true,
		ExpiresAt: &expiresAt,
		PlanType:  req.PlanType,
		Contact:   req.Contact,
	}
	owner := &model.User{
		Email:        req.OwnerEmail,
		PasswordHash: string(hash),
		Role:         model.RoleOwner,
		IsActive:     true,
	}

	if err := s.store.CreateTenantWithOwner(ctx, tenant, owner); err != nil {
		prometheus.RecordTenantOperation("provision", "failed")
		if errors.Is(err, repository.ErrConflict) {
			return nil, nil, tenancy.NewError(tenancy.KindConflict, "domain or owner email already registered")
		}
		return nil, nil, tenancy.Wrap(tenancy.KindInternal, "failed to provision tenant", err)
	}

	prometheus.RecordTenantOperation("provision", "ok")
	s.log.Info("Tenant provisioned",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("domain", tenant.Domain),
		zap.String("plan", string(tenant.PlanType)),
		zap.Time("expires_at", expiresAt))
	return tenant, owner, nil
}

func (s *Service) validateProvision(req ProvisionRequest) error {
	invalid := func(msg string) error { return tenancy.NewError(tenancy.KindInvalidRequest, msg) }

	if req.Name == "" {
		return invalid("name is required")
	}
	if req.Domain == "" || strings.ContainsAny(req.Domain, " /") {
		return invalid("a valid domain is required")
	}
	if !req.PlanType.Valid() {
		return tenancy.NewError(tenancy.KindInvalidPlan, fmt.Sprintf("unknown plan %q", req.PlanType))
	}
	if _, err := mail.ParseAddress(req.OwnerEmail); err != nil {
		return invalid("a valid owner email is required")
	}
	if len(req.OwnerPassword) < s.opts.PasswordMinChars {
		return invalid(fmt.Sprintf("owner password must have at least %d characters", s.opts.PasswordMinChars))
	}
	if req.Contact.Phone != "" {
		if err := notify.ValidateDestination(req.Contact.Phone); err != nil {
			return invalid("contact phone must look like +<10 to 15 digits>")
		}
	}
	return nil
}

// RenewRequest carries the optional renewal parameters
type RenewRequest struct {
	PlanType  *model.PlanType
	ExpiresAt *time.Time
}

// Renew reactivates a tenant and pushes its expiry forward. An explicit
// ExpiresAt wins; otherwise the expiry moves RenewalYears past the current
// expiry, or past now when the tenant has no expiry or already lapsed.
func (s *Service) Renew(ctx context.Context, id string, req RenewRequest) (*model.Tenant, error) {
	now := s.clock.Now()

	if req.PlanType != nil && !req.PlanType.Valid() {
		prometheus.RecordTenantOperation("renew", "invalid")
		return nil, tenancy.NewError(tenancy.KindInvalidPlan, fmt.Sprintf("unknown plan %q", *req.PlanType))
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		prometheus.RecordTenantOperation("renew", "invalid")
		return nil, tenancy.NewError(tenancy.KindInvalidRenewal, "expires_at must be in the future")
	}

	tenant, err := s.store.UpdateTenant(ctx, id, func(t *model.Tenant) error {
		var next time.Time
		if req.ExpiresAt != nil {
			next = *req.ExpiresAt
		} else {
			base := now
			if t.ExpiresAt != nil && t.ExpiresAt.After(now) {
				base = *t.ExpiresAt
			}
			next = base.AddDate(s.opts.RenewalYears, 0, 0)
		}
		t.ExpiresAt = &next
		t.Active = true
		t.DisabledReason = model.DisabledNone
		if req.PlanType != nil {
			t.PlanType = *req.PlanType
		}
		return nil
	})
	if err != nil {
		prometheus.RecordTenantOperation("renew", "failed")
		if errors.Is(err, repository.ErrNotFound) {
			return nil, tenancy.ErrRenewalTargetNotFound
		}
		return nil, tenancy.Wrap(tenancy.KindInternal, "failed to renew tenant", err)
	}

	prometheus.RecordTenantOperation("renew", "ok")
	s.log.Info("Tenant renewed",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("plan", string(tenant.PlanType)),
		zap.Time("expires_at", *tenant.ExpiresAt))

	_ = s.notify(ctx, notify.KindRenewed, *tenant, renewedMessage(*tenant, s.opts.Location))
	return tenant, nil
}

// Enable sets active=true and clears the disabled reason. Idempotent.
func (s *Service) Enable(ctx context.Context, id string) (*model.Tenant, error) {
	return s.setActive(ctx, id, true)
}

// Disable sets active=false with a manual reason. Idempotent.
func (s *Service) Disable(ctx context.Context, id string) (*model.Tenant, error) {
	return s.setActive(ctx, id, false)
}

func (s *Service) setActive(ctx context.Context, id string, active bool) (*model.Tenant, error) {
	operation := "disable"
	if active {
		operation = "enable"
	}

	tenant, err := s.store.UpdateTenant(ctx, id, func(t *model.Tenant) error {
		t.Active = active
		if active {
			t.DisabledReason = model.DisabledNone
		} else {
			t.DisabledReason = model.DisabledManual
		}
		return nil
	})
	if err != nil {
		prometheus.RecordTenantOperation(operation, "failed")
		if errors.Is(err, repository.ErrNotFound) {
			return nil, tenancy.ErrTenantNotFound
		}
		return nil, tenancy.Wrap(tenancy.KindInternal, "failed to update tenant", err)
	}

	prometheus.RecordTenantOperation(operation, "ok")
	s.log.Info("Tenant "+operation+"d", zap.String("tenant_id", tenant.ID.String()))
	return tenant, nil
}

// Delete removes a tenant that has no users left
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.store.DeleteTenant(ctx, id)
	switch {
	case err == nil:
		prometheus.RecordTenantOperation("delete", "ok")
		s.log.Info("Tenant deleted", zap.String("tenant_id", id))
		return nil
	case errors.Is(err, repository.ErrNotFound):
		prometheus.RecordTenantOperation("delete", "failed")
		return tenancy.ErrTenantNotFound
	case errors.Is(err, repository.ErrHasDependents):
		prometheus.RecordTenantOperation("delete", "rejected")
		return tenancy.NewError(tenancy.KindTenantHasDependents, "tenant still has users, remove them first")
	default:
		prometheus.RecordTenantOperation("delete", "failed")
		return tenancy.Wrap(tenancy.KindInternal, "failed to delete tenant", err)
	}
}

// AddUserRequest describes a platform or tenant account
type AddUserRequest struct {
	Email    string
	Password string
	Role     model.Role
	TenantID *uuid.UUID
}

// AddUser creates an account. Superadmins carry no tenant, every other
// role must name an existing one.
func (s *Service) AddUser(ctx context.Context, req AddUserRequest) (*model.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, tenancy.NewError(tenancy.KindInvalidRequest, "a valid email is required")
	}
	if !req.Role.Valid() {
		return nil, tenancy.NewError(tenancy.KindInvalidRequest, fmt.Sprintf("unknown role %q", req.Role))
	}
	if len(req.Password) < s.opts.PasswordMinChars {
		return nil, tenancy.NewError(tenancy.KindInvalidRequest,
			fmt.Sprintf("password must have at least %d characters", s.opts.PasswordMinChars))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, tenancy.Wrap(tenancy.KindInternal, "failed to hash password", err)
	}
	user := &model.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
		TenantID:     req.TenantID,
		IsActive:     true,
	}

	err = s.store.CreateUser(ctx, user)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrInvalidUser):
		prometheus.RecordTenantOperation("add_user", "invalid")
		if req.Role == model.RoleSuperAdmin {
			return nil, tenancy.NewError(tenancy.KindInvalidRequest, "superadmin accounts cannot belong to a tenant")
		}
		return nil, tenancy.NewError(tenancy.KindInvalidRequest, "tenant_id must reference an existing tenant")
	case errors.Is(err, repository.ErrConflict):
		prometheus.RecordTenantOperation("add_user", "failed")
		return nil, tenancy.NewError(tenancy.KindConflict, "email already registered")
	default:
		prometheus.RecordTenantOperation("add_user", "failed")
		return nil, tenancy.Wrap(tenancy.KindInternal, "failed to create user", err)
	}

	prometheus.RecordTenantOperation("add_user", "ok")
	s.log.Info("User created", zap.String("user_id", user.ID.String()), zap.String("role", string(user.Role)))
	return user, nil
}

// RemoveUser deletes an account and clears it as owner of any tenant
func (s *Service) RemoveUser(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return tenancy.ErrUserNotFound
	}
	if err := s.store.DeleteUser(ctx, uid); err != nil {
		prometheus.RecordTenantOperation("remove_user", "failed")
		if errors.Is(err, repository.ErrNotFound) {
			return tenancy.ErrUserNotFound
		}
		return tenancy.Wrap(tenancy.KindInternal, "failed to delete user", err)
	}
	prometheus.RecordTenantOperation("remove_user", "ok")
	s.log.Info("User deleted", zap.String("user_id", id))
	return nil
}

// notify sends a best-effort message to the tenant contact. Failures are
// logged and returned for bookkeeping only.
func (s *Service) notify(ctx context.Context, kind notify.Kind, t model.Tenant, message string) error {
	err := s.notifier.Notify(ctx, kind, t.Contact.Phone, message)
	if err != nil {
		s.log.Warn("Notification not delivered",
			zap.String("error_kind", string(tenancy.KindNotificationDeliveryFailed)),
			zap.String("kind", string(kind)),
			zap.String("tenant_id", t.ID.String()),
			zap.Error(err))
	}
	return err
}

func (s *Service) refreshActiveGauge(ctx context.Context) {
	count, err := s.store.CountActive(ctx)
	if err != nil {
		s.log.Warn("Failed to count active tenants", zap.Error(err))
		return
	}
	prometheus.UpdateActiveTenants(count)
}

func expiredMessage(t model.Tenant) string {
	return fmt.Sprintf("Your store %s has expired and is now disabled. Renew your subscription to restore access.", t.Name)
}

func warningMessage(t model.Tenant, days int, loc *time.Location) string {
	unit := "days"
	if days == 1 {
		unit = "day"
	}
	return fmt.Sprintf("Your store %s expires in %d %s (%s). Renew now to avoid interruption.",
		t.Name, days, unit, t.ExpiresAt.In(loc).Format("2006-01-02"))
}

func renewedMessage(t model.Tenant, loc *time.Location) string {
	return fmt.Sprintf("Your store %s has been renewed on the %s plan until %s.",
		t.Name, t.PlanType, t.ExpiresAt.In(loc).Format("2006-01-02"))
}
