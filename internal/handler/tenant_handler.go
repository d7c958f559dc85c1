package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/Mounkaila144/produit-sub000/internal/lifecycle"
	"github.com/Mounkaila144/produit-sub000/internal/middleware"
	"github.com/Mounkaila144/produit-sub000/internal/model"
	"github.com/Mounkaila144/produit-sub000/internal/repository"
	"github.com/Mounkaila144/produit-sub000/internal/tenancy"
	"github.com/Mounkaila144/produit-sub000/pkg/logger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// UserStore is the user read side the handlers need
type UserStore interface {
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	ListTenantUsers(ctx context.Context, tenantID uuid.UUID) ([]model.User, error)
}

// TenantHandler serves the storefront-facing tenant routes
type TenantHandler struct {
	svc   *lifecycle.Service
	users UserStore
}

// NewTenantHandler creates the handler
func NewTenantHandler(svc *lifecycle.Service, users UserStore) *TenantHandler {
	return &TenantHandler{svc: svc, users: users}
}

type registerRequest struct {
	Name        string            `json:"name"`
	Domain      string            `json:"domain"`
	PlanType    model.PlanType    `json:"plan_type"`
	ContactInfo model.ContactInfo `json:"contact_info"`
	Owner       struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	} `json:"owner"`
}

// Register provisions a new storefront with its owner account
func (h *TenantHandler) Register(c echo.Context) error {
	log := logger.FromEcho(c)

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("Failed to parse registration request", zap.Error(err))
		return middleware.ErrorResponse(c, tenancy.NewError(tenancy.KindInvalidRequest, "invalid request"))
	}

	tenant, owner, err := h.svc.Provision(c.Request().Context(), lifecycle.ProvisionRequest{
		Name:          req.Name,
		Domain:        req.Domain,
		PlanType:      req.PlanType,
		Contact:       req.ContactInfo,
		OwnerEmail:    req.Owner.Email,
		OwnerPassword: req.Owner.Password,
	})
	if err != nil {
		log.Warn("Tenant registration rejected", zap.Error(err))
		return middleware.ErrorResponse(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Tenant registered successfully",
		"tenant":  tenant,
		"owner":   owner,
	})
}

// Current returns the tenant resolved for this request with its derived state
func (h *TenantHandler) Current(c echo.Context) error {
	tenant, ok := tenancy.TenantFrom(c.Request().Context())
	if !ok {
		return middleware.ErrorResponse(c, tenancy.ErrMissingTenantIdentifier)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"tenant": tenant,
		"state":  tenant.State(h.svc.Now()),
	})
}

// Users lists the accounts affiliated with the resolved tenant
func (h *TenantHandler) Users(c echo.Context) error {
	log := logger.FromEcho(c)

	tenant, ok := tenancy.TenantFrom(c.Request().Context())
	if !ok {
		return middleware.ErrorResponse(c, tenancy.ErrMissingTenantIdentifier)
	}

	users, err := h.users.ListTenantUsers(c.Request().Context(), tenant.ID)
	if err != nil {
		log.Error("Failed to list tenant users", zap.Error(err))
		return middleware.ErrorResponse(c, tenancy.Wrap(tenancy.KindInternal, "failed to list users", err))
	}
	if users == nil {
		users = []model.User{}
	}

	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

// Profile returns the authenticated user and, when affiliated, its tenant
func (h *TenantHandler) Profile(c echo.Context) error {
	log := logger.FromEcho(c)

	principal, ok := tenancy.PrincipalFrom(c.Request().Context())
	if !ok {
		return middleware.ErrorResponse(c, tenancy.ErrUnauthenticated)
	}

	user, err := h.users.GetUser(c.Request().Context(), principal.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return middleware.ErrorResponse(c, tenancy.ErrUnauthenticated)
		}
		log.Error("Failed to load profile", zap.Error(err))
		return middleware.ErrorResponse(c, tenancy.Wrap(tenancy.KindInternal, "failed to load profile", err))
	}

	resp := echo.Map{"user": user}
	if user.TenantID != nil {
		tenant, err := h.svc.Get(c.Request().Context(), user.TenantID.String())
		if err != nil {
			// profiles stay readable while the tenant is gone or unavailable
			log.Warn("Failed to load profile tenant", zap.Error(err))
		} else {
			resp["tenant"] = tenant
			resp["tenant_state"] = tenant.State(h.svc.Now())
		}
	}
	return c.JSON(http.StatusOK, resp)
}
