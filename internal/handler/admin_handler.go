package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/Mounkaila144/produit-sub000/internal/lifecycle"
	"github.com/Mounkaila144/produit-sub000/internal/middleware"
	"github.com/Mounkaila144/produit-sub000/internal/model"
	"github.com/Mounkaila144/produit-sub000/internal/tenancy"
	"github.com/Mounkaila144/produit-sub000/pkg/logger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AdminHandler serves the platform superadmin routes
type AdminHandler struct {
	svc *lifecycle.Service
}

// NewAdminHandler creates the handler
func NewAdminHandler(svc *lifecycle.Service) *AdminHandler {
	return &AdminHandler{svc: svc}
}

type tenantView struct {
	model.Tenant
	State model.State `json:"state"`
}

func (h *AdminHandler) view(t model.Tenant) tenantView {
	return tenantView{Tenant: t, State: t.State(h.svc.Now())}
}

// List returns every tenant with its derived state
func (h *AdminHandler) List(c echo.Context) error {
	tenants, err := h.svc.List(c.Request().Context())
	if err != nil {
		logger.FromEcho(c).Error("Failed to list tenants", zap.Error(err))
		return middleware.ErrorResponse(c, err)
	}

	views := make([]tenantView, 0, len(tenants))
	for _, t := range tenants {
		views = append(views, h.view(t))
	}
	return c.JSON(http.StatusOK, echo.Map{"tenants": views, "count": len(views)})
}

// Get returns one tenant
func (h *AdminHandler) Get(c echo.Context) error {
	tenant, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, h.view(*tenant))
}

type renewRequest struct {
	PlanType  *model.PlanType `json:"plan_type"`
	ExpiresAt *time.Time      `json:"expires_at"`
}

// Renew reactivates a tenant and extends its subscription
func (h *AdminHandler) Renew(c echo.Context) error {
	log := logger.FromEcho(c)

	var req renewRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("Failed to parse renewal request", zap.Error(err))
		return middleware.ErrorResponse(c, tenancy.NewError(tenancy.KindInvalidRenewal, "invalid renewal request"))
	}

	tenant, err := h.svc.Renew(c.Request().Context(), c.Param("id"), lifecycle.RenewRequest{
		PlanType:  req.PlanType,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		log.Warn("Renewal rejected", zap.String("tenant_id", c.Param("id")), zap.Error(err))
		return middleware.ErrorResponse(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Tenant renewed successfully",
		"tenant":  h.view(*tenant),
	})
}

// Enable sets a tenant active
func (h *AdminHandler) Enable(c echo.Context) error {
	tenant, err := h.svc.Enable(c.Request().Context(), c.Param("id"))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, h.view(*tenant))
}

// Disable sets a tenant inactive
func (h *AdminHandler) Disable(c echo.Context) error {
	tenant, err := h.svc.Disable(c.Request().Context(), c.Param("id"))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, h.view(*tenant))
}

// Delete removes a tenant with no users left
func (h *AdminHandler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type addUserRequest struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
	TenantID *uuid.UUID `json:"tenant_id"`
}

// AddUser creates a platform or tenant account
func (h *AdminHandler) AddUser(c echo.Context) error {
	var req addUserRequest
	if err := c.Bind(&req); err != nil {
		logger.FromEcho(c).Warn("Failed to parse user request", zap.Error(err))
		return middleware.ErrorResponse(c, tenancy.NewError(tenancy.KindInvalidRequest, "invalid user request"))
	}

	user, err := h.svc.AddUser(c.Request().Context(), lifecycle.AddUserRequest{
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		TenantID: req.TenantID,
	})
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, user)
}

// RemoveUser deletes an account
func (h *AdminHandler) RemoveUser(c echo.Context) error {
	if err := h.svc.RemoveUser(c.Request().Context(), c.Param("id")); err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RunSweep triggers one sweep by name and returns its report
func (h *AdminHandler) RunSweep(c echo.Context) error {
	log := logger.FromEcho(c)

	report, err := h.svc.RunSweep(c.Request().Context(), c.Param("kind"))
	if err != nil {
		if errors.Is(err, lifecycle.ErrUnknownSweep) {
			return middleware.ErrorResponse(c, tenancy.NewError(tenancy.KindInvalidRequest, "sweep must be expire or warn"))
		}
		log.Error("Sweep failed", zap.Error(err))
		return middleware.ErrorResponse(c, tenancy.Wrap(tenancy.KindInternal, "sweep failed", err))
	}

	errs := make([]string, 0, len(report.Errors()))
	for _, e := range report.Errors() {
		errs = append(errs, e.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"report": report, "errors": errs})
}
