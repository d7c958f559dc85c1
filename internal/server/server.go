package server

import (
	"context"

	"github.com/Mounkaila144/produit-sub000/internal/handler"
	"github.com/Mounkaila144/produit-sub000/internal/lifecycle"
	"github.com/Mounkaila144/produit-sub000/internal/middleware"
	"github.com/Mounkaila144/produit-sub000/internal/model"
	"github.com/Mounkaila144/produit-sub000/internal/tenancy"
	"github.com/Mounkaila144/produit-sub000/pkg/config"
	"github.com/Mounkaila144/produit-sub000/pkg/jwtutil"
	"github.com/Mounkaila144/produit-sub000/pkg/logger"
	"github.com/Mounkaila144/produit-sub000/pkg/metrics"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// Store is the read side the HTTP layer needs next to the lifecycle service
type Store interface {
	GetTenant(ctx context.Context, id string) (*model.Tenant, error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	ListTenantUsers(ctx context.Context, tenantID uuid.UUID) ([]model.User, error)
}

// Deps are the components the router is built from
type Deps struct {
	Config   *config.Config
	Service  *lifecycle.Service
	Store    Store
	JWT      *jwtutil.JWTUtil
	Clock    clock.Clock
	Registry prometheus.Registerer
}

// New builds the echo instance with every route and middleware wired
func New(d Deps) *echo.Echo {
	if d.Registry == nil {
		d.Registry = prometheus.DefaultRegisterer
	}
	httpMetrics := metrics.NewHTTPMetrics(d.Config.ServiceName, d.Registry)
	resolver := tenancy.NewResolver(d.Store, d.Clock, d.Config.Tenancy.BypassPrefixes)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestIDMiddleware())
	e.Use(logger.Middleware())
	e.Use(httpMetrics.Middleware())

	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(metrics.GetPrometheusHandler()))

	tenants := handler.NewTenantHandler(d.Service, d.Store)
	admin := handler.NewAdminHandler(d.Service)
	auth := middleware.JWTAuthMiddleware(d.JWT, d.Store)

	// Every /api route resolves its tenant unless its prefix is bypassed
	api := e.Group("/api", middleware.TenantMiddleware(resolver, d.Config.Tenancy.HeaderName))

	api.POST("/tenants/register", tenants.Register)
	api.GET("/auth/profile", tenants.Profile, auth)

	scoped := api.Group("/tenant", auth, middleware.MembershipGuard())
	scoped.GET("", tenants.Current)
	scoped.GET("/users", tenants.Users,
		middleware.RequireRole(model.RoleOwner, model.RoleAdmin, model.RoleManager, model.RoleSuperAdmin))

	super := api.Group("/superadmin", auth, middleware.RequireRole(model.RoleSuperAdmin))
	super.GET("/tenants", admin.List)
	super.GET("/tenants/:id", admin.Get)
	super.POST("/tenants/:id/renew", admin.Renew)
	super.POST("/tenants/:id/enable", admin.Enable)
	super.POST("/tenants/:id/disable", admin.Disable)
	super.DELETE("/tenants/:id", admin.Delete)
	super.POST("/users", admin.AddUser)
	super.DELETE("/users/:id", admin.RemoveUser)
	super.POST("/sweeps/:kind", admin.RunSweep)

	return e
}
