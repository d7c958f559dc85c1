package middleware

import (
	"github.com/Mounkaila144/produit-sub000/internal/tenancy"
	"github.com/Mounkaila144/produit-sub000/pkg/logger"
	"github.com/Mounkaila144/produit-sub000/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// TenantMiddleware resolves the tenant named by header on every request
// outside the resolver's bypass prefixes. The resolved tenant is attached to
// the request context; any failure ends the request with its classified error.
func TenantMiddleware(resolver *tenancy.Resolver, header string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if resolver.Bypassed(c.Request().URL.Path) {
				prometheus.RecordResolution("bypassed")
				return next(c)
			}

			log := logger.FromEcho(c)
			tenant, err := resolver.Resolve(c.Request().Context(), c.Request().Header.Get(header))
			if err != nil {
				kind := tenancy.KindOf(err)
				prometheus.RecordResolution(string(kind))
				if kind == tenancy.KindTenantLookupFailed {
					log.Error("Tenant lookup failed", zap.Error(err))
				} else {
					log.Warn("Tenant rejected", zap.String("code", string(kind)), zap.String("path", c.Request().URL.Path))
				}
				return ErrorResponse(c, err)
			}

			prometheus.RecordResolution("resolved")
			tenantLog := log.With(zap.String("tenant_id", tenant.ID.String()))
			c.Set("logger", tenantLog)

			ctx := tenancy.WithTenant(c.Request().Context(), *tenant)
			ctx = logger.WithContext(ctx, tenantLog)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
