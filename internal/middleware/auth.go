package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/Mounkaila144/produit-sub000/internal/model"
	"github.com/Mounkaila144/produit-sub000/internal/repository"
	"github.com/Mounkaila144/produit-sub000/internal/tenancy"
	"github.com/Mounkaila144/produit-sub000/pkg/jwtutil"
	"github.com/Mounkaila144/produit-sub000/pkg/logger"
	"github.com/Mounkaila144/produit-sub000/prometheus"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// UserLookup loads the account behind a token
type UserLookup interface {
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// JWTAuthMiddleware validates the bearer token and attaches the principal.
// Role and tenant affiliation are read from the stored user, not the token.
func JWTAuthMiddleware(jwt *jwtutil.JWTUtil, users UserLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				log.Warn("Missing authorization header")
				return ErrorResponse(c, tenancy.NewError(tenancy.KindUnauthenticated, "missing authorization token"))
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				log.Warn("Invalid authorization header format")
				return ErrorResponse(c, tenancy.NewError(tenancy.KindUnauthenticated, "invalid authorization format, expected Bearer token"))
			}

			claims, err := jwt.ValidateToken(parts[1])
			if err != nil {
				log.Warn("Invalid or expired token", zap.Error(err))
				return ErrorResponse(c, tenancy.NewError(tenancy.KindUnauthenticated, "invalid or expired token"))
			}
			userID, _ := claims.UserUUID()

			user, err := users.GetUser(c.Request().Context(), userID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					log.Warn("Token user no longer exists", zap.String("user_id", claims.UserID))
					return ErrorResponse(c, tenancy.ErrUnauthenticated)
				}
				log.Error("Failed to load token user", zap.Error(err))
				return ErrorResponse(c, tenancy.Wrap(tenancy.KindInternal, "failed to load user", err))
			}
			if !user.IsActive {
				log.Warn("Inactive user rejected", zap.String("user_id", claims.UserID))
				return ErrorResponse(c, tenancy.NewError(tenancy.KindUnauthenticated, "account is inactive"))
			}

			principal := tenancy.Principal{
				UserID:   user.ID,
				Email:    user.Email,
				Role:     user.Role,
				TenantID: user.TenantID,
			}
			c.Set("principal", principal)
			c.SetRequest(c.Request().WithContext(tenancy.WithPrincipal(c.Request().Context(), principal)))

			log.Debug("JWT token validated successfully",
				zap.String("user_id", claims.UserID),
				zap.String("role", string(user.Role)))
			return next(c)
		}
	}
}

// MembershipGuard admits the principal to the resolved tenant: superadmins
// always, everyone else only when affiliated with it. Requests without a
// resolved tenant pass untouched.
func MembershipGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			tenant, ok := tenancy.TenantFrom(ctx)
			if !ok {
				return next(c)
			}
			principal, ok := tenancy.PrincipalFrom(ctx)
			if !ok {
				prometheus.RecordMembershipDenial("unauthenticated")
				return ErrorResponse(c, tenancy.ErrUnauthenticated)
			}

			if err := tenancy.CheckMembership(principal, tenant); err != nil {
				prometheus.RecordMembershipDenial("cross_tenant")
				logger.FromEcho(c).Warn("Cross-tenant access attempt",
					zap.String("user_id", principal.UserID.String()),
					zap.String("tenant_id", tenant.ID.String()))
				return ErrorResponse(c, err)
			}
			return next(c)
		}
	}
}

// RequireRole admits principals holding one of roles
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, ok := tenancy.PrincipalFrom(c.Request().Context())
			if !ok {
				prometheus.RecordMembershipDenial("unauthenticated")
				return ErrorResponse(c, tenancy.ErrUnauthenticated)
			}
			if err := tenancy.RequireRole(principal, roles...); err != nil {
				prometheus.RecordMembershipDenial("role")
				logger.FromEcho(c).Warn("Insufficient role",
					zap.String("user_id", principal.UserID.String()),
					zap.String("role", string(principal.Role)))
				return ErrorResponse(c, err)
			}
			return next(c)
		}
	}
}
