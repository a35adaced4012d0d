package identity

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/presentation/http/response"
	"github.com/JoyelAlbert/ManoMercy-Supermarket/pkg/errorbank"
)

// Role partitions callers into customers and administrators.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Principal is the identity the upstream auth gateway resolved for a
// request. Token verification itself happens outside this service.
type Principal struct {
	UserID int64
	Role   Role
}

// IsAdmin reports whether the principal may use administrative endpoints.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Headers populated by the gateway once the bearer token is verified.
const (
	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-User-Role"
)

type contextKey struct{}

// FromContext extracts the principal attached by the middleware.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}

// WithPrincipal returns ctx carrying the given principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// Middleware rejects unauthenticated requests and stores the resolved
// principal on the request context.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rawID := c.Request().Header.Get(HeaderUserID)
			userID, err := strconv.ParseInt(rawID, 10, 64)
			if rawID == "" || err != nil {
				return response.New(c).
					WithStatus(http.StatusUnauthorized).
					WithError(errorbank.New(errorbank.KindForbidden, "authentication required")).
					Build()
			}

			role := RoleCustomer
			if Role(c.Request().Header.Get(HeaderRole)) == RoleAdmin {
				role = RoleAdmin
			}

			principal := Principal{UserID: userID, Role: role}
			ctx := WithPrincipal(c.Request().Context(), principal)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireAdmin guards administrative routes.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, ok := FromContext(c.Request().Context())
			if !ok || !principal.IsAdmin() {
				return response.New(c).
					WithError(errorbank.Forbidden("admins only")).
					Build()
			}
			return next(c)
		}
	}
}
