package authn

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Script-By-Lin-226/Auth/internal/logging"
	"github.com/Script-By-Lin-226/Auth/internal/models"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"

	principalKey = "principal"
)

// TokenFromRequest extracts the access token from the request: the
// access_token cookie first, then a bearer Authorization header.
func TokenFromRequest(c echo.Context) string {
	if cookie, err := c.Cookie(AccessCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// RequireSession resolves the request's token to a principal and stores it
// in the echo context for handlers downstream.
func (r *Resolver) RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := r.resolveRequest(c)
		if err != nil {
			return err
		}
		c.Set(principalKey, user)
		return next(c)
	}
}

// RequireRole admits the request only when the resolved principal holds
// exactly the given role.
func (r *Resolver) RequireRole(role models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := r.resolveRequest(c)
			if err != nil {
				return err
			}
			if user.Role != role {
				logging.FromContext(c.Request().Context()).Warn("authz_denied",
					"status", http.StatusForbidden, "user_id", user.ID, "required_role", role)
				return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
			}
			c.Set(principalKey, user)
			return next(c)
		}
	}
}

func (r *Resolver) resolveRequest(c echo.Context) (*models.User, error) {
	ctx := c.Request().Context()
	user, err := r.Resolve(ctx, TokenFromRequest(c))
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			logging.FromContext(ctx).Warn("authn_failed", "status", http.StatusUnauthorized, "error", err)
			return nil, echo.NewHTTPError(http.StatusUnauthorized, "could not validate credentials")
		}
		logging.FromContext(ctx).Error("authn_error", "status", http.StatusInternalServerError, "error", err)
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return user, nil
}

// Principal returns the user stored by RequireSession/RequireRole, or nil.
func Principal(c echo.Context) *models.User {
	if user, ok := c.Get(principalKey).(*models.User); ok {
		return user
	}
	return nil
}
