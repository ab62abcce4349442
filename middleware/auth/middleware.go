package auth

import (
	"net/http"
	"strings"

	"github.com/chorushq/sessionkit/services/gate"
	"github.com/labstack/echo/v4"
)

const (
	UsernameKey = "_auth_username"
	ExpiredKey  = "_auth_expired"

	usernameHeader = "X-Auth-Username"
)

// RequireAuth extracts the bearer token and claimed username from the request
// and admits it only on an allowed gate decision. Rejections map to generic
// responses so nothing about account existence leaks.
func RequireAuth(gateService *gate.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header required")
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			username := c.Request().Header.Get(usernameHeader)

			decision := gateService.Authenticate(c.Request().Context(), username, token, false)
			if !decision.Allowed {
				return httpError(decision)
			}

			c.Set(UsernameKey, decision.Username)
			c.Set(ExpiredKey, decision.Expired)

			return next(c)
		}
	}
}

func httpError(decision gate.Decision) *echo.HTTPError {
	switch decision.Reason {
	case gate.ReasonAccountRestricted:
		return echo.NewHTTPError(http.StatusForbidden, "Account restricted")
	case gate.ReasonStoreUnavailable:
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Service temporarily unavailable")
	case gate.ReasonRateLimited:
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too Many Requests")
	default:
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}
}

func GetUsername(c echo.Context) string {
	if username, ok := c.Get(UsernameKey).(string); ok {
		return username
	}
	return ""
}
