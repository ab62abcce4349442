package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/chorushq/sessionkit/services/ratelimit"
	"github.com/labstack/echo/v4"
)

type Config struct {
	Limiter        *ratelimit.Service
	Scope          string
	Action         string
	Limit          int
	Window         time.Duration
	CheckBlock     bool
	KeyGenerator   func(c echo.Context) string
	OnLimitReached func(c echo.Context) error
}

// Middleware charges the fixed-window counter for every request and attaches
// the standard X-RateLimit-* headers. The actor defaults to the client
// network address.
func Middleware(cfg *Config) echo.MiddlewareFunc {
	if cfg.Scope == "" {
		cfg.Scope = "ip"
	}

	if cfg.Action == "" {
		cfg.Action = "request"
	}

	if cfg.Limit <= 0 {
		cfg.Limit = 10
	}

	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = DefaultKeyGenerator
	}

	if cfg.OnLimitReached == nil {
		cfg.OnLimitReached = DefaultOnLimitReached
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := cfg.KeyGenerator(c)
			ctx := c.Request().Context()

			var result ratelimit.Result
			if cfg.CheckBlock {
				result = cfg.Limiter.CheckWithBlock(ctx, cfg.Scope, cfg.Action, actor, cfg.Window, cfg.Limit)
			} else {
				result = cfg.Limiter.Check(ctx, cfg.Scope, cfg.Action, actor, cfg.Window, cfg.Limit)
			}

			remaining := max(result.Limit-int(result.Count), 0)

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			c.Response().Header().Set("X-RateLimit-Reset", strconv.Itoa(result.ResetSeconds))

			if !result.Allowed || result.Blocked {
				c.Response().Header().Set("Retry-After", strconv.Itoa(result.ResetSeconds))
				return cfg.OnLimitReached(c)
			}

			return next(c)
		}
	}
}

func DefaultKeyGenerator(c echo.Context) string {
	realIP := c.RealIP()

	if realIP == "" || realIP == "unknown" {
		realIP = "fallback"
	}

	return realIP
}

func DefaultOnLimitReached(c echo.Context) error {
	return echo.NewHTTPError(http.StatusTooManyRequests, "Too Many Requests")
}

func WithConfig(cfg *Config) echo.MiddlewareFunc {
	return Middleware(cfg)
}
