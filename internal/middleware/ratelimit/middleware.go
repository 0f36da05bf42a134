package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/taskpilot/pkg/logging"
)

type Allower interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

type Config struct {
	Limit  int
	Window time.Duration
	// Scope namespaces the counters so two limited routes don't share a budget.
	Scope string
}

// Middleware rejects a client with 429 once it exceeds Limit requests per
// Window. A failing backend lets the request through.
func Middleware(a Allower, cfg Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if a == nil || cfg.Limit <= 0 {
				return next(c)
			}
			ctx := c.Request().Context()
			l := logging.FromContext(ctx).With("mw", "ratelimit", "scope", cfg.Scope)

			key := cfg.Scope + ":" + c.RealIP()
			res, err := a.Allow(ctx, key, cfg.Limit, cfg.Window)
			if err != nil {
				l.Error("ratelimit_unavailable", "error", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				retry := int(time.Until(res.ResetAt).Seconds()) + 1
				if retry < 1 {
					retry = 1
				}
				h.Set("Retry-After", strconv.Itoa(retry))
				l.Warn("rate_limited", "status", 429, "remote_ip", c.RealIP())
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
			}
			return next(c)
		}
	}
}
