// Package auth is the HTTP gate in front of every protected route: it verifies
// the access token and binds the caller identity in the same step.
package auth

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/taskpilot/internal/authz"
	"github.com/Skotchmaster/taskpilot/pkg/cookies"
	"github.com/Skotchmaster/taskpilot/pkg/logging"
	"github.com/Skotchmaster/taskpilot/pkg/tokens"
)

var ErrUnauthenticated = errors.New("authentication required")

const (
	msgUnauthenticated = "authentication required"
	msgExpired         = "access token expired"
	msgForbidden       = "access denied"

	// ClaimsKey is where the verified *tokens.Claims are stored on echo.Context.
	ClaimsKey = "claims"
)

type Verifier interface {
	Verify(token string, kind tokens.Kind) (*tokens.Claims, error)
}

type Gate struct {
	Tokens  Verifier
	Cookies cookies.Jar
}

func NewGate(v Verifier, jar cookies.Jar) *Gate {
	return &Gate{Tokens: v, Cookies: jar}
}

// Authenticate rejects the request with 401 unless a valid access token is
// presented in the Authorization header or the access cookie.
func (g *Gate) Authenticate() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		TokenLookup:    "header:Authorization:Bearer ,cookie:" + cookies.AccessToken,
		ContextKey:     ClaimsKey,
		ParseTokenFunc: g.parse,
		ErrorHandler:   g.reject,
	})
}

// Optional binds an identity when a valid access token is present and lets
// anonymous requests through untouched.
func (g *Gate) Optional() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		TokenLookup:            "header:Authorization:Bearer ,cookie:" + cookies.AccessToken,
		ContextKey:             ClaimsKey,
		ParseTokenFunc:         g.parse,
		ContinueOnIgnoredError: true,
		ErrorHandler: func(echo.Context, error) error {
			return nil
		},
	})
}

// RequireRole must run after Authenticate.
func (g *Gate) RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			l := logging.FromContext(ctx).With("mw", "require_role")

			id, ok := authz.FromContext(ctx)
			if !ok {
				l.Warn("access_denied", "status", 401, "reason", "no identity")
				return echo.NewHTTPError(http.StatusUnauthorized, msgUnauthenticated).WithInternal(ErrUnauthenticated)
			}
			if err := authz.RequireRole(id, role).Err(); err != nil {
				l.Warn("access_denied", "status", 403, "user_id", id.ID.String(), "role", id.Role, "required", role)
				return echo.NewHTTPError(http.StatusForbidden, msgForbidden).WithInternal(err)
			}
			return next(c)
		}
	}
}

func (g *Gate) parse(c echo.Context, raw string) (any, error) {
	claims, err := g.Tokens.Verify(raw, tokens.Access)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, tokens.ErrInvalidToken
	}

	id := authz.Identity{ID: userID, Role: claims.Role}
	req := c.Request()
	ctx := authz.IntoContext(req.Context(), id)
	ctx = logging.IntoContext(ctx, logging.FromContext(ctx).With("user_id", userID.String()))
	c.SetRequest(req.WithContext(ctx))
	return claims, nil
}

func (g *Gate) reject(c echo.Context, err error) error {
	l := logging.FromContext(c.Request().Context()).With("mw", "authenticate")

	if errors.Is(err, tokens.ErrExpiredToken) {
		l.Warn("auth_failed", "status", 401, "reason", "expired")
		return echo.NewHTTPError(http.StatusUnauthorized, msgExpired).WithInternal(ErrUnauthenticated)
	}
	if errors.Is(err, tokens.ErrInvalidToken) {
		c.SetCookie(g.Cookies.Delete(cookies.AccessToken))
		l.Warn("auth_failed", "status", 401, "reason", "invalid token", "error", err)
	} else {
		l.Warn("auth_failed", "status", 401, "reason", "missing token")
	}
	return echo.NewHTTPError(http.StatusUnauthorized, msgUnauthenticated).WithInternal(ErrUnauthenticated)
}
