package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/taskpilot/internal/authz"
	"github.com/Skotchmaster/taskpilot/internal/middleware/auth"
	"github.com/Skotchmaster/taskpilot/internal/service"
)

const (
	msgBadCredentials = "invalid username or password"
	codeTokenStale    = "token_stale"
)

// httpError maps a service error onto the response a client sees and logs the
// rejection at Warn for 4xx and Error for 5xx.
func httpError(l *slog.Logger, event string, err error) error {
	code, body := classify(err)
	if code >= http.StatusInternalServerError {
		l.Error(event, "status", code, "error", err)
	} else {
		l.Warn(event, "status", code, "error", err)
	}
	return echo.NewHTTPError(code, body).WithInternal(err)
}

func classify(err error) (int, any) {
	switch {
	case errors.Is(err, service.ErrTokenStale):
		return http.StatusUnauthorized, echo.Map{"message": service.ErrTokenStale.Error(), "code": codeTokenStale}
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, service.ErrUnauthorized.Error()
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, msgBadCredentials
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, authz.ErrForbidden):
		return http.StatusForbidden, authz.ErrForbidden.Error()
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, "user with this username or email already exists"
	case errors.Is(err, service.ErrUnavailable):
		return http.StatusServiceUnavailable, service.ErrUnavailable.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func badRequest(l *slog.Logger, event, reason string, err error) error {
	l.Warn(event, "status", 400, "reason", reason, "error", err)
	return echo.NewHTTPError(http.StatusBadRequest, reason)
}

func uuidParam(c echo.Context, l *slog.Logger, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, badRequest(l, "invalid_param", name+" is not a valid id", err)
	}
	return id, nil
}

func uuidQuery(c echo.Context, l *slog.Logger, name string) (*uuid.UUID, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, badRequest(l, "invalid_query", name+" is not a valid id", err)
	}
	return &id, nil
}
