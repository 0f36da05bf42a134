package loggingmw

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/taskpilot/pkg/logging"
)

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var last map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		last = map[string]any{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &last))
	}
	require.NotNil(t, last, "no log lines written")
	return last
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		handler   echo.HandlerFunc
		wantCode  int
		wantLevel string
	}{
		{
			name:      "ok",
			handler:   func(c echo.Context) error { return c.String(http.StatusOK, "ok") },
			wantCode:  http.StatusOK,
			wantLevel: "INFO",
		},
		{
			name:      "client error",
			handler:   func(c echo.Context) error { return echo.NewHTTPError(http.StatusForbidden, "access denied") },
			wantCode:  http.StatusForbidden,
			wantLevel: "WARN",
		},
		{
			name:      "server error",
			handler:   func(c echo.Context) error { return echo.NewHTTPError(http.StatusServiceUnavailable) },
			wantCode:  http.StatusServiceUnavailable,
			wantLevel: "ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			e := echo.New()
			e.Use(RequestLogger(logging.NewWithWriter(&buf, "debug")))
			e.GET("/tasks/:taskId", tt.handler)

			req := httptest.NewRequest(http.MethodGet, "/tasks/42", nil)
			req.Header.Set(echo.HeaderXRequestID, "rid-1")
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "rid-1", rec.Header().Get(echo.HeaderXRequestID))

			entry := lastEntry(t, &buf)
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, "request_completed", entry["msg"])
			assert.Equal(t, "/tasks/:taskId", entry["path"])
			assert.Equal(t, "rid-1", entry["request_id"])
			assert.EqualValues(t, tt.wantCode, entry["status"])
		})
	}
}

func TestRequestLogger_PicksUpDownstreamFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	e := echo.New()
	e.Use(RequestLogger(logging.NewWithWriter(&buf, "info")))
	e.GET("/me", func(c echo.Context) error {
		ctx := c.Request().Context()
		l := logging.FromContext(ctx).With("user_id", "u-1")
		c.SetRequest(c.Request().WithContext(logging.IntoContext(ctx, l)))
		return c.NoContent(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))

	assert.Equal(t, "u-1", lastEntry(t, &buf)["user_id"])
}
