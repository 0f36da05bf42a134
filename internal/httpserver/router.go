package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/taskpilot/internal/live"
	"github.com/Skotchmaster/taskpilot/internal/middleware/auth"
	"github.com/Skotchmaster/taskpilot/internal/middleware/ratelimit"
	"github.com/Skotchmaster/taskpilot/internal/models"
	"github.com/Skotchmaster/taskpilot/internal/transport"
	"github.com/Skotchmaster/taskpilot/pkg/db"
	"github.com/Skotchmaster/taskpilot/pkg/logging"
)

type Deps struct {
	DB   *gorm.DB
	Gate *auth.Gate

	AuthHandler     *AuthHTTP
	UserHandler     *UserHTTP
	TaskHandler     *TaskHTTP
	DocumentHandler *DocumentHTTP

	// Hub is optional; without it /ws is not registered.
	Hub *live.Hub

	LoginLimiter ratelimit.Allower
	LoginLimit   ratelimit.Config

	// Middlewares run on every /api/v1 route, ahead of the gate.
	Middlewares []echo.MiddlewareFunc
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health", health)
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", d.ready)

	v1 := e.Group("/api/v1", d.Middlewares...)
	authMw := d.Gate.Authenticate()
	adminOnly := d.Gate.RequireRole(models.RoleAdmin)

	users := v1.Group("/users")
	users.POST("/register", d.AuthHandler.Register, d.Gate.Optional())
	users.POST("/login", d.AuthHandler.Login, ratelimit.Middleware(d.LoginLimiter, d.LoginLimit))
	users.POST("/refresh", d.AuthHandler.Refresh)
	users.POST("/logout", d.AuthHandler.Logout, authMw)
	users.GET("/me", d.AuthHandler.Me, authMw)
	users.GET("", d.UserHandler.List, authMw)
	users.GET("/:userId", d.UserHandler.Get, authMw)
	users.PUT("/:userId", d.UserHandler.Update, authMw)
	users.DELETE("/:userId", d.UserHandler.Delete, authMw, adminOnly)

	tasks := v1.Group("/tasks", authMw)
	tasks.POST("", d.TaskHandler.Create)
	tasks.GET("", d.TaskHandler.List)
	tasks.GET("/stats", d.TaskHandler.Stats)
	tasks.GET("/search", d.TaskHandler.Search)
	tasks.GET("/:taskId", d.TaskHandler.Get)
	tasks.PUT("/:taskId", d.TaskHandler.Update)
	tasks.DELETE("/:taskId", d.TaskHandler.Delete)
	tasks.POST("/:taskId/documents", d.TaskHandler.UploadDocument)
	tasks.DELETE("/:taskId/documents/:documentId", d.TaskHandler.RemoveDocument)

	docs := v1.Group("/documents/tasks/:taskId/documents", authMw)
	docs.GET("", d.DocumentHandler.List)
	docs.GET("/:documentId", d.DocumentHandler.Info)
	docs.GET("/:documentId/download", d.DocumentHandler.Download)

	if d.Hub != nil {
		v1.GET("/ws", d.Hub.ServeWS, authMw)
	}
}

func health(c echo.Context) error {
	return c.JSON(http.StatusOK, transport.HealthResponse{Status: "ok", Timestamp: time.Now().UTC()})
}

func (d *Deps) ready(c echo.Context) error {
	if d.DB == nil {
		return c.NoContent(http.StatusOK)
	}
	if err := db.Ping(c.Request().Context(), d.DB); err != nil {
		logging.FromContext(c.Request().Context()).Error("readiness_failed", "status", 503, "error", err)
		return c.JSON(http.StatusServiceUnavailable, transport.HealthResponse{Status: "unavailable", Timestamp: time.Now().UTC()})
	}
	return c.NoContent(http.StatusOK)
}
