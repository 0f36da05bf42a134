package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/taskpilot/internal/httpserver"
	"github.com/Skotchmaster/taskpilot/internal/live"
	"github.com/Skotchmaster/taskpilot/internal/middleware/auth"
	"github.com/Skotchmaster/taskpilot/internal/middleware/ratelimit"
	"github.com/Skotchmaster/taskpilot/internal/models"
	"github.com/Skotchmaster/taskpilot/internal/mykafka"
	"github.com/Skotchmaster/taskpilot/internal/repo"
	"github.com/Skotchmaster/taskpilot/internal/search"
	"github.com/Skotchmaster/taskpilot/internal/service"
	"github.com/Skotchmaster/taskpilot/internal/storage"
	"github.com/Skotchmaster/taskpilot/pkg/config"
	"github.com/Skotchmaster/taskpilot/pkg/cookies"
	"github.com/Skotchmaster/taskpilot/pkg/db"
	"github.com/Skotchmaster/taskpilot/pkg/logging"
	"github.com/Skotchmaster/taskpilot/pkg/middleware/csrf"
	loggingmw "github.com/Skotchmaster/taskpilot/pkg/middleware/logging"
	"github.com/Skotchmaster/taskpilot/pkg/tokens"
)

func main() {
	cfg := config.Load()
	config.MustValidate(cfg)

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server_failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	initCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	gdb, err := db.Open(initCtx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			logger.Error("db_close_failed", "error", err)
		}
	}()
	if err := db.Migrate(initCtx, gdb, models.All()...); err != nil {
		return err
	}

	codec, err := tokens.NewCodec(tokens.Config{
		AccessSecret:  cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
		Issuer:        cfg.ServiceName,
	})
	if err != nil {
		return err
	}

	store := repo.New(gdb, cfg.StoreTimeout)
	jar := cookies.Jar{Secure: cfg.Production()}
	hub := live.NewHub(cfg.CORSOrigins)
	defer hub.Close()

	events := mykafka.Tee{hub}
	if len(cfg.KafkaBrokers) > 0 {
		prod, err := mykafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			return err
		}
		defer func() {
			if err := prod.Close(); err != nil {
				logger.Error("kafka_close_failed", "error", err)
			}
		}()
		events = append(events, prod)
	} else {
		logger.Warn("kafka_disabled", "reason", "KAFKA_BROKERS is empty")
	}

	// Optional backends stay as untyped nil interfaces when unconfigured.
	var index service.TaskIndexer
	if cfg.ESURL != "" {
		es, err := search.NewClient(initCtx, search.Config{
			URL:      cfg.ESURL,
			Username: cfg.ESUser,
			Password: cfg.ESPassword,
		})
		if err != nil {
			return err
		}
		index = search.NewTaskIndex(es, cfg.ESIndex)
	} else {
		logger.Warn("search_disabled", "reason", "ES_URL is empty")
	}

	var objects storage.ObjectStore
	if cfg.S3Endpoint != "" {
		s3, err := storage.NewS3Store(initCtx, storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
		})
		if err != nil {
			return err
		}
		objects = s3
	} else {
		logger.Warn("object_storage_disabled", "reason", "S3_ENDPOINT is empty")
	}

	var limiter ratelimit.Allower
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(initCtx).Err(); err != nil {
			logger.Warn("redis_unreachable", "addr", cfg.RedisAddr, "error", err)
		}
		limiter = ratelimit.NewLimiter(rdb, cfg.ServiceName+":ratelimit")
	} else {
		logger.Warn("rate_limit_disabled", "reason", "REDIS_ADDR is empty")
	}

	docs := &service.DocumentService{Store: store, Objects: objects, Events: events}
	deps := &httpserver.Deps{
		DB:   gdb,
		Gate: auth.NewGate(codec, jar),
		AuthHandler: &httpserver.AuthHTTP{
			Svc:     &service.AuthService{Store: store, Tokens: codec, Events: events, Objects: objects},
			Cookies: jar,
		},
		UserHandler: &httpserver.UserHTTP{Svc: &service.UserService{Store: store, Events: events}},
		TaskHandler: &httpserver.TaskHTTP{
			Svc:  &service.TaskService{Store: store, Index: index, Events: events, Objects: objects},
			Docs: docs,
		},
		DocumentHandler: &httpserver.DocumentHTTP{Svc: docs},
		Hub:             hub,
		LoginLimiter:    limiter,
		LoginLimit: ratelimit.Config{
			Limit:  cfg.LoginRateLimit,
			Window: cfg.LoginRateWindow,
			Scope:  "login",
		},
	}
	if cfg.CSRFEnabled {
		deps.Middlewares = append(deps.Middlewares, csrf.Middleware(csrf.Config{
			Secure:            cfg.Production(),
			EnforceSameOrigin: cfg.Production(),
			SkipPaths:         []string{"/api/v1/users/login", "/api/v1/users/register"},
		}))
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(middleware.BodyLimit("12M"))
	if len(cfg.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     cfg.CORSOrigins,
			AllowCredentials: true,
			AllowHeaders: []string{
				echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept,
				echo.HeaderAuthorization, "X-CSRF-Token",
			},
			ExposeHeaders: []string{"X-CSRF-Token", echo.HeaderXRequestID},
		}))
	}

	httpserver.Register(e, deps)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.ServerPort)
		logger.Info("server_starting", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting_down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_failed", "error", err)
	}
	logger.Info("shutdown_complete")
	return nil
}
