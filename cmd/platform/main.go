package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/medsecop/platform/internal/audit"
	caseapi "github.com/medsecop/platform/internal/case/api"
	caseinfra "github.com/medsecop/platform/internal/case/infrastructure"
	caseservice "github.com/medsecop/platform/internal/case/service"
	"github.com/medsecop/platform/internal/notification"
	"github.com/medsecop/platform/internal/shared/auth"
	"github.com/medsecop/platform/internal/shared/config"
	"github.com/medsecop/platform/internal/shared/database"
	"github.com/medsecop/platform/internal/shared/events"
	"github.com/medsecop/platform/internal/shared/logging"
	"github.com/medsecop/platform/internal/shared/metrics"
	secmiddleware "github.com/medsecop/platform/internal/shared/middleware"
	"github.com/medsecop/platform/internal/user"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	DB     *database.DB
	Bus    *events.Bus
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Server.Env)
	app := &App{Config: cfg, Logger: logger}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	app.DB = db
	defer db.Close()

	if err := database.Migrate(ctx, db.Pool); err != nil {
		logger.Fatal().Err(err).Msg("database migration failed")
	}

	// Event bus is optional; case mutations do not depend on it
	if cfg.EventStore.Enabled {
		bus, err := events.NewBus(ctx, cfg.EventStore)
		if err != nil {
			logger.Warn().Err(err).Msg("event store not available, running without event streaming")
		} else {
			app.Bus = bus
			defer bus.Close()
			logger.Info().Msg("event bus initialized")
		}
	}

	// Audit log: hash-chained store with a best-effort async recorder
	auditRepo := audit.NewRepository(db.Pool)
	if err := auditRepo.Initialize(ctx); err != nil {
		logger.Fatal().Err(err).Msg("audit initialization failed")
	}
	recorder := audit.NewAsyncRecorder(auditRepo, cfg.Audit.BufferSize, logger)
	defer recorder.Close()

	// Notification fan-out
	notifier := notification.NewService(
		map[notification.Channel]notification.Provider{
			notification.ChannelEmail: notification.NewLogProvider(logger),
			notification.ChannelInApp: notification.NewLogProvider(logger),
		},
		notification.ServiceConfig{
			Workers:       cfg.Notification.Workers,
			BufferSize:    cfg.Notification.BufferSize,
			RetryAttempts: 3,
			RetryDelay:    10 * time.Second,
		},
		logger,
	)
	if err := notifier.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("notification service failed to start")
	}
	defer notifier.Stop()

	userRepo := user.NewPostgresRepository(db.Pool)
	caseRepo := caseinfra.NewPostgresRepository(db.Pool)
	caseService := caseservice.NewService(caseRepo, userRepo, recorder, notifier, app.Bus, logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(metrics.Middleware)
	r.Use(secmiddleware.RateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	r.Get("/", infoHandler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth))

		caseHandler := caseapi.NewHandler(caseService)
		r.Mount("/cases", caseHandler.Routes())

		auditHandler := audit.NewHandler(auditRepo)
		r.Mount("/audit", auditHandler.Routes())
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info().Msg("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}
		close(done)
	}()

	logger.Info().
		Str("env", cfg.Server.Env).
		Int("port", cfg.Server.Port).
		Bool("event_bus", app.Bus != nil).
		Msg("second opinion platform listening")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server error")
	}

	<-done
	logger.Info().Msg("server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "Second Opinion Platform",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if err := app.DB.Health(r.Context()); err != nil {
			checks["database"] = "not ready: " + err.Error()
		} else {
			checks["database"] = "ready"
		}

		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["eventstore"] = "not ready: " + err.Error()
			} else {
				checks["eventstore"] = "ready"
			}
		} else {
			checks["eventstore"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}
