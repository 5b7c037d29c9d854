package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/healthhub/healthhub/internal/domain/admin"
	"github.com/healthhub/healthhub/internal/domain/anomaly"
	"github.com/healthhub/healthhub/internal/domain/dashboard"
	"github.com/healthhub/healthhub/internal/domain/emergency"
	"github.com/healthhub/healthhub/internal/domain/fitness"
	"github.com/healthhub/healthhub/internal/domain/healthgraph"
	"github.com/healthhub/healthhub/internal/domain/insights"
	"github.com/healthhub/healthhub/internal/domain/medication"
	"github.com/healthhub/healthhub/internal/domain/nutrition"
	"github.com/healthhub/healthhub/internal/domain/pharmacist"
	"github.com/healthhub/healthhub/internal/domain/profile"
	"github.com/healthhub/healthhub/internal/domain/sleep"
	"github.com/healthhub/healthhub/internal/domain/symptoms"
	"github.com/healthhub/healthhub/internal/domain/telemedicine"
	"github.com/healthhub/healthhub/internal/domain/wellbeing"
	"github.com/healthhub/healthhub/internal/platform/analytics"
	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/internal/platform/blobstore"
	"github.com/healthhub/healthhub/internal/platform/db"
	"github.com/healthhub/healthhub/internal/platform/middleware"
	"github.com/healthhub/healthhub/internal/platform/notification"
	"github.com/healthhub/healthhub/internal/platform/routing"
	"github.com/healthhub/healthhub/internal/platform/validate"
)

const shutdownTimeout = 10 * time.Second

func runServer(migrate bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env, os.Stdout)
	for _, w := range cfg.Warnings() {
		logger.Warn().Msg(w)
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		return err
	}
	defer a.close()

	if migrate && a.pool != nil {
		count, err := db.NewMigrator(a.pool, db.Migrations()).Up(ctx)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Info().Int("applied", count).Msg("migrations applied")
	}

	e := newServer(a)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting healthhub server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer builds the Echo instance with middleware and every route.
func newServer(a *app) *echo.Echo {
	cfg, logger := a.cfg, a.logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validate.New()

	e.Pre(routing.LegacyRedirect())

	// Usage analytics runs ahead of auth so rejected requests are counted.
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(a.metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(middleware.BodyLimit(a.limits))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, middleware.PathSkipper("/metrics")))
	e.Use(analytics.UsageMiddleware(a.usage))
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(a.jwt))
	} else {
		e.Use(auth.JWTMiddleware(a.jwt))
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/readyz", a.ready.Handler())
	e.GET("/metrics", a.metrics.Handler())

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api := e.Group(routing.APIPrefix)
	api.Use(middleware.RateLimit(rateLimitCfg))

	authGroup := api.Group("/auth")
	dash := api.Group("/dashboard")
	adminGroup := api.Group("/admin")

	profile.NewHandler(a.profiles).RegisterRoutes(authGroup, dash)

	dashboard.NewHandler(a.dashboard).RegisterRoutes(dash)
	insights.NewHandler(a.dashboard, a.chat).RegisterRoutes(dash)
	fitness.NewHandler(a.fitness).RegisterRoutes(dash)
	nutrition.NewHandler(a.nutrition).RegisterRoutes(dash)
	sleep.NewHandler(a.sleep).RegisterRoutes(dash)
	symptoms.NewHandler(a.symptoms).RegisterRoutes(dash)
	medication.NewHandler(a.medications).RegisterRoutes(dash)
	telemedicine.NewHandler(a.telemedicine).RegisterRoutes(dash)
	wellbeing.NewHandler(a.wellbeing).RegisterRoutes(dash)
	emergency.NewHandler(a.emergency).RegisterRoutes(dash)
	pharmacist.NewHandler(a.agent).RegisterRoutes(dash)
	notification.NewHandler(a.notifications).RegisterRoutes(dash)
	blobstore.NewBlobHandler(a.blobs).RegisterRoutes(dash)

	graphHandler := healthgraph.NewHandler(a.graph)
	graphHandler.SetMetrics(a.metrics)
	graphHandler.RegisterRoutes(dash)

	anomalyHandler := anomaly.NewHandler(a.detector)
	anomalyHandler.SetMetrics(a.metrics)
	anomalyHandler.RegisterRoutes(dash)

	admin.NewHandler(a.admin).RegisterRoutes(adminGroup)
	analytics.NewUsageHandler(a.usage).RegisterRoutes(adminGroup)

	return e
}
