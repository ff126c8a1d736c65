package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/routes/batches"
	"github.com/Ramsey-B/clover/pkg/routes/matches"
	"github.com/Ramsey-B/clover/pkg/scheduler"
	"github.com/Ramsey-B/clover/pkg/startup"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the review API and run scheduled matching batches",
		Long: `Serve the review API.

When MATCH_SCHEDULE_INTERVAL is set, a matching batch runs on start and
then on every interval.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	e, err := a.newServer(ctx)
	if err != nil {
		_ = a.close(context.WithoutCancel(ctx))
		return err
	}

	serverErr := make(chan error, 1)
	deps := startup.NewStartup(a.logger, cfg.StartupAttempts)
	deps.AddDependency(&startup.Dependency{
		Name: "migrations",
		StartFunc: func(context.Context) error {
			if !cfg.Database.AutoMigrate {
				return nil
			}
			return a.migrate()
		},
	})
	if cfg.Match.ScheduleInterval > 0 {
		deps.AddDependency(scheduler.NewScheduler(a.batch, cfg.Match.ScheduleInterval, a.logger))
	}
	deps.AddDependency(&startup.Dependency{
		Name:     "http",
		Requires: []string{"migrations"},
		StartFunc: func(context.Context) error {
			go func() {
				if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()
			a.logger.Infof("HTTP server listening on :%d", cfg.Port)
			return nil
		},
		StopFunc: e.Shutdown,
	})

	if err := deps.Start(ctx); err != nil {
		_ = a.close(context.WithoutCancel(ctx))
		return err
	}
	a.checker.SetReady(true)

	select {
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received")
	case err = <-serverErr:
		a.logger.WithError(err).Error("HTTP server failed")
	}

	a.checker.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()

	if stopErr := deps.Stop(shutdownCtx); stopErr != nil {
		a.logger.WithError(stopErr).Error("Failed to stop dependencies cleanly")
	}
	if closeErr := a.close(shutdownCtx); closeErr != nil {
		a.logger.WithError(closeErr).Warn("Failed to release resources cleanly")
	}
	return err
}

func (a *app) newServer(ctx context.Context) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(a.logger)

	e.Use(otelecho.Middleware(a.cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(a.logger))

	a.checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	var protected []echo.MiddlewareFunc
	if a.cfg.Auth.Issuer != "" {
		verify, err := middleware.NewOIDCVerifier(ctx, a.cfg.Auth.Issuer, a.cfg.Auth.ClientID)
		if err != nil {
			return nil, fmt.Errorf("init oidc verifier: %w", err)
		}
		protected = append(protected, middleware.Authentication(a.logger, verify))
	} else {
		a.logger.Warn("Authentication disabled, reviewer identity comes from the X-User-ID header")
	}

	matches.NewHandler(a.review).Register(e.Group("/api/v1/matches", protected...))
	batches.NewHandler(a.batch).Register(e.Group("/api/v1/batches", protected...))

	return e, nil
}
