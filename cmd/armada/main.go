package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgefleet/armada/internal/api"
	"github.com/edgefleet/armada/internal/app"
	"github.com/edgefleet/armada/internal/auth"
	"github.com/edgefleet/armada/internal/config"
	"github.com/edgefleet/armada/internal/domain"
	"github.com/edgefleet/armada/internal/repository/postgres"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log.Info("starting Armada",
		"listen", cfg.ListenAddr(),
		"db_host", cfg.DB.Host,
	)

	log.Info("running database migrations")
	if err := postgres.RunMigrations(cfg.DB.DSN()); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	log.Info("migrations completed")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB.DSN())
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer pool.Close()
	log.Info("database connected")

	// Committed events feed the event log; a log line per event is the only
	// built-in projection.
	eventLogger := domain.EventHandlerFunc(func(ctx context.Context, e domain.DomainEvent) error {
		log.Info("domain event",
			"event_type", e.EventType(),
			"aggregate_id", e.AggregateID(),
			"version", e.Version(),
		)
		return nil
	})

	uowf := postgres.NewFactory(pool, log, eventLogger)

	deviceSvc := app.NewDeviceService(uowf, log)
	groupSvc := app.NewGroupService(uowf, log)

	jwtMgr := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry)

	router := api.NewRouter(api.RouterDeps{
		DeviceSvc:      deviceSvc,
		GroupSvc:       groupSvc,
		JWTManager:     jwtMgr,
		AgentTokenHash: auth.HashToken(cfg.Auth.AgentToken),
		AdminEmail:     cfg.Auth.AdminEmail,
		AdminPassword:  cfg.Auth.AdminPassword,
		CORSOrigins:    cfg.CORS.AllowedOrigins,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.ListenAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutting down", "signal", sig)
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
