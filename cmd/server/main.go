// Package main provides the wutboard dashboard API server.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kamilpajak/wutboard/internal/api"
	"github.com/kamilpajak/wutboard/internal/auth"
	"github.com/kamilpajak/wutboard/internal/config"
	"github.com/kamilpajak/wutboard/internal/database"
	"github.com/kamilpajak/wutboard/internal/logging"
	"github.com/kamilpajak/wutboard/internal/metrics"
	"github.com/kamilpajak/wutboard/internal/session"
	"github.com/kamilpajak/wutboard/internal/snapshot"
	"github.com/kamilpajak/wutboard/internal/wut"
)

func main() {
	var (
		configPath  = flag.String("config", getEnv("WUT_CONFIG", ""), "Config file")
		addr        = flag.String("addr", "", "Listen address (overrides config)")
		migrateOnly = flag.Bool("migrate", false, "Run migrations and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(logger)

	if err := run(cfg, logger, *migrateOnly); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, migrateOnly bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if migrateOnly {
		if cfg.Database.URL == "" {
			return errors.New("database URL is required to run migrations")
		}
		logger.Info("running database migrations")
		return database.Migrate(cfg.Database.URL)
	}

	m := metrics.New()

	var verifier *auth.Verifier
	if cfg.Auth.Issuer != "" {
		v, err := auth.NewVerifier(auth.Config{Issuer: cfg.Auth.Issuer, Audience: cfg.Auth.Audience})
		if err != nil {
			return err
		}
		defer v.Close()
		verifier = v
	} else {
		logger.Warn("no auth issuer configured, API is unauthenticated")
	}

	authenticator := session.NewAuthenticator(session.AuthConfig{
		TokenURL:     cfg.Auth.TokenURL,
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		Scopes:       cfg.Auth.Scopes,
	})
	client := wut.NewClient(cfg.Backend.BaseURL, wut.Options{
		Timeout:     cfg.Backend.Timeout,
		TokenSource: authenticator.ServiceTokenSource(ctx),
		RateLimit:   cfg.Backend.RateLimit,
		Burst:       cfg.Backend.Burst,
		Metrics:     m,
		Logger:      logger,
	})

	apiCfg := api.Config{
		Backend:           client,
		AuthVerifier:      verifier,
		AnonymousReads:    cfg.Server.AnonymousReads,
		AnalyzePermission: cfg.Auth.AnalyzePermission,
		Metrics:           m,
		Logger:            logger,
		DefaultModel:      cfg.Backend.DefaultModel,
	}

	if cfg.Database.URL != "" {
		logger.Info("running database migrations")
		if err := database.Migrate(cfg.Database.URL); err != nil {
			return err
		}
		db, err := database.New(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()
		apiCfg.Snapshots = db

		if cfg.Snapshot.Interval > 0 {
			recorder := snapshot.NewRecorder(client, db, snapshot.Options{
				Logger:    logger.With("component", "snapshot"),
				Metrics:   m,
				Retention: cfg.Snapshot.Retention,
			})
			go func() {
				if err := recorder.Run(ctx, cfg.Snapshot.Interval); err != nil {
					logger.Error("snapshot recorder stopped", "error", err)
				}
			}()
		}
	} else {
		logger.Warn("no database configured, snapshots are disabled")
	}

	server := api.NewServer(apiCfg)
	defer server.Close()

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Backend.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Server.Addr, "backend", cfg.Backend.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
