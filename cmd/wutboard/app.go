package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/kamilpajak/wutboard/internal/config"
	"github.com/kamilpajak/wutboard/internal/logging"
	"github.com/kamilpajak/wutboard/internal/session"
	"github.com/kamilpajak/wutboard/internal/wut"
)

var errSessionExpired = errors.New("session expired, run 'wutboard login'")

// app bundles what every command needs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  session.Store
	auth   *session.Authenticator
}

func loadApp() (*app, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if backendURL != "" {
		cfg.Backend.BaseURL = backendURL
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// CLI logs default to warnings so they don't drown the output.
	level := cfg.Log.Level
	if logLevel == "" && level == "info" {
		level = "warn"
	}

	return &app{
		cfg:    cfg,
		logger: logging.New(level, cfg.Log.Format, os.Stderr),
		store:  session.NewFileStore(session.DefaultPath()),
		auth: session.NewAuthenticator(session.AuthConfig{
			TokenURL:     cfg.Auth.TokenURL,
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			Scopes:       cfg.Auth.Scopes,
		}),
	}, nil
}

// client builds a backend client and returns ctx carrying the stored session,
// refreshing its token when needed.
func (a *app) client(ctx context.Context) (*wut.Client, context.Context, error) {
	client := wut.NewClient(a.cfg.Backend.BaseURL, wut.Options{
		Timeout:   a.cfg.Backend.Timeout,
		RateLimit: a.cfg.Backend.RateLimit,
		Burst:     a.cfg.Backend.Burst,
		Logger:    a.logger,
	})

	s, err := a.store.Current()
	if errors.Is(err, session.ErrNoSession) || (err == nil && s.Token == nil) {
		a.logger.Debug("no stored session, calling backend unauthenticated")
		return client, ctx, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if !s.Valid() && s.Token.RefreshToken == "" {
		return nil, nil, errSessionExpired
	}

	tok, err := a.auth.TokenSource(ctx, s).Token()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", errSessionExpired, err)
	}
	if tok.AccessToken != s.Token.AccessToken {
		s.Token = tok
		if err := a.store.Set(s); err != nil {
			a.logger.Warn("failed to persist refreshed token", "error", err)
		}
	}

	return client, session.WithSession(ctx, s), nil
}
