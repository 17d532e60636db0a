package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// AuthConfig describes the OAuth2 token endpoint of the identity provider.
type AuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	HTTPClient   *http.Client // optional
}

// ErrAuthNotConfigured is returned when no token endpoint is configured.
var ErrAuthNotConfigured = errors.New("authentication is not configured (missing token URL)")

// Authenticator obtains per-session tokens from the identity provider.
type Authenticator struct {
	cfg AuthConfig
}

// NewAuthenticator creates an authenticator for cfg.
func NewAuthenticator(cfg AuthConfig) *Authenticator {
	return &Authenticator{cfg: cfg}
}

func (a *Authenticator) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     a.cfg.ClientID,
		ClientSecret: a.cfg.ClientSecret,
		Scopes:       a.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			TokenURL:  a.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (a *Authenticator) withClient(ctx context.Context) context.Context {
	if a.cfg.HTTPClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, a.cfg.HTTPClient)
	}
	return ctx
}

// Login exchanges user credentials for a token and returns the new session.
func (a *Authenticator) Login(ctx context.Context, username, password string) (*Session, error) {
	if a.cfg.TokenURL == "" {
		return nil, ErrAuthNotConfigured
	}
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password are required")
	}

	tok, err := a.oauthConfig().PasswordCredentialsToken(a.withClient(ctx), username, password)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	s, err := FromToken(tok)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if s.UserID == "" {
		s.UserID = username
	}
	return s, nil
}

// TokenSource returns a source that refreshes the session token when it
// expires and a refresh token is available.
func (a *Authenticator) TokenSource(ctx context.Context, s *Session) oauth2.TokenSource {
	if s == nil || s.Token == nil {
		return nil
	}
	if a.cfg.TokenURL == "" || s.Token.RefreshToken == "" {
		return oauth2.StaticTokenSource(s.Token)
	}
	return a.oauthConfig().TokenSource(a.withClient(ctx), s.Token)
}

// ServiceTokenSource returns a client-credentials token source for the
// service's own identity, or nil when no client secret is configured.
func (a *Authenticator) ServiceTokenSource(ctx context.Context) oauth2.TokenSource {
	if a.cfg.TokenURL == "" || a.cfg.ClientID == "" || a.cfg.ClientSecret == "" {
		return nil
	}
	cc := &clientcredentials.Config{
		ClientID:     a.cfg.ClientID,
		ClientSecret: a.cfg.ClientSecret,
		TokenURL:     a.cfg.TokenURL,
		Scopes:       a.cfg.Scopes,
	}
	return cc.TokenSource(a.withClient(ctx))
}
