// Package session carries the authenticated user and their backend token
// explicitly through call chains instead of a process-wide "current user".
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Session is an authenticated user together with the token used to call the
// backend on their behalf.
type Session struct {
	UserID string        `json:"user_id"`
	Email  string        `json:"email,omitempty"`
	Name   string        `json:"name,omitempty"`
	Token  *oauth2.Token `json:"token,omitempty"`
}

// Valid reports whether the session holds a usable token.
func (s *Session) Valid() bool {
	return s != nil && s.Token != nil && s.Token.Valid()
}

// Expiry returns the token expiry, or the zero time when unknown.
func (s *Session) Expiry() time.Time {
	if s == nil || s.Token == nil {
		return time.Time{}
	}
	return s.Token.Expiry
}

type contextKey int

const sessionKey contextKey = iota

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// FromContext returns the session carried by ctx, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

// IdentityClaims are the identity fields read from an access token.
type IdentityClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// FromToken builds a session from an OAuth2 token. When the access token is a
// JWT its identity claims are copied; the signature is not checked here since
// the backend verifies every request.
func FromToken(tok *oauth2.Token) (*Session, error) {
	if tok == nil || tok.AccessToken == "" {
		return nil, fmt.Errorf("empty token")
	}

	s := &Session{Token: tok}

	claims := &IdentityClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok.AccessToken, claims); err != nil {
		// Opaque tokens are fine; the session just has no identity.
		return s, nil
	}

	s.UserID = claims.Subject
	s.Email = claims.Email
	s.Name = claims.Name
	if tok.Expiry.IsZero() && claims.ExpiresAt != nil {
		tok.Expiry = claims.ExpiresAt.Time
	}
	return s, nil
}
