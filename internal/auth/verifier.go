// Package auth verifies OIDC bearer tokens presented to the dashboard API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/kamilpajak/wutboard/internal/session"
	"golang.org/x/oauth2"
)

// Config holds identity provider settings.
type Config struct {
	Issuer   string // e.g., "https://id.example.com"
	Audience string // API audience identifier, optional
}

// UserClaims represents the JWT claims issued to dashboard users.
type UserClaims struct {
	jwt.RegisteredClaims
	Email         string   `json:"email,omitempty"`
	EmailVerified bool     `json:"email_verified,omitempty"`
	Name          string   `json:"name,omitempty"`
	Roles         []string `json:"roles,omitempty"`
	Permissions   []string `json:"permissions,omitempty"`
}

// Verifier handles JWT verification with JWKS.
type Verifier struct {
	jwks     keyfunc.Keyfunc
	audience string
	issuer   string
	cancel   context.CancelFunc
}

// NewVerifier creates a verifier that fetches signing keys from
// <issuer>/.well-known/jwks.json and keeps them refreshed until Close.
func NewVerifier(cfg Config) (*Verifier, error) {
	issuer := strings.TrimSuffix(cfg.Issuer, "/")
	if issuer == "" {
		return nil, errors.New("issuer is required")
	}
	jwksURL := issuer + "/.well-known/jwks.json"

	ctx, cancel := context.WithCancel(context.Background())
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create JWKS keyfunc: %w", err)
	}

	v := newVerifier(cfg, jwks)
	v.cancel = cancel
	return v, nil
}

func newVerifier(cfg Config, jwks keyfunc.Keyfunc) *Verifier {
	return &Verifier{
		jwks:     jwks,
		audience: cfg.Audience,
		issuer:   strings.TrimSuffix(cfg.Issuer, "/"),
	}
}

// Close stops the background JWKS refresh.
func (v *Verifier) Close() {
	if v.cancel != nil {
		v.cancel()
	}
}

// Verify validates a JWT token and returns the claims.
func (v *Verifier) Verify(tokenString string) (*UserClaims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, v.jwks.Keyfunc, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

// Middleware creates HTTP middleware that requires a valid bearer token.
// The verified claims and a session carrying the raw token are attached to the
// request context so backend calls run with the caller's own credential.
func Middleware(verifier *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				http.Error(w, "Unauthorized: missing token", http.StatusUnauthorized)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(authenticated(r.Context(), claims, token)))
		})
	}
}

// OptionalMiddleware verifies JWTs if present but doesn't require them.
func OptionalMiddleware(verifier *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				// Invalid token - continue without auth
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(authenticated(r.Context(), claims, token)))
		})
	}
}

func authenticated(ctx context.Context, claims *UserClaims, raw string) context.Context {
	tok := &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}
	if claims.ExpiresAt != nil {
		tok.Expiry = claims.ExpiresAt.Time
	}
	ctx = WithClaims(ctx, claims)
	return session.WithSession(ctx, &session.Session{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
		Token:  tok,
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
