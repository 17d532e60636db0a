package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func signedToken(t *testing.T, subject, email string, expires time.Time) string {
	t.Helper()
	claims := IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Email: email,
		Name:  "Test User",
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestContext(t *testing.T) {
	t.Run("returns nil for empty context", func(t *testing.T) {
		assert.Nil(t, FromContext(context.Background()))
	})

	t.Run("round trips session", func(t *testing.T) {
		s := &Session{UserID: "user_1"}
		ctx := WithSession(context.Background(), s)
		assert.Same(t, s, FromContext(ctx))
	})
}

func TestSession_Valid(t *testing.T) {
	var nilSession *Session
	assert.False(t, nilSession.Valid())
	assert.False(t, (&Session{}).Valid())
	assert.True(t, (&Session{Token: &oauth2.Token{AccessToken: "x"}}).Valid())
	assert.False(t, (&Session{Token: &oauth2.Token{AccessToken: "x", Expiry: time.Now().Add(-time.Hour)}}).Valid())
}

func TestFromToken(t *testing.T) {
	t.Run("rejects empty token", func(t *testing.T) {
		_, err := FromToken(nil)
		assert.Error(t, err)
		_, err = FromToken(&oauth2.Token{})
		assert.Error(t, err)
	})

	t.Run("opaque token has no identity", func(t *testing.T) {
		s, err := FromToken(&oauth2.Token{AccessToken: "opaque-token"})
		require.NoError(t, err)
		assert.Empty(t, s.UserID)
		assert.Equal(t, "opaque-token", s.Token.AccessToken)
	})

	t.Run("copies JWT identity claims", func(t *testing.T) {
		exp := time.Now().Add(time.Hour).Truncate(time.Second)
		s, err := FromToken(&oauth2.Token{AccessToken: signedToken(t, "kp_123", "dev@example.com", exp)})
		require.NoError(t, err)

		assert.Equal(t, "kp_123", s.UserID)
		assert.Equal(t, "dev@example.com", s.Email)
		assert.Equal(t, "Test User", s.Name)
		assert.True(t, exp.Equal(s.Expiry()))
	})
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewFileStore(path)

	_, err := store.Current()
	assert.ErrorIs(t, err, ErrNoSession)

	s := &Session{UserID: "u1", Email: "u1@example.com", Token: &oauth2.Token{AccessToken: "abc", TokenType: "Bearer"}}
	require.NoError(t, store.Set(s))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := store.Current()
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "abc", got.Token.AccessToken)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear(), "clearing twice is fine")
	_, err = store.Current()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path).Current()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSession)
}

// tokenServer fakes an OAuth2 token endpoint.
func tokenServer(t *testing.T, accessToken string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.PostForm.Get("grant_type") {
		case "password":
			if r.PostForm.Get("username") != "alice" || r.PostForm.Get("password") != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
		case "client_credentials":
			if r.PostForm.Get("client_id") != "svc" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
				return
			}
		default:
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  accessToken,
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "refresh-1",
		})
	}))
}

func TestAuthenticator_Login(t *testing.T) {
	access := signedToken(t, "kp_alice", "alice@example.com", time.Now().Add(time.Hour))
	srv := tokenServer(t, access)
	defer srv.Close()

	auth := NewAuthenticator(AuthConfig{TokenURL: srv.URL, ClientID: "cli"})

	t.Run("valid credentials", func(t *testing.T) {
		s, err := auth.Login(context.Background(), "alice", "secret")
		require.NoError(t, err)
		assert.Equal(t, "kp_alice", s.UserID)
		assert.Equal(t, "alice@example.com", s.Email)
		assert.Equal(t, access, s.Token.AccessToken)
		assert.Equal(t, "refresh-1", s.Token.RefreshToken)
		assert.True(t, s.Valid())
	})

	t.Run("invalid credentials", func(t *testing.T) {
		_, err := auth.Login(context.Background(), "alice", "wrong")
		assert.Error(t, err)
	})

	t.Run("missing credentials", func(t *testing.T) {
		_, err := auth.Login(context.Background(), "", "")
		assert.Error(t, err)
	})
}

func TestAuthenticator_OpaqueTokenFallsBackToUsername(t *testing.T) {
	srv := tokenServer(t, "opaque")
	defer srv.Close()

	s, err := NewAuthenticator(AuthConfig{TokenURL: srv.URL}).Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", s.UserID)
}

func TestAuthenticator_NotConfigured(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{})

	_, err := auth.Login(context.Background(), "a", "b")
	assert.ErrorIs(t, err, ErrAuthNotConfigured)
	assert.Nil(t, auth.ServiceTokenSource(context.Background()))
}

func TestAuthenticator_ServiceTokenSource(t *testing.T) {
	srv := tokenServer(t, "service-token")
	defer srv.Close()

	auth := NewAuthenticator(AuthConfig{TokenURL: srv.URL, ClientID: "svc", ClientSecret: "shh"})
	ts := auth.ServiceTokenSource(context.Background())
	require.NotNil(t, ts)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "service-token", tok.AccessToken)
}

func TestAuthenticator_TokenSource(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{})

	assert.Nil(t, auth.TokenSource(context.Background(), nil))

	s := &Session{Token: &oauth2.Token{AccessToken: "static", Expiry: time.Now().Add(time.Hour)}}
	tok, err := auth.TokenSource(context.Background(), s).Token()
	require.NoError(t, err)
	assert.Equal(t, "static", tok.AccessToken)
}
