package auth

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func TestClaims(t *testing.T) {
	t.Run("returns nil for empty context", func(t *testing.T) {
		assert.Nil(t, Claims(context.Background()))
	})

	t.Run("returns claims from context", func(t *testing.T) {
		claims := &UserClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject: "user_123",
			},
			Email: "test@example.com",
		}
		got := Claims(WithClaims(context.Background(), claims))
		assert.NotNil(t, got)
		assert.Equal(t, "user_123", got.Subject)
		assert.Equal(t, "test@example.com", got.Email)
	})
}

func TestUserID(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", UserID(ctx))

	ctx = WithClaims(ctx, NewTestClaims("kp_abc123", "user@example.com"))
	assert.Equal(t, "kp_abc123", UserID(ctx))
}

func TestIsAuthenticated(t *testing.T) {
	assert.False(t, IsAuthenticated(context.Background()))
	assert.True(t, IsAuthenticated(WithClaims(context.Background(), &UserClaims{})))
}

func TestHasPermission(t *testing.T) {
	assert.False(t, HasPermission(context.Background(), "analyze"))

	ctx := WithClaims(context.Background(), &UserClaims{Permissions: []string{"read:history", "analyze"}})
	assert.True(t, HasPermission(ctx, "analyze"))
	assert.False(t, HasPermission(ctx, "delete:history"))
}

func TestHasRole(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  bool
	}{
		{"no roles", nil, false},
		{"missing role", []string{"viewer", "analyst"}, false},
		{"existing role", []string{"admin"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := WithClaims(context.Background(), &UserClaims{Roles: tt.roles})
			assert.Equal(t, tt.want, HasRole(ctx, "admin"))
		})
	}
	assert.False(t, HasRole(context.Background(), "admin"))
}
