package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// WithClaims returns a new context with the given claims.
func WithClaims(ctx context.Context, claims *UserClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// NewTestClaims creates UserClaims with the given user ID and email.
// This is primarily for testing purposes.
func NewTestClaims(userID, email string) *UserClaims {
	return &UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: userID,
		},
		Email: email,
	}
}
