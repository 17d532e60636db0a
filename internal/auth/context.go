package auth

import (
	"context"
	"slices"
)

type contextKey int

const (
	claimsKey contextKey = iota
)

// Claims returns the verified claims from context, or nil if not authenticated.
func Claims(ctx context.Context) *UserClaims {
	claims, _ := ctx.Value(claimsKey).(*UserClaims)
	return claims
}

// UserID returns the user ID (subject) from context, or empty string if not authenticated.
func UserID(ctx context.Context) string {
	claims := Claims(ctx)
	if claims == nil {
		return ""
	}
	return claims.Subject
}

// IsAuthenticated returns true if the request has valid authentication.
func IsAuthenticated(ctx context.Context) bool {
	return Claims(ctx) != nil
}

// HasPermission checks if the user has a specific permission.
func HasPermission(ctx context.Context, permission string) bool {
	claims := Claims(ctx)
	return claims != nil && slices.Contains(claims.Permissions, permission)
}

// HasRole checks if the user has a specific role.
func HasRole(ctx context.Context, role string) bool {
	claims := Claims(ctx)
	return claims != nil && slices.Contains(claims.Roles, role)
}
