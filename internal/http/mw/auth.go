// Package mw contains HTTP middleware for the ledgerbook admin API.
package mw

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// AdminClaimsKey is the context key for verified admin claims.
	AdminClaimsKey ContextKey = "admin_claims"
)

const (
	// AdminRole is the role claim an admin token must carry.
	AdminRole = "admin"
	// TokenIssuer is the iss claim on tokens minted by ledgerbook-admin.
	TokenIssuer = "ledgerbook-admin"
)

var (
	// ErrMissingToken is returned when no bearer token was presented.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrNotAdmin is returned for a valid token without the admin role.
	ErrNotAdmin = errors.New("token does not carry the admin role")
)

// AdminClaims are the claims carried by an admin bearer token.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueAdminToken mints an HS256 admin token for subject valid for ttl.
func IssueAdminToken(key []byte, subject string, ttl time.Duration, now time.Time) (string, error) {
	if len(key) == 0 {
		return "", errors.New("admin signing key is not configured")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	claims := AdminClaims{
		Role: AdminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseAdminToken verifies an admin token and returns its claims.
// Only HS256 is accepted and an expiry is required.
func ParseAdminToken(key []byte, token string) (*AdminClaims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	claims := &AdminClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(TokenIssuer),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.Role != AdminRole {
		return nil, ErrNotAdmin
	}
	return claims, nil
}

// bearerToken extracts the token from an Authorization header value.
// A bare token without the scheme is accepted.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

// WithAdminClaims returns a copy of ctx carrying claims.
func WithAdminClaims(ctx context.Context, claims *AdminClaims) context.Context {
	return context.WithValue(ctx, AdminClaimsKey, claims)
}

// GetAdminClaims returns the verified admin claims, or nil.
func GetAdminClaims(ctx context.Context) *AdminClaims {
	claims, _ := ctx.Value(AdminClaimsKey).(*AdminClaims)
	return claims
}
