package mw

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

// ========================================
// Token Tests
// ========================================

func TestIssueAndParseAdminToken(t *testing.T) {
	token, err := IssueAdminToken(testKey, "ops@example.com", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("IssueAdminToken() error = %v", err)
	}

	claims, err := ParseAdminToken(testKey, token)
	if err != nil {
		t.Fatalf("ParseAdminToken() error = %v", err)
	}
	if claims.Subject != "ops@example.com" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "ops@example.com")
	}
	if claims.Role != AdminRole {
		t.Errorf("Role = %q, want %q", claims.Role, AdminRole)
	}
	if claims.Issuer != TokenIssuer {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, TokenIssuer)
	}
}

func TestIssueAdminToken_Invalid(t *testing.T) {
	if _, err := IssueAdminToken(nil, "ops", time.Hour, time.Now()); err == nil {
		t.Error("expected error for empty key")
	}
	if _, err := IssueAdminToken(testKey, "ops", 0, time.Now()); err == nil {
		t.Error("expected error for zero ttl")
	}
}

func TestParseAdminToken_Rejects(t *testing.T) {
	now := time.Now()
	sign := func(method jwt.SigningMethod, key any, claims jwt.Claims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("failed to sign: %v", err)
		}
		return s
	}
	valid := func() AdminClaims {
		return AdminClaims{
			Role: AdminRole,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    TokenIssuer,
				Subject:   "ops",
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
	}

	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))

	noExpiry := valid()
	noExpiry.ExpiresAt = nil

	wrongIssuer := valid()
	wrongIssuer.Issuer = "someone-else"

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"empty", "", ErrMissingToken},
		{"garbage", "not-a-jwt", nil},
		{"wrong key", sign(jwt.SigningMethodHS256, []byte("another-key-another-key-another!!"), valid()), nil},
		{"wrong algorithm", sign(jwt.SigningMethodHS512, testKey, valid()), nil},
		{"unsigned", sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid()), nil},
		{"expired", sign(jwt.SigningMethodHS256, testKey, expired), nil},
		{"no expiry", sign(jwt.SigningMethodHS256, testKey, noExpiry), nil},
		{"wrong issuer", sign(jwt.SigningMethodHS256, testKey, wrongIssuer), nil},
		{"not admin", sign(jwt.SigningMethodHS256, testKey, AdminClaims{Role: "viewer", RegisteredClaims: valid().RegisteredClaims}), ErrNotAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAdminToken(testKey, tt.token)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// ========================================
// Header and Context Tests
// ========================================

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer abc", "abc"},
		{"  Bearer   abc  ", "abc"},
		{"abc", "abc"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := bearerToken(tt.header); got != tt.want {
			t.Errorf("bearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestAdminClaimsContext(t *testing.T) {
	if GetAdminClaims(context.Background()) != nil {
		t.Error("expected nil claims on empty context")
	}

	claims := &AdminClaims{Role: AdminRole}
	ctx := WithAdminClaims(context.Background(), claims)
	if got := GetAdminClaims(ctx); got != claims {
		t.Errorf("GetAdminClaims() = %v, want %v", got, claims)
	}
}
