package mw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
)

type whoamiOutput struct {
	Body struct {
		Subject string `json:"subject"`
	}
}

func whoami(ctx context.Context, _ *struct{}) (*whoamiOutput, error) {
	out := &whoamiOutput{}
	if claims := GetAdminClaims(ctx); claims != nil {
		out.Body.Subject = claims.Subject
	}
	return out, nil
}

// newTestAPI builds a router with one public and one protected operation.
func newTestAPI(t *testing.T, key []byte) http.Handler {
	t.Helper()

	router := chi.NewRouter()
	router.Use(APIVersion())
	api := humachi.New(router, huma.DefaultConfig("test", "1.0.0"))
	api.UseMiddleware(HumaAuth(api, HumaAuthConfig{SigningKey: key}))

	PublicGet(api, "/public", whoami, WithOperationID("public"))
	ProtectedGet(api, "/protected", whoami, WithOperationID("protected"), WithTags("Admin"))
	return router
}

func doGet(t *testing.T, h http.Handler, path, auth string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ========================================
// HumaAuth Tests
// ========================================

func TestHumaAuth(t *testing.T) {
	h := newTestAPI(t, testKey)

	adminToken, err := IssueAdminToken(testKey, "ops", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	otherToken, err := IssueAdminToken([]byte("ffffffffffffffffffffffffffffffff"), "ops", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	tests := []struct {
		name       string
		path       string
		auth       string
		wantStatus int
	}{
		{"public without token", "/public", "", http.StatusOK},
		{"protected without token", "/protected", "", http.StatusUnauthorized},
		{"protected with foreign token", "/protected", "Bearer " + otherToken, http.StatusUnauthorized},
		{"protected with admin token", "/protected", "Bearer " + adminToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doGet(t, h, tt.path, tt.auth)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if rec.Header().Get(VersionHeader) == "" {
				t.Errorf("missing %s header", VersionHeader)
			}
		})
	}
}

func TestHumaAuth_ClaimsReachHandler(t *testing.T) {
	h := newTestAPI(t, testKey)
	token, _ := IssueAdminToken(testKey, "ops@example.com", time.Hour, time.Now())

	rec := doGet(t, h, "/protected", "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `"subject":"ops@example.com"`) {
		t.Errorf("body = %s, want subject", body)
	}
}

func TestHumaAuth_Disabled(t *testing.T) {
	h := newTestAPI(t, nil)

	if rec := doGet(t, h, "/protected", "Bearer anything"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if rec := doGet(t, h, "/public", ""); rec.Code != http.StatusOK {
		t.Errorf("public status = %d, want 200", rec.Code)
	}
}

// ========================================
// Rate Limit Tests
// ========================================

func TestRateLimitByIP(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RateLimitByIP(2)(ok)

	codes := make([]int, 0, 3)
	for n := 0; n < 3; n++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.10:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("first two requests = %v, want 200", codes[:2])
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", codes[2])
	}
}

func TestRateLimitByIP_Disabled(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RateLimitByIP(0)(ok)

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, rec.Code)
		}
	}
}
