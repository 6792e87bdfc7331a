package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"laundripos/backend/internal/domain"
)

func TestSecurityHeaders(t *testing.T) {
	api := newTestAPI(t)

	rec := doRequest(t, api, http.MethodGet, "/healthz", "", "", nil)
	headers := map[string]string{
		"X-Content-Type-Options":      "nosniff",
		"X-Frame-Options":             "DENY",
		"Referrer-Policy":             "strict-origin-when-cross-origin",
		"Cross-Origin-Opener-Policy":  "same-origin",
		"Access-Control-Allow-Origin": "*",
	}
	for key, want := range headers {
		if got := rec.Header().Get(key); got != want {
			t.Fatalf("expected %s=%s, got %s", key, want, got)
		}
	}
}

func TestOptionsPreflight(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/checkout", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on preflight, got %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "DELETE") {
		t.Fatalf("expected DELETE in allowed methods")
	}
}

func TestCSRFRequiredOnMutations(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "kasir", "kasir123")

	rec := doRequest(t, api, http.MethodPost, "/api/v1/checkout", token, "", checkoutBody())
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without csrf token, got %d", rec.Code)
	}

	rec = doRequest(t, api, http.MethodPost, "/api/v1/checkout", token, "token-palsu", checkoutBody())
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with forged csrf token, got %d", rec.Code)
	}

	// Reads never need a token.
	rec = doRequest(t, api, http.MethodGet, "/api/v1/offerings", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on read, got %d", rec.Code)
	}
}

func TestCSRFTokenRoundTrip(t *testing.T) {
	api := newTestAPI(t)

	token := api.generateCSRFToken()
	if !api.validateCSRFToken(token) {
		t.Fatalf("expected freshly issued token to validate")
	}
	if api.validateCSRFToken("deadbeef") {
		t.Fatalf("expected forged token to fail")
	}
	if api.validateCSRFToken("") {
		t.Fatalf("expected empty token to fail")
	}

	other := newTestAPI(t)
	if other.validateCSRFToken(token) {
		t.Fatalf("expected token from another instance to fail")
	}
}

func TestLoginRateLimit(t *testing.T) {
	api := newTestAPI(t)

	bad := domain.LoginRequest{Username: "admin", Password: "salah"}
	for i := 0; i < 5; i++ {
		rec := doRequest(t, api, http.MethodPost, "/api/v1/auth/login", "", "", bad)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}

	rec := doRequest(t, api, http.MethodPost, "/api/v1/auth/login", "", "", bad)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", rec.Code)
	}
}

func TestBodySizeLimit(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "kasir", "kasir123")
	csrf := csrfToken(t, api)

	huge := bytes.Repeat([]byte("a"), (1<<20)+1)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(huge))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)

	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized body, got %d", rec.Code)
	}
}

func TestAttemptLimiterWindow(t *testing.T) {
	limiter := newAttemptLimiter(2, time.Minute)

	if !limiter.Allow("10.0.0.1") || !limiter.Allow("10.0.0.1") {
		t.Fatalf("expected first two attempts to pass")
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatalf("expected third attempt to be blocked")
	}
	// Other clients are tracked independently.
	if !limiter.Allow("10.0.0.2") {
		t.Fatalf("expected different client to pass")
	}
}
