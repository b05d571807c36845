package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Fantasim/runeidx/internal/config"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func testConfig() *config.Config {
	return &config.Config{AllowedHosts: []string{"localhost", "127.0.0.1"}}
}

func TestHostCheckAllowsLocalhost(t *testing.T) {
	handler := NewHostCheck(testConfig())(okHandler)

	for _, host := range []string{"localhost", "127.0.0.1", "localhost:8080", "127.0.0.1:8080"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = host
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("host %q: expected 200, got %d", host, rec.Code)
		}
	}
}

func TestHostCheckBlocksNonLocal(t *testing.T) {
	handler := NewHostCheck(testConfig())(okHandler)

	for _, host := range []string{"evil.com", "192.168.1.1", ""} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = host
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("host %q: expected 403, got %d", host, rec.Code)
		}
	}
}

func TestCORSAllowsLocalhostOrigin(t *testing.T) {
	handler := NewCORS(testConfig())(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:8080" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestCORSBlocksExternalOrigin(t *testing.T) {
	handler := NewCORS(testConfig())(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.com")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := NewCORS(testConfig())(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
}

func TestCSRFGetSetsCookie(t *testing.T) {
	handler := CSRF(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	var csrfCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "csrf_token" {
			csrfCookie = c
		}
	}
	if csrfCookie == nil {
		t.Fatal("expected csrf_token cookie to be set")
	}
	if len(csrfCookie.Value) != 64 {
		t.Errorf("csrf token length = %d, want 64", len(csrfCookie.Value))
	}
}

func TestCSRFPostValidToken(t *testing.T) {
	handler := CSRF(okHandler)
	token := "abcdef1234567890abcdef1234567890abcdef1234567890abcdef1234567890"

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: token})
	req.Header.Set("X-CSRF-Token", token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestCSRFPostMismatchedToken(t *testing.T) {
	handler := CSRF(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "cookie_token"})
	req.Header.Set("X-CSRF-Token", "different_token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestCSRFPostMissingHeader(t *testing.T) {
	handler := CSRF(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "sometoken"})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}
