package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type mockVerifier struct {
	verifyFn func(token string) error
}

func (m *mockVerifier) Verify(token string) error {
	return m.verifyFn(token)
}

func acceptOnly(valid string) *mockVerifier {
	return &mockVerifier{verifyFn: func(token string) error {
		if token == valid {
			return nil
		}
		return errors.New("invalid")
	}}
}

func newGateHandler(v TokenVerifier) http.Handler {
	return NewSiteGateMiddleware("soiree_auth", v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestSiteGate_RedirectsWithoutCookie(t *testing.T) {
	handler := newGateHandler(acceptOnly("good"))

	req := httptest.NewRequest(http.MethodGet, "/roulette", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login?from=%2Froulette" {
		t.Errorf("Location = %q", loc)
	}
}

func TestSiteGate_RejectsInvalidCookie(t *testing.T) {
	handler := newGateHandler(acceptOnly("good"))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	// 署名の無い固定値は通らないこと
	req.AddCookie(&http.Cookie{Name: "soiree_auth", Value: "1"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Errorf("status = %d, want 302", w.Code)
	}
}

func TestSiteGate_AllowsValidCookie(t *testing.T) {
	handler := newGateHandler(acceptOnly("good"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "soiree_auth", Value: "good"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestSiteGate_ExemptPaths(t *testing.T) {
	handler := newGateHandler(&mockVerifier{verifyFn: func(string) error {
		t.Fatal("対象外のパスで検証を行わないこと")
		return nil
	}})

	for _, path := range []string{"/login", "/api/messages", "/static/app.css", "/favicon.ico", "/healthz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, w.Code)
		}
	}
}

func TestSafeRedirectTarget(t *testing.T) {
	tests := []struct {
		from string
		want string
	}{
		{"/roulette", "/roulette"},
		{"", "/"},
		{"https://evil.example", "/"},
		{"//evil.example", "/"},
		{"/\\evil.example", "/"},
		{"/login", "/"},
	}
	for _, tt := range tests {
		if got := SafeRedirectTarget(tt.from); got != tt.want {
			t.Errorf("SafeRedirectTarget(%q) = %q, want %q", tt.from, got, tt.want)
		}
	}
}
