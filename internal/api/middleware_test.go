package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		header     string
		wantCalled bool
		wantError  string
	}{
		{name: "missing header", configured: "secret-token", wantError: "missing authorization header"},
		{name: "basic scheme", configured: "secret-token", header: "Basic dXNlcjpwYXNz", wantError: "invalid authorization format"},
		{name: "no separator", configured: "secret-token", header: "Bearersecret-token", wantError: "invalid authorization format"},
		{name: "wrong token", configured: "secret-token", header: "Bearer wrong-token", wantError: "invalid token"},
		{name: "valid token", configured: "secret-token", header: "Bearer secret-token", wantCalled: true},
		{name: "lowercase scheme", configured: "secret-token", header: "bearer secret-token", wantCalled: true},
		{name: "auth disabled", configured: "", wantCalled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.BearerToken = tt.configured
			srv := testServer(t, cfg)

			called := false
			handler := srv.withAuth(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler(w, req)

			if called != tt.wantCalled {
				t.Fatalf("called = %v, want %v", called, tt.wantCalled)
			}
			if tt.wantCalled {
				if w.Code != http.StatusOK {
					t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
				}
				return
			}

			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if resp.Error != tt.wantError {
				t.Errorf("expected error %q, got %q", tt.wantError, resp.Error)
			}
		})
	}
}

func TestRequestIDGenerated(t *testing.T) {
	srv := testServer(t, testConfig())

	var seen string
	handler := srv.withRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("request ID %q is not a UUID: %v", seen, err)
	}
	if got := w.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("response header = %q, want %q", got, seen)
	}
}

func TestRequestIDHonorsIncoming(t *testing.T) {
	srv := testServer(t, testConfig())
	incoming := uuid.NewString()

	var seen string
	handler := srv.withRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(RequestIDHeader, incoming)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen != incoming {
		t.Errorf("request ID = %q, want %q", seen, incoming)
	}
}

func TestRequestIDReplacesMalformed(t *testing.T) {
	srv := testServer(t, testConfig())

	var seen string
	handler := srv.withRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen == "<script>" || seen == "" {
		t.Errorf("malformed request ID was not replaced: %q", seen)
	}
}
