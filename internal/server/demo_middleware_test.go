package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDemoMiddleware_MethodGate(t *testing.T) {
	passed := []string{http.MethodGet, http.MethodHead, http.MethodOptions}
	blocked := []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}

	h := DemoMiddleware(okHandler())

	for _, method := range passed {
		t.Run(method, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(method, "/api/v1/watch/status", http.NoBody))
			if rr.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
			}
		})
	}

	for _, method := range blocked {
		t.Run(method, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(method, "/api/v1/watch/subscribers", http.NoBody))
			if rr.Code != http.StatusMethodNotAllowed {
				t.Errorf("status = %d, want %d", rr.Code, http.StatusMethodNotAllowed)
			}
		})
	}
}

func TestDemoMiddleware_BlockedResponseIsProblem(t *testing.T) {
	h := DemoMiddleware(okHandler())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/v1/watch/subscribers/ops", http.NoBody))

	if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("Content-Type = %q, want application/problem+json", ct)
	}

	var p Problem
	if err := json.NewDecoder(rr.Body).Decode(&p); err != nil {
		t.Fatalf("decoding problem body: %v", err)
	}
	if p.Status != http.StatusMethodNotAllowed {
		t.Errorf("problem status = %d, want %d", p.Status, http.StatusMethodNotAllowed)
	}
	if p.Instance != "/api/v1/watch/subscribers/ops" {
		t.Errorf("problem instance = %q, want the request path", p.Instance)
	}
}
