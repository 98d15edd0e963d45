package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestChain_WrapsOutermostFirst(t *testing.T) {
	var trace []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				trace = append(trace, name+" in")
				next.ServeHTTP(w, r)
				trace = append(trace, name+" out")
			})
		}
	}
	inner := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		trace = append(trace, "handler")
	})

	Chain(inner, tag("outer"), tag("inner")).ServeHTTP(
		httptest.NewRecorder(), httptest.NewRequest("GET", "/", http.NoBody))

	got := strings.Join(trace, ", ")
	want := "outer in, inner in, handler, inner out, outer out"
	if got != want {
		t.Errorf("execution trace = %q, want %q", got, want)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	t.Run("issues a UUID when absent", func(t *testing.T) {
		var ctxID string
		h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctxID = RequestID(r.Context())
		}))

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/watch/status", http.NoBody))

		headerID := rr.Header().Get("X-Request-ID")
		if headerID == "" {
			t.Fatal("X-Request-ID header not set")
		}
		if headerID != ctxID {
			t.Errorf("header ID %q != context ID %q", headerID, ctxID)
		}
		if len(headerID) != 36 {
			t.Errorf("len(ID) = %d, want 36 (UUID)", len(headerID))
		}
	})

	t.Run("propagates a caller-supplied ID", func(t *testing.T) {
		h := RequestIDMiddleware(okHandler())
		req := httptest.NewRequest("GET", "/", http.NoBody)
		req.Header.Set("X-Request-ID", "trace-42")

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		if got := rr.Header().Get("X-Request-ID"); got != "trace-42" {
			t.Errorf("X-Request-ID = %q, want trace-42", got)
		}
	})
}

func TestRequestID_OutsideRequest(t *testing.T) {
	if got := RequestID(httptest.NewRequest("GET", "/", http.NoBody).Context()); got != "" {
		t.Errorf("RequestID() = %q, want empty", got)
	}
}

func TestLoggingMiddleware_LogsCompletedRequests(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := LoggingMiddleware(zap.New(core), []string{"/healthz"})(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/watch/status", http.NoBody))

	entries := logs.FilterMessage("http request completed").All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["path"] != "/api/v1/watch/status" {
		t.Errorf("path field = %v, want /api/v1/watch/status", fields["path"])
	}
	if fields["status"] != int64(http.StatusTeapot) {
		t.Errorf("status field = %v, want %d", fields["status"], http.StatusTeapot)
	}
}

func TestLoggingMiddleware_QuietPathStaysOutOfLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := LoggingMiddleware(zap.New(core), []string{"/healthz"})(okHandler())

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/healthz", http.NoBody))

	if n := logs.Len(); n != 0 {
		t.Errorf("log entries = %d, want 0 for quiet path", n)
	}
}

func TestLoggingMiddleware_RecordsImplicitOK(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	// Handler writes a body without calling WriteHeader.
	h := LoggingMiddleware(zap.New(core), nil)(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", http.NoBody))

	if got := logs.All()[0].ContextMap()["status"]; got != int64(http.StatusOK) {
		t.Errorf("status field = %v, want %d", got, http.StatusOK)
	}
}

func TestRecoveryMiddleware_ConvertsPanicToProblem(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := RecoveryMiddleware(zap.New(core))(http.HandlerFunc(
		func(http.ResponseWriter, *http.Request) {
			panic("snapshot corrupted")
		}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/watch/status", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q, want application/problem+json", ct)
	}
	if logs.FilterMessage("handler panicked").Len() != 1 {
		t.Error("panic was not logged")
	}
}

func TestRecoveryMiddleware_PassesThroughNormally(t *testing.T) {
	h := RecoveryMiddleware(zap.NewNop())(okHandler())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", http.NoBody))

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeadersMiddleware(okHandler()).ServeHTTP(rr, httptest.NewRequest("GET", "/", http.NoBody))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	} {
		if got := rr.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if csp := rr.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "default-src 'self'") {
		t.Errorf("Content-Security-Policy = %q, want default-src 'self'", csp)
	}
}

func TestVersionHeaderMiddleware(t *testing.T) {
	rr := httptest.NewRecorder()
	VersionHeaderMiddleware(okHandler()).ServeHTTP(rr, httptest.NewRequest("GET", "/", http.NoBody))

	if rr.Header().Get("X-SiteWatch-Version") == "" {
		t.Error("X-SiteWatch-Version header not set")
	}
}

func TestRateLimitMiddleware_EnforcesPerIPBudget(t *testing.T) {
	h := RateLimitMiddleware(1, 2, nil)(okHandler())

	send := func(addr string) int {
		req := httptest.NewRequest("GET", "/api/v1/watch/status", http.NoBody)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	// Burst of 2 for the first client, then rejection.
	for i := 0; i < 2; i++ {
		if code := send("198.51.100.7:4000"); code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, code, http.StatusOK)
		}
	}
	if code := send("198.51.100.7:4000"); code != http.StatusTooManyRequests {
		t.Errorf("over-budget request: status = %d, want %d", code, http.StatusTooManyRequests)
	}

	// A different client has its own bucket.
	if code := send("198.51.100.8:4000"); code != http.StatusOK {
		t.Errorf("second client: status = %d, want %d", code, http.StatusOK)
	}
}

func TestRateLimitMiddleware_SkipPathBypassesLimiter(t *testing.T) {
	h := RateLimitMiddleware(0.01, 1, []string{"/metrics"})(okHandler())

	req := httptest.NewRequest("GET", "/metrics", http.NoBody)
	req.RemoteAddr = "198.51.100.9:4000"
	for i := 0; i < 20; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d on skip path: status = %d, want %d", i+1, rr.Code, http.StatusOK)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"plain remote addr", "192.0.2.10:52110", "", "192.0.2.10"},
		{"remote addr without port", "192.0.2.10", "", "192.0.2.10"},
		{"single forwarded hop", "127.0.0.1:80", "203.0.113.50", "203.0.113.50"},
		{"forwarded chain keeps first", "127.0.0.1:80", "203.0.113.50, 10.0.0.1", "203.0.113.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", http.NoBody)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResponseRecorder_FirstStatusWins(t *testing.T) {
	rec := &responseRecorder{ResponseWriter: httptest.NewRecorder()}
	rec.WriteHeader(http.StatusAccepted)
	rec.WriteHeader(http.StatusBadGateway)

	if rec.status != http.StatusAccepted {
		t.Errorf("status = %d, want %d", rec.status, http.StatusAccepted)
	}
}

func TestResponseRecorder_WriteImpliesOK(t *testing.T) {
	rec := &responseRecorder{ResponseWriter: httptest.NewRecorder()}
	if _, err := rec.Write([]byte("body")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if rec.status != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.status, http.StatusOK)
	}
}
