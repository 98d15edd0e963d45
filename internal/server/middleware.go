package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/HollowOak/sitewatch/internal/version"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitewatch_http_requests_total",
			Help: "HTTP requests served, by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sitewatch_http_request_duration_seconds",
			Help:    "HTTP request handling time in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration)
}

// Middleware wraps an http.Handler with extra behavior.
type Middleware func(http.Handler) http.Handler

// Chain nests middleware around handler, first entry outermost.
func Chain(handler http.Handler, middleware ...Middleware) http.Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	return handler
}

type requestIDKey struct{}

// RequestID returns the request's correlation ID, or "" outside a request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestIDMiddleware tags every request with a correlation ID. An incoming
// X-Request-ID is trusted and propagated; otherwise a fresh UUID is issued.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// responseRecorder captures the status code a handler writes.
// A zero status means the handler never wrote one.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *responseRecorder) WriteHeader(code int) {
	if rec.status == 0 {
		rec.status = code
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *responseRecorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	return rec.ResponseWriter.Write(b)
}

// LoggingMiddleware logs completed requests and feeds the HTTP Prometheus
// metrics. Paths in quietPaths stay out of the log but still count in the
// metrics, keeping probe scrapers from flooding the output.
func LoggingMiddleware(logger *zap.Logger, quietPaths []string) Middleware {
	quiet := make(map[string]struct{}, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &responseRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}

			httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(elapsed.Seconds())

			if _, ok := quiet[r.URL.Path]; ok {
				return
			}
			logger.Info("http request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Duration("duration", elapsed),
				zap.String("remote", r.RemoteAddr),
				zap.String("request_id", RequestID(r.Context())),
			)
		})
	}
}

// RecoveryMiddleware turns a handler panic into a 500 problem response
// instead of a dropped connection.
func RecoveryMiddleware(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("handler panicked",
						zap.String("path", r.URL.Path),
						zap.String("request_id", RequestID(r.Context())),
						zap.Any("panic", rec),
					)
					InternalError(w, "unhandled internal error", r.URL.Path)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeadersMiddleware sets the standard hardening headers. The CSP
// permits inline styles and data: images, which the Swagger UI needs.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; font-src 'self'")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// VersionHeaderMiddleware stamps responses with the server build version.
func VersionHeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SiteWatch-Version", version.Short())
		next.ServeHTTP(w, r)
	})
}

// RateLimitMiddleware applies a per-client-IP token bucket. Paths in
// skipPaths bypass the limiter entirely.
func RateLimitMiddleware(rps float64, burst int, skipPaths []string) Middleware {
	limiter := newVisitorLimiter(rate.Limit(rps), burst)
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			if !limiter.allow(clientIP(r)) {
				RateLimited(w, "too many requests", r.URL.Path)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// visitorLimiter keeps one token bucket per client IP and sweeps idle
// entries at most once a minute to bound memory.
type visitorLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	lastSweep time.Time
}

type visitor struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

func newVisitorLimiter(limit rate.Limit, burst int) *visitorLimiter {
	return &visitorLimiter{
		visitors:  make(map[string]*visitor),
		limit:     limit,
		burst:     burst,
		lastSweep: time.Now(),
	}
}

func (l *visitorLimiter) allow(ip string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > time.Minute {
		l.sweepLocked(now)
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{bucket: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.bucket.Allow()
}

// sweepLocked drops visitors idle for over ten minutes. Caller holds l.mu.
func (l *visitorLimiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-10 * time.Minute)
	for ip, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, ip)
		}
	}
	l.lastSweep = now
}

// clientIP resolves the client address, preferring the first entry of
// X-Forwarded-For when a proxy added one.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
