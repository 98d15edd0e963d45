// Package server provides the sitewatch HTTP host: core endpoints, plugin
// route mounting, and the middleware stack.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/HollowOak/sitewatch/internal/version"
	"github.com/HollowOak/sitewatch/pkg/plugin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// PluginSource is the server's consumer-side view of the plugin registry.
type PluginSource interface {
	AllRoutes() map[string][]plugin.Route
	All() []plugin.Plugin
}

// ReadinessChecker reports whether the server should accept traffic.
// Nil means ready.
type ReadinessChecker func(ctx context.Context) error

// SimpleRouteRegistrar lets non-plugin components (the WebSocket stream)
// mount routes without a registry round trip.
type SimpleRouteRegistrar interface {
	RegisterRoutes(mux *http.ServeMux)
}

// Paths that probes and scrapers hit constantly: logged never, rate limited
// never.
var quietPaths = []string{"/healthz", "/readyz", "/metrics"}

// Server hosts the sitewatch HTTP API.
type Server struct {
	httpServer *http.Server
	plugins    PluginSource
	logger     *zap.Logger
	ready      ReadinessChecker
}

// New assembles the server: core routes, plugin routes, any extra
// registrars, then the middleware stack. devMode additionally serves the
// Swagger UI at /swagger/; demoMode rejects every mutating method.
func New(addr string, plugins PluginSource, logger *zap.Logger, ready ReadinessChecker, devMode, demoMode bool, extraRoutes ...SimpleRouteRegistrar) *Server {
	s := &Server{
		plugins: plugins,
		logger:  logger,
		ready:   ready,
	}

	mux := s.buildMux(devMode, extraRoutes)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      Chain(mux, s.middlewareStack(demoMode)...),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) buildMux(devMode bool, extraRoutes []SimpleRouteRegistrar) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/plugins", s.handlePlugins)

	for _, r := range extraRoutes {
		r.RegisterRoutes(mux)
	}

	for pluginName, routes := range s.plugins.AllRoutes() {
		for _, route := range routes {
			pattern := route.Method + " /api/v1/" + pluginName + route.Path
			mux.HandleFunc(pattern, route.Handler)
			s.logger.Debug("plugin route mounted",
				zap.String("pattern", pattern),
				zap.String("plugin", pluginName),
			)
		}
	}

	if devMode {
		mux.Handle("GET /swagger/", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
		s.logger.Info("swagger UI enabled (dev_mode)", zap.String("path", "/swagger/"))
	}

	return mux
}

func (s *Server) middlewareStack(demoMode bool) []Middleware {
	stack := []Middleware{
		RecoveryMiddleware(s.logger),
		RequestIDMiddleware,
		LoggingMiddleware(s.logger, quietPaths),
		SecurityHeadersMiddleware,
		VersionHeaderMiddleware,
		RateLimitMiddleware(100, 200, quietPaths),
	}
	if demoMode {
		stack = append(stack, DemoMiddleware)
		s.logger.Info("demo mode enabled, mutating requests are rejected")
	}
	return stack
}

// Start serves until Shutdown or a listener failure.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleHealthz is the liveness probe: the process is up.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleReadyz is the readiness probe: 503 until the checker passes.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status  string                   `json:"status" example:"ok"`
	Service string                   `json:"service" example:"sitewatch"`
	Version map[string]string        `json:"version"`
	Plugins map[string]plugin.Health `json:"plugins,omitempty"`
}

// handleHealth reports service health, including the self-reported health
// of every plugin implementing HealthChecker. Any plugin not reporting
// "healthy" degrades the overall status.
//
//	@Summary		Health check
//	@Description	Returns service and per-plugin health with version information.
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Router			/health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Service: "sitewatch",
		Version: version.Map(),
		Plugins: make(map[string]plugin.Health),
	}
	for _, p := range s.plugins.All() {
		hc, ok := p.(plugin.HealthChecker)
		if !ok {
			continue
		}
		h := hc.Health(r.Context())
		resp.Plugins[p.Info().Name] = h
		if h.Status != "healthy" {
			resp.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// PluginResponse is one entry of GET /api/v1/plugins.
type PluginResponse struct {
	Name        string   `json:"name" example:"watch"`
	Version     string   `json:"version" example:"0.1.0"`
	Description string   `json:"description" example:"HTTP endpoint availability monitoring"`
	Required    bool     `json:"required" example:"true"`
	Roles       []string `json:"roles,omitempty"`
}

// handlePlugins lists the active plugins.
//
//	@Summary		List plugins
//	@Description	Returns all active plugins with their metadata.
//	@Tags			system
//	@Produce		json
//	@Success		200	{array}	PluginResponse
//	@Router			/plugins [get]
func (s *Server) handlePlugins(w http.ResponseWriter, _ *http.Request) {
	active := s.plugins.All()
	out := make([]PluginResponse, 0, len(active))
	for _, p := range active {
		info := p.Info()
		out = append(out, PluginResponse{
			Name:        info.Name,
			Version:     info.Version,
			Description: info.Description,
			Required:    info.Required,
			Roles:       info.Roles,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
