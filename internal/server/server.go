// Package server provides HTTP server initialization and lifecycle management
// for faultline-web.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scrypster/faultline/internal/api/mcp"
	"github.com/scrypster/faultline/internal/config"
	"github.com/scrypster/faultline/internal/triage"
	"github.com/scrypster/faultline/web/handlers"
)

// Options carries the components served over HTTP. Service is required.
type Options struct {
	Service  *triage.Service
	Store    handlers.Pinger        // health checks; optional
	MCP      *mcp.Server            // mounted at POST /mcp; optional
	Hub      *handlers.WebSocketHub // live feed; created when nil
	Gatherer prometheus.Gatherer    // exposed at /metrics; optional
	Version  string
}

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// NewHandler builds the full middleware-wrapped route tree.
func NewHandler(cfg *config.Config, opts Options) http.Handler {
	api := handlers.NewAPIHandlers(opts.Service, opts.Store, opts.Version)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/incidents", api.PostIncident)
	apiMux.HandleFunc("GET /api/incidents", api.ListIncidents)
	apiMux.HandleFunc("GET /api/known-errors", api.ListKnownErrors)
	apiMux.HandleFunc("GET /api/known-errors/{fingerprint}", api.GetKnownError)

	mux := http.NewServeMux()

	// Health endpoint: no auth, used by load balancers and monitoring.
	mux.HandleFunc("GET /api/health", api.Health)

	mux.Handle("/api/", handlers.RequireAuth(apiMux, cfg))

	if opts.MCP != nil {
		mux.Handle("/mcp", handlers.RequireAuth(opts.MCP, cfg))
	}

	// WebSocket endpoint (origin validation handles security)
	if opts.Hub != nil {
		mux.Handle("GET /ws", opts.Hub)
	}

	if opts.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	// Rate limiting inside CORS so preflights are answered even when throttled.
	handler := handlers.RateLimitMiddleware(mux, handlers.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst))
	handler = handlers.CORSMiddleware(handler, cfg.Server.CORSOrigins)
	return securityHeadersMiddleware(handler)
}

// Start listens on cfg.Addr() and serves until ctx is cancelled.
// It returns the actual address being listened on (useful for testing with
// port 0) and the hub that live events should be sent to.
func Start(ctx context.Context, cfg *config.Config, opts Options) (string, *handlers.WebSocketHub, error) {
	if opts.Hub == nil {
		opts.Hub = handlers.NewWebSocketHub(cfg.Server.CORSOrigins)
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}

	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return "", nil, fmt.Errorf("failed to listen on %s: %w", cfg.Addr(), err)
	}

	go opts.Hub.Run()

	server := &http.Server{
		Handler:      NewHandler(cfg, opts),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		opts.Hub.Stop()
	}()

	return listener.Addr().String(), opts.Hub, nil
}
