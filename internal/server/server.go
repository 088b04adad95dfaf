// Package server provides HTTP server initialization and lifecycle
// management for the Echomap API.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/lexfield/echomap/internal/config"
	"github.com/lexfield/echomap/internal/storage"
	"github.com/lexfield/echomap/web/handlers"
)

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

// Start initializes and starts the HTTP server. It returns the actual
// address being listened on (useful for testing with port 0) and the
// WebSocketHub carrying the progress feed. The server shuts down
// gracefully when ctx is cancelled.
func Start(ctx context.Context, cfg *config.Config, store storage.Store) (string, *handlers.WebSocketHub, error) {
	mux := http.NewServeMux()

	wsHub := handlers.NewWebSocketHub(cfg.Server.Port)
	go wsHub.Run()

	// 10 req/sec sustained, burst of 20
	rateLimiter := handlers.NewRateLimiter(10.0, 20)

	apiHandlers := handlers.NewAPIHandlers(store, cfg)
	if cfg.Features.ProgressBroadcast {
		apiHandlers.SetHub(wsHub)
	}
	statsHandler := handlers.NewStatsHandler(store)

	// API routes behind authentication
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/conversations", apiHandlers.CreateConversation)
	apiMux.HandleFunc("GET /api/conversations", apiHandlers.ListConversations)
	apiMux.HandleFunc("GET /api/conversations/{id}", apiHandlers.GetConversation)
	apiMux.HandleFunc("DELETE /api/conversations/{id}", apiHandlers.DeleteConversation)
	apiMux.HandleFunc("GET /api/conversations/{id}/terms", apiHandlers.GetTerms)
	apiMux.HandleFunc("POST /api/conversations/{id}/analyze", apiHandlers.RunAnalysis)
	apiMux.HandleFunc("GET /api/conversations/{id}/runs", apiHandlers.ListRuns)
	apiMux.HandleFunc("GET /api/runs/{id}", apiHandlers.GetRun)
	apiMux.HandleFunc("GET /api/runs/{id}/similarity", apiHandlers.GetSimilarity)
	apiMux.HandleFunc("GET /api/runs/{id}/recurrence", apiHandlers.GetRecurrence)
	apiMux.HandleFunc("GET /api/runs/{id}/grouped", apiHandlers.GetGrouped)
	apiMux.HandleFunc("GET /api/stats", statsHandler.GetStats)

	// Health check endpoint stays unauthenticated so load balancers and
	// probes can reach it.
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"status":"ok"}`)
	})

	mux.Handle("/api/", handlers.RequireAuth(apiMux, cfg))
	mux.Handle("/ws", wsHub)

	handler := handlers.RateLimitMiddleware(mux, rateLimiter)
	handler = securityHeadersMiddleware(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		wsHub.Stop()
		return "", nil, fmt.Errorf("server: failed to listen on %s: %w", addr, err)
	}

	actualAddr := listener.Addr().String()

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		wsHub.Stop()
	}()

	return actualAddr, wsHub, nil
}
