// Package server provides the HTTP REST API over the runner's operation
// contract.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jonathan/search-runner/internal/runner"
)

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	svc        *runner.Service
}

// Config holds server configuration
type Config struct {
	Port int
}

// New creates a new server instance
func New(svc *runner.Service, cfg Config) *Server {
	s := &Server{svc: svc}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	// Search endpoints
	mux.HandleFunc("POST /searches", s.handleCreateSearch)
	mux.HandleFunc("GET /searches", s.handleListSearches)
	mux.HandleFunc("GET /searches/{slug}", s.handleGetSearch)
	mux.HandleFunc("PUT /searches/{slug}", s.handleUpdateSearch)
	mux.HandleFunc("DELETE /searches/{slug}", s.handleDeleteSearch)

	// Job endpoints
	mux.HandleFunc("POST /searches/{slug}/run", s.handleRunNow)
	mux.HandleFunc("GET /searches/{slug}/jobs", s.handleListJobs)
	mux.HandleFunc("GET /searches/{slug}/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("PATCH /searches/{slug}/jobs/{id}", s.handleSetJobTitle)
	mux.HandleFunc("POST /searches/{slug}/jobs/{id}/cancel", s.handleCancel)
	mux.HandleFunc("GET /searches/{slug}/jobs/{id}/artifact", s.handleArtifact)
	mux.HandleFunc("GET /searches/{slug}/jobs/{id}/attach", s.handleAttach)

	// Maintenance
	mux.HandleFunc("POST /reconcile", s.handleReconcile)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withLogging(s.withCORS(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start listens for requests until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Println("Server stopped")
	return nil
}

// Handler exposes the routed handler for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// serviceError maps a service failure onto an HTTP error response
func (s *Server) serviceError(w http.ResponseWriter, err error) {
	s.errorResponse(w, HTTPStatus(err), err.Error())
}
