// Package health serves the liveness endpoint hosting platforms poll.
package health

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Message is the body of a successful health check
const Message = "Discord bot is running!"

// NewRouter returns the health check routes
func NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	alive := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(Message))
	}
	r.Get("/", alive)
	r.Get("/health", alive)

	return r
}

// Server runs the health endpoint in the background
type Server struct {
	server *http.Server
}

// NewServer creates a health server listening on addr
func NewServer(addr string) *Server {
	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      NewRouter(),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start begins serving in a goroutine
func (s *Server) Start() {
	go func() {
		log.Printf("🌐 Health check listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Health server error: %v", err)
		}
	}()
}

// Stop shuts the server down gracefully
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
