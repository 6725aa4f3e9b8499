package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/voicelane/crm/internal/auth"
	"github.com/voicelane/crm/internal/config"
	"github.com/voicelane/crm/internal/contacts"
)

// Server is the CRM microservice HTTP server.
type Server struct {
	handler http.Handler
	server  *http.Server
}

// NewServer wires the contact handlers, auth middleware, and health checks
// onto a router. The database pool and Redis client are constructed by the
// caller and injected; redisClient may be nil.
func NewServer(cfg *config.Config, db *sql.DB, redisClient *redis.Client, store *contacts.Store) *Server {
	sessions := auth.NewSessionManager(db, redisClient, cfg.Auth.CookieName)
	health := NewHealthChecker(db, redisClient)
	handlers := NewContactHandlers(store, cfg.Imports)

	return &Server{
		handler: SetupRoutes(cfg, handlers, sessions, health),
	}
}

// ListenAndServe starts the HTTP server with conservative timeouts. CSV
// imports are bounded by config, so no endpoint needs long read windows.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       60 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}
