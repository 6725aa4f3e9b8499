package adminapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/voicelane/crm/internal/auth"
	"github.com/voicelane/crm/internal/config"
)

// Server is the admin panel HTTP server. It shares the database pool with the
// CRM service but runs as its own process on its own port.
type Server struct {
	handler http.Handler
	server  *http.Server
}

// NewServer wires the admin handlers and JWT middleware onto a router.
// It fails when no admin JWT secret is configured.
func NewServer(cfg *config.Config, db *sql.DB) (*Server, error) {
	tokens, err := auth.NewTokenManager(cfg.Auth.AdminJWTSecret,
		time.Duration(cfg.Auth.AdminTokenHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	handlers := NewHandlers(db, tokens)

	return &Server{
		handler: SetupRoutes(cfg, handlers, tokens),
	}, nil
}

// SetupRoutes configures the admin service routes. Login is open; everything
// under /api requires a valid admin token.
func SetupRoutes(cfg *config.Config, h *Handlers, tokens *auth.TokenManager) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", h.HandleLogin)

	r.Route("/api", func(r chi.Router) {
		r.Use(tokens.Middleware)

		r.Get("/dashboard", h.HandleDashboard)
		r.Get("/billing", h.HandleBilling)

		r.Get("/users", h.HandleListUsers)
		r.Get("/users/{id}", h.HandleGetUser)
		r.Get("/workspaces", h.HandleListWorkspaces)
		r.Get("/workspaces/{id}", h.HandleGetWorkspace)
		r.Get("/agents", h.HandleListAgents)
		r.Get("/agents/{id}", h.HandleGetAgent)
		r.Get("/calls", h.HandleListCalls)
		r.Get("/calls/{id}", h.HandleGetCall)
		r.Get("/jobs", h.HandleListJobs)
		r.Get("/jobs/{id}", h.HandleGetJob)
		r.Get("/phone-numbers", h.HandleListPhoneNumbers)
		r.Get("/phone-numbers/{id}", h.HandleGetPhoneNumber)
		r.Get("/contacts", h.HandleListContacts)
		r.Get("/contacts/{id}", h.HandleGetContact)
	})

	return r
}

// ListenAndServe starts the admin HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
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
