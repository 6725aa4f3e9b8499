package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/voicelane/crm/internal/auth"
	"github.com/voicelane/crm/internal/config"
)

// SetupRoutes configures the CRM service routes. Health endpoints are open;
// everything under /api requires a valid session.
func SetupRoutes(cfg *config.Config, h *ContactHandlers, sessions *auth.SessionManager, health *HealthChecker) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	// CORS - allow credentials so the dashboard's session cookie survives
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", health.HandleHealth)
	r.Get("/health/live", health.HandleLiveness)
	r.Get("/health/ready", health.HandleReadiness)
	r.Get("/health/db", health.HandleDBStats)

	r.Route("/api", func(r chi.Router) {
		r.Use(sessions.Middleware)

		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", h.HandleListContacts)
			r.Post("/", h.HandleCreateContact)
			r.Post("/import", h.HandleImportContacts)
			r.Get("/export", h.HandleExportContacts)
			r.Post("/backfill", h.HandleBackfillContacts)
			r.Get("/{id}", h.HandleGetContact)
			r.Put("/{id}", h.HandleUpdateContact)
			r.Delete("/{id}", h.HandleDeleteContact)
		})

		// Internal caller: the calling platform reports call events here.
		r.Post("/internal/contacts/upsert-from-call", h.HandleUpsertFromCall)
	})

	return r
}
