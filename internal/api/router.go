// Package api wires the HTTP surface of the UM-SAFE chat service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/umsafe/umsafe/internal/api/handlers"
	"github.com/umsafe/umsafe/internal/api/middleware"
	"github.com/umsafe/umsafe/pkg/contracts"
)

// NewRouter creates the HTTP router with all API routes.
//
// Knowledge reads are public: embassy contacts and rights information
// must stay reachable for someone who cannot or will not sign in. Chat,
// history, and profile routes require an authenticated identity.
func NewRouter(h *handlers.Handlers, chain contracts.AuthProviderChain) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-Id", "X-Client-Info"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Translation-Degraded"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health & info
	r.Get("/health", h.Health)
	r.Get("/version", h.GetVersion)

	r.Route("/api/v1", func(r chi.Router) {
		// Knowledge base (public, read-only)
		r.Route("/knowledge", func(r chi.Router) {
			r.Get("/embassies", h.ListEmbassies)
			r.Get("/recruiters", h.ListRecruiters)
			r.Get("/rights", h.ListRights)
		})

		// Authenticated surface
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(chain))

			r.Post("/chat", h.Chat)
			r.Get("/chat/messages", h.ListMessages)
			r.Get("/incidents", h.ListIncidents)

			r.Route("/profile", func(r chi.Router) {
				r.Get("/", h.GetProfile)
				r.Put("/language", h.UpdateLanguage)
			})
		})
	})

	return r
}
