package transporthttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the full API surface.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger)

	r.Get("/healthz", h.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.handleRegister)
		r.Post("/auth/login", h.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(h.Tokens))

			r.Post("/groups", h.handleCreateGroup)
			r.Post("/invites/consume", h.handleConsumeInvite)

			r.Route("/groups/{groupID}", func(r chi.Router) {
				r.Put("/preferences", h.handleSavePreferences)
				r.Post("/challenges", h.handleGenerateChallenge)
				r.Get("/challenges", h.handleHistory)
				r.Get("/roadmap", h.handleRoadmap)
				r.Get("/reminders", h.handleReminders)
				r.Get("/notifications", h.handleNotifications)
			})

			r.Post("/challenges/{challengeID}/completions", h.handleRecordCompletion)
		})
	})

	r.Post("/internal/tick", h.handleTick)

	return r
}
