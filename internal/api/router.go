package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the agent's HTTP surface.
func NewRouter(status *StatusHandler, profile *ProfileHandler, prefs *PreferencesHandler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", status.Healthz)
	r.Get("/status", status.Status)
	r.Get("/profile", profile.Get)
	r.Post("/profile/refresh", profile.Refresh)
	r.Get("/preferences", prefs.Get)
	r.Put("/preferences", prefs.Update)

	return r
}
