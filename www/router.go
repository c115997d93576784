// Package www serves the bridge over HTTP: one request per bridge call, and
// a server-sent event stream carrying onStepUpdate.
package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"steptracker/engine"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	engine   *engine.Engine
	sessions *sessionStore
	eventHub *EventHub
}

// NewRouter creates the chi router and returns it along with a stop function.
func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	h := &Handlers{
		engine:   eng,
		sessions: newSessionStore(eng.AppConfig().Web.SessionSecret),
		eventHub: NewEventHub(),
	}

	h.eventHub.Start()
	subID := h.eventHub.SetupEngineListeners(eng)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// SSE (no auth)
	r.Get("/events", h.eventHub.HandleSSE)

	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)

	r.Route("/api", func(r chi.Router) {
		// Bridge calls
		r.Get("/available", h.apiAvailable)
		r.Get("/steps", h.apiGetStepCount)
		r.Get("/tracking", h.apiTrackingStatus)
		r.Post("/tracking/start", h.apiStartTracking)
		r.Post("/tracking/stop", h.apiStopTracking)

		// Sample history admin
		r.Group(func(r chi.Router) {
			r.Use(h.adminMiddleware)

			r.Get("/samples/total", h.apiSamplesTotal)
			r.Post("/samples", h.apiAppendSamples)
			r.Delete("/samples", h.apiDeleteSamples)
			r.Post("/config/password", h.apiChangePassword)
		})
	})

	return r, func() {
		eng.Events.Unsubscribe(subID)
		h.eventHub.Stop()
	}
}

func (h *Handlers) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, ok := h.sessions.getUser(r)
		if !ok || username == "" {
			writeError(w, http.StatusUnauthorized, "login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
