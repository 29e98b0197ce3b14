package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers are the endpoints the server exposes. Objects is nil when uploads
// go to Cloudinary.
type Handlers struct {
	Page    http.Handler
	Chat    http.Handler
	History http.Handler
	Health  http.Handler
	Objects http.Handler

	// APILimit, when set, throttles the socket and API routes only. Page and
	// object loads stay unthrottled.
	APILimit func(http.Handler) http.Handler
}

func SetupRoutes(r chi.Router, h Handlers) {
	// Single-page client
	r.Method(http.MethodGet, "/", h.Page)

	api := r
	if h.APILimit != nil {
		api = r.With(h.APILimit)
	}

	// Chat session: auth, feed, composer and retraction over one socket
	api.Method(http.MethodGet, "/ws/chat", h.Chat)

	// Read-only room history for signed-in API callers
	api.Method(http.MethodGet, "/api/messages", h.History)

	// Uploads kept in the embedded object store
	if h.Objects != nil {
		r.Method(http.MethodGet, "/objects/*", h.Objects)
	}

	r.Method(http.MethodGet, "/health", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}
