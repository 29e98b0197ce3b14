package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Pinger checks one dependency.
type Pinger func(ctx context.Context) error

// HealthHandler reports process uptime and the state of each dependency.
type HealthHandler struct {
	Started time.Time
	Checks  map[string]Pinger
}

type healthResponse struct {
	Status       string            `json:"status"`
	Uptime       string            `json:"uptime"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Uptime: strings.TrimSpace(humanize.RelTime(h.Started, time.Now(), "", ""))}
	if len(h.Checks) > 0 {
		resp.Dependencies = make(map[string]string, len(h.Checks))
	}
	for name, ping := range h.Checks {
		if err := ping(ctx); err != nil {
			resp.Dependencies[name] = err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Dependencies[name] = "ok"
	}
	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
