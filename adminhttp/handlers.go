// Package adminhttp exposes the ambient operational surface for the
// dispatch engine: health, buffer stats, and on-demand discovery. It is
// deliberately not a reimplementation of the (out of scope) wire-protocol
// front-ends; it never accepts an InferenceRequest or speaks the
// OpenAI/native inference schemas.
package adminhttp

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/galemind/dispatch-core/discoveryservice"
	"github.com/galemind/dispatch-core/dispatchservice"
	"github.com/galemind/dispatch-core/internal/metrics"
)

// Handler serves the admin HTTP surface.
type Handler struct {
	dispatcher dispatchservice.Dispatcher
	discovery  *discoveryservice.DiscoveryService
	metrics    *metrics.Metrics
	startTime  time.Time
}

// NewHandler creates an admin Handler.
func NewHandler(dispatcher dispatchservice.Dispatcher, discovery *discoveryservice.DiscoveryService, m *metrics.Metrics) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		discovery:  discovery,
		metrics:    m,
		startTime:  time.Now(),
	}
}

// RegisterRoutes wires the admin routes onto r with the teacher's
// middleware stack.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)
	r.Post("/discover", h.Discover)
}

// HealthResponse reports liveness and uptime.
type HealthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	ModelsCount   int     `json:"models_count"`
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.dispatcher.ModelStats()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{
		Status:        "healthy",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		ModelsCount:   len(stats),
	})
}

// Stats handles GET /stats: per-model buffer occupancy plus flush/eviction
// counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"buffers": h.dispatcher.ModelStats(),
		"counts":  h.metrics.Snapshot(),
	})
}

// discoverRequest is the wire shape accepted by POST /discover: each
// source names exactly one of the four ModelSource variants.
type discoverRequest struct {
	Sources []sourceJSON `json:"sources"`
}

type sourceJSON struct {
	Path              string `json:"path,omitempty"`
	URL               string `json:"url,omitempty"`
	ID                string `json:"id,omitempty"`
	RegistryBaseURL   string `json:"registry_base_url,omitempty"`
	RegistryToken     string `json:"registry_token,omitempty"`
	RegistryModelName string `json:"registry_model_name,omitempty"`
}

func (s sourceJSON) toModelSource() (discoveryservice.ModelSource, bool) {
	set := 0
	for _, v := range []string{s.Path, s.URL, s.ID, s.RegistryBaseURL} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return discoveryservice.ModelSource{}, false
	}
	switch {
	case s.Path != "":
		return discoveryservice.NewPathSource(s.Path), true
	case s.URL != "":
		return discoveryservice.NewURLSource(s.URL), true
	case s.ID != "":
		return discoveryservice.NewIDSource(s.ID), true
	case s.RegistryBaseURL != "":
		return discoveryservice.NewRegistrySource(s.RegistryBaseURL, s.RegistryToken, s.RegistryModelName), true
	default:
		return discoveryservice.ModelSource{}, false
	}
}

// Discover handles POST /discover: runs a discovery pass over the
// request body's sources and reports the ids that were (already or
// newly) registered.
func (h *Handler) Discover(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	sources := make([]discoveryservice.ModelSource, 0, len(req.Sources))
	for _, raw := range req.Sources {
		src, ok := raw.toModelSource()
		if !ok {
			http.Error(w, "source must set exactly one of path, url, id, registry_base_url", http.StatusBadRequest)
			return
		}
		sources = append(sources, src)
	}

	ids, err := h.discovery.Discover(r.Context(), sources)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.String()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"registered": names})
}
