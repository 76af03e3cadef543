package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "specview/internal/errors"
	"specview/internal/websocket"
)

// MetricsHandler exposes the Prometheus scrape endpoint and websocket hub
// counters
type MetricsHandler struct {
	prometheus http.Handler
	hub        *websocket.Hub
}

// NewMetricsHandler creates a new metrics handler. prometheus is nil when
// the Prometheus exporter is disabled.
func NewMetricsHandler(prometheus http.Handler, hub *websocket.Hub) *MetricsHandler {
	return &MetricsHandler{prometheus: prometheus, hub: hub}
}

// Routes sets up the metrics routes
func (h *MetricsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Scrape)
	r.Get("/websocket", h.WebSocketStats)
	return r
}

// Scrape serves the Prometheus exposition format
func (h *MetricsHandler) Scrape(w http.ResponseWriter, r *http.Request) {
	if h.prometheus == nil {
		_ = render.Render(w, r, apierrors.NewProblemDetails(http.StatusNotFound, apierrors.TypeNotFound,
			"Not Found", "prometheus exporter is disabled", r.URL.Path))
		return
	}
	h.prometheus.ServeHTTP(w, r)
}

// WebSocketStats returns hub counters
func (h *MetricsHandler) WebSocketStats(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		_ = render.Render(w, r, apierrors.NewProblemDetails(http.StatusServiceUnavailable, apierrors.TypeInternal,
			"Service Unavailable", "websocket hub is not running", r.URL.Path))
		return
	}
	render.JSON(w, r, h.hub.Stats())
}
