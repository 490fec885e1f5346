// Package http serves the overlay API.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/pathway-overlay/internal/interfaces/http/handlers"
	"github.com/turtacn/pathway-overlay/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and infrastructure the route tree
// needs.  Nil handlers leave their routes unmounted.
type RouterConfig struct {
	DiagramHandler  *handlers.DiagramHandler
	OverlayHandler  *handlers.OverlayHandler
	ViewportHandler *handlers.ViewportHandler
	HealthHandler   *handlers.HealthHandler

	Logger           logging.Logger
	MetricsCollector prometheus.MetricsCollector
	Metrics          *prometheus.OverlayMetrics
	Logging          middleware.LoggingConfig
}

// NewRouter constructs the HTTP route tree.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogging(cfg.Logger.Named("http"), cfg.Metrics, cfg.Logging))

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.Handle("/metrics", cfg.MetricsCollector.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		registerDiagramRoutes(api, cfg.DiagramHandler)
		registerOverlayRoutes(api, cfg.OverlayHandler)
		registerViewportRoutes(api, cfg.ViewportHandler)
	})
	return r
}

func registerDiagramRoutes(r chi.Router, h *handlers.DiagramHandler) {
	if h == nil {
		return
	}
	r.Get("/diagrams", h.List)
	r.Post("/diagrams/{diagramID}", h.Load)
	r.Get("/diagram", h.Status)
}

func registerOverlayRoutes(r chi.Router, h *handlers.OverlayHandler) {
	if h == nil {
		return
	}
	r.Get("/resources", h.Resources)
	r.Get("/resource", h.Settings)
	r.Put("/resource", h.UpdateSettings)
	r.Post("/anchors/{entityID}/interactors", h.Resolve)
	r.Route("/interactors", func(ir chi.Router) {
		ir.Post("/collapse", h.Collapse)
		ir.Get("/links", h.Links)
	})
	r.Get("/hover", h.Hover)
}

func registerViewportRoutes(r chi.Router, h *handlers.ViewportHandler) {
	if h == nil {
		return
	}
	r.Route("/viewport", func(vr chi.Router) {
		vr.Get("/", h.Get)
		vr.Put("/", h.Set)
		vr.Post("/panzoom", h.PanZoom)
		vr.Post("/fit", h.Fit)
	})
}
