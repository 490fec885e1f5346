package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/pathway-overlay/internal/application/loader"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pathway-overlay/pkg/errors"
)

// DiagramLister lists the diagrams that can be loaded.
type DiagramLister interface {
	List() ([]string, error)
}

// DiagramHandler drives the diagram loader.
type DiagramHandler struct {
	exec     Executor
	pipeline *loader.Pipeline
	lister   DiagramLister
	logger   logging.Logger
}

// NewDiagramHandler creates a DiagramHandler.  lister may be nil.
func NewDiagramHandler(exec Executor, pipeline *loader.Pipeline, lister DiagramLister, logger logging.Logger) *DiagramHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &DiagramHandler{exec: exec, pipeline: pipeline, lister: lister, logger: logger}
}

// List handles GET /api/v1/diagrams.
func (h *DiagramHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.lister == nil {
		writeJSON(w, http.StatusOK, map[string][]string{"diagrams": {}})
		return
	}
	ids, err := h.lister.List()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"diagrams": ids})
}

// Load handles POST /api/v1/diagrams/{diagramID}.  The load completes
// asynchronously; poll Status.
func (h *DiagramHandler) Load(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "diagramID")
	if id == "" {
		writeAppError(w, errors.InvalidParam("diagram id is required"))
		return
	}

	var status loader.Status
	err := h.exec.Do(r.Context(), func() {
		h.pipeline.Load(id)
		status = h.pipeline.Status()
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	h.logger.Info("diagram load requested", logging.String(logging.FieldDiagram, id))
	writeJSON(w, http.StatusAccepted, status)
}

// Status handles GET /api/v1/diagram.
func (h *DiagramHandler) Status(w http.ResponseWriter, r *http.Request) {
	var status loader.Status
	if err := h.exec.Do(r.Context(), func() { status = h.pipeline.Status() }); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
