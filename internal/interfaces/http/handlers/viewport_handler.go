package handlers

import (
	"net/http"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/turtacn/pathway-overlay/internal/domain/interactor"
	"github.com/turtacn/pathway-overlay/internal/domain/viewport"
	"github.com/turtacn/pathway-overlay/pkg/errors"
)

// ContextSource returns the bound diagram context, or nil.
type ContextSource interface {
	Context() *interactor.DiagramContext
}

// ViewportHandler exposes the pan/zoom transform.
type ViewportHandler struct {
	exec     Executor
	viewport *viewport.Transform
	diagram  ContextSource
	frame    float64
}

// NewViewportHandler creates a ViewportHandler fitting with frame padding.
func NewViewportHandler(exec Executor, vp *viewport.Transform, diagram ContextSource, frame float64) *ViewportHandler {
	return &ViewportHandler{exec: exec, viewport: vp, diagram: diagram, frame: frame}
}

// Get handles GET /api/v1/viewport.
func (h *ViewportHandler) Get(w http.ResponseWriter, r *http.Request) {
	var view ViewportView
	if err := h.exec.Do(r.Context(), func() { view = viewportView(h.viewport) }); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// SetRequest replaces the matrix and optionally resizes the viewport.
type SetRequest struct {
	Matrix *MatrixView `json:"matrix"`
	Width  *float64    `json:"width"`
	Height *float64    `json:"height"`
}

// Set handles PUT /api/v1/viewport.
func (h *ViewportHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req SetRequest
	if _, err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	if (req.Width != nil && *req.Width < 0) || (req.Height != nil && *req.Height < 0) {
		writeAppError(w, errors.InvalidParam("viewport size must not be negative"))
		return
	}

	var (
		view  ViewportView
		opErr error
	)
	err := h.exec.Do(r.Context(), func() {
		if req.Matrix != nil && !h.viewport.SetMatrix(req.Matrix.matrix()) {
			opErr = errors.New(errors.ErrCodeValidation, "matrix is not invertible")
			return
		}
		if req.Width != nil || req.Height != nil {
			width, height := h.viewport.Size()
			if req.Width != nil {
				width = *req.Width
			}
			if req.Height != nil {
				height = *req.Height
			}
			h.viewport.Resize(width, height)
		}
		view = viewportView(h.viewport)
	})
	if err == nil {
		err = opErr
	}
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// PanZoomRequest is an incremental change in screen space.
type PanZoomRequest struct {
	DX      float64 `json:"dx"`
	DY      float64 `json:"dy"`
	Scale   float64 `json:"scale"`
	OriginX float64 `json:"origin_x"`
	OriginY float64 `json:"origin_y"`
}

// PanZoom handles POST /api/v1/viewport/panzoom.
func (h *ViewportHandler) PanZoom(w http.ResponseWriter, r *http.Request) {
	var req PanZoomRequest
	present, err := decodeJSON(r, &req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if !present {
		writeAppError(w, errors.InvalidParam("request body is required"))
		return
	}

	var (
		view    ViewportView
		applied bool
	)
	err = h.exec.Do(r.Context(), func() {
		applied = h.viewport.ApplyPanZoom(viewport.PanZoom{
			DX: req.DX, DY: req.DY, Scale: req.Scale,
			Origin: r2.Vec{X: req.OriginX, Y: req.OriginY},
		})
		view = viewportView(h.viewport)
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	if !applied {
		writeAppError(w, errors.New(errors.ErrCodeValidation, "pan/zoom produced a degenerate matrix"))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Fit handles POST /api/v1/viewport/fit.
func (h *ViewportHandler) Fit(w http.ResponseWriter, r *http.Request) {
	var (
		view  ViewportView
		opErr error
	)
	err := h.exec.Do(r.Context(), func() {
		ctx := h.diagram.Context()
		if ctx == nil {
			opErr = errors.New(errors.ErrCodeNoDiagramContext, "no diagram loaded")
			return
		}
		h.viewport.SetMatrix(h.viewport.FitToBounds(ctx.Bounds(), h.frame))
		view = viewportView(h.viewport)
	})
	if err == nil {
		err = opErr
	}
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
