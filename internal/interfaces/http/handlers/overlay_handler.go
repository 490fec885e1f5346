package handlers

import (
	"context"
	"net/http"
	"strconv"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/turtacn/pathway-overlay/internal/application/overlay"
	"github.com/turtacn/pathway-overlay/internal/domain/interactor"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/contentservice"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pathway-overlay/pkg/errors"
)

// ResourceLister lists the interaction resources of the content server.
type ResourceLister interface {
	ListResources(ctx context.Context) ([]contentservice.Resource, error)
}

// OverlayHandler exposes resource selection, anchor resolution, collapse,
// link listing and hover.
type OverlayHandler struct {
	exec      Executor
	manager   *overlay.Manager
	resources ResourceLister
	logger    logging.Logger
}

// NewOverlayHandler creates an OverlayHandler.  resources may be nil.
func NewOverlayHandler(exec Executor, manager *overlay.Manager, resources ResourceLister, logger logging.Logger) *OverlayHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &OverlayHandler{exec: exec, manager: manager, resources: resources, logger: logger}
}

// SettingsView reports the overlay scope.
type SettingsView struct {
	Resource      string `json:"resource"`
	DisclosureCap int    `json:"disclosure_cap"`
}

// SettingsRequest changes the overlay scope.  Absent fields are unchanged.
type SettingsRequest struct {
	Resource      *string `json:"resource"`
	DisclosureCap *int    `json:"disclosure_cap"`
}

func (h *OverlayHandler) settings() SettingsView {
	return SettingsView{Resource: h.manager.Resource(), DisclosureCap: h.manager.DisclosureCap()}
}

// Resources handles GET /api/v1/resources.
func (h *OverlayHandler) Resources(w http.ResponseWriter, r *http.Request) {
	if h.resources == nil {
		writeAppError(w, errors.New(errors.ErrCodeServiceUnavailable, "resource listing is not configured"))
		return
	}
	list, err := h.resources.ListResources(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"resources": list})
}

// Settings handles GET /api/v1/resource.
func (h *OverlayHandler) Settings(w http.ResponseWriter, r *http.Request) {
	var view SettingsView
	if err := h.exec.Do(r.Context(), func() { view = h.settings() }); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UpdateSettings handles PUT /api/v1/resource.
func (h *OverlayHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	present, err := decodeJSON(r, &req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if !present {
		writeAppError(w, errors.InvalidParam("request body is required"))
		return
	}
	if req.Resource != nil && *req.Resource == "" {
		writeAppError(w, errors.InvalidParam("resource must not be empty"))
		return
	}
	if req.DisclosureCap != nil && *req.DisclosureCap < 0 {
		writeAppError(w, errors.InvalidParam("disclosure_cap must not be negative"))
		return
	}

	var view SettingsView
	err = h.exec.Do(r.Context(), func() {
		if req.DisclosureCap != nil {
			h.manager.SetDisclosureCap(*req.DisclosureCap)
		}
		if req.Resource != nil {
			h.manager.SetResource(*req.Resource)
		}
		view = h.settings()
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ResolveRequest is the body of Resolve.  A missing Pressed toggles.
type ResolveRequest struct {
	Pressed *bool `json:"pressed"`
}

// Resolve handles POST /api/v1/anchors/{entityID}/interactors.
func (h *OverlayHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "entityID")
	if err != nil {
		writeAppError(w, err)
		return
	}
	var req ResolveRequest
	if _, err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	var (
		res     overlay.Result
		opErr   error
		pressed bool
	)
	err = h.exec.Do(r.Context(), func() {
		anchor, err := h.manager.Anchor(id)
		if err != nil {
			opErr = err
			return
		}
		if req.Pressed != nil {
			res = h.manager.Resolve(anchor, *req.Pressed)
		} else {
			res = h.manager.Toggle(anchor)
		}
		pressed = anchor.Pressed
	})
	if err == nil {
		err = opErr
	}
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"anchor": id, "pressed": pressed, "result": res})
}

// Collapse handles POST /api/v1/interactors/collapse.
func (h *OverlayHandler) Collapse(w http.ResponseWriter, r *http.Request) {
	var res overlay.Result
	if err := h.exec.Do(r.Context(), func() { res = h.manager.Collapse() }); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Links handles GET /api/v1/interactors/links[?anchor=&resource=].
func (h *OverlayHandler) Links(w http.ResponseWriter, r *http.Request) {
	var anchorID int64
	hasAnchor := false
	if raw := r.URL.Query().Get("anchor"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeAppError(w, errors.InvalidParam("anchor must be an integer").WithDetail(raw))
			return
		}
		anchorID, hasAnchor = v, true
	}
	resource := r.URL.Query().Get("resource")

	var (
		views []PrimitiveView
		opErr error
	)
	err := h.exec.Do(r.Context(), func() {
		var anchor *interactor.DiagramEntity
		if hasAnchor {
			if anchor, opErr = h.manager.Anchor(anchorID); opErr != nil {
				return
			}
		}
		if resource == "" {
			resource = h.manager.Resource()
		}
		links := h.manager.InteractorLinks(resource, anchor)
		views = make([]PrimitiveView, 0, len(links))
		for _, l := range links {
			views = append(views, primitiveView(l, h.manager.IsHighlighted(l)))
		}
	})
	if err == nil {
		err = opErr
	}
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"resource": resource, "links": views})
}

// HoverResponse reports a hit test and the resulting hover transition.
type HoverResponse struct {
	Hits     []PrimitiveView `json:"hits"`
	Hovered  *PrimitiveView  `json:"hovered"`
	Changed  bool            `json:"changed"`
	Previous string          `json:"previous,omitempty"`
}

// Hover handles GET /api/v1/hover?x=&y= with screen coordinates.
func (h *OverlayHandler) Hover(w http.ResponseWriter, r *http.Request) {
	x, err := floatQuery(r, "x")
	if err != nil {
		writeAppError(w, err)
		return
	}
	y, err := floatQuery(r, "y")
	if err != nil {
		writeAppError(w, err)
		return
	}

	var resp HoverResponse
	err = h.exec.Do(r.Context(), func() {
		hits, change := h.manager.Hover(r2.Vec{X: x, Y: y})
		resp.Hits = make([]PrimitiveView, 0, len(hits))
		for _, p := range hits {
			resp.Hits = append(resp.Hits, primitiveView(p, h.manager.IsHighlighted(p)))
		}
		if cur := h.manager.Hovered(); cur != nil {
			v := primitiveView(cur, true)
			resp.Hovered = &v
		}
		if change != nil {
			resp.Changed = true
			if change.Previous != nil {
				resp.Previous = change.Previous.Key()
			}
		}
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
