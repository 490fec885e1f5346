// Package events is the typed publish/subscribe channel between the loader,
// the catalog, the overlay engine and the outer surfaces.  Handlers run
// synchronously on the publishing goroutine, which is the event loop for
// every core event.
package events

import (
	"time"

	"github.com/turtacn/pathway-overlay/internal/domain/interactor"
)

// Event names.  They double as the Kafka message type header.
const (
	NameDiagramRequested  = "diagram.requested"
	NameDiagramLoaded     = "diagram.loaded"
	NameGraphLoaded       = "graph.loaded"
	NameDiagramError      = "diagram.error"
	NameResourceChanged   = "interactors.resource_changed"
	NameCatalogLoaded     = "interactors.catalog_loaded"
	NameResourceLoadError = "interactors.resource_load_error"
	NameOverlayUpdated    = "interactors.overlay_updated"
	NameHoveredChanged    = "interactors.hovered_changed"
	NameCollapsed         = "interactors.collapsed"
)

// Event is implemented by every payload the Bus carries.
type Event interface {
	EventName() string
}

// DiagramRequested invalidates all overlay state.
type DiagramRequested struct {
	DiagramID string `json:"diagram_id"`
}

// DiagramLoaded binds a new diagram context.
type DiagramLoaded struct {
	Context *interactor.DiagramContext `json:"-"`
}

// GraphLoaded reports that the identifier index is queryable.
type GraphLoaded struct {
	DiagramID   string `json:"diagram_id"`
	Entities    int    `json:"entities"`
	Identifiers int    `json:"identifiers"`
}

// DiagramError reports a failed diagram load.
type DiagramError struct {
	DiagramID string `json:"diagram_id"`
	Message   string `json:"message"`
}

// ResourceChanged re-scopes the overlay to Resource.
type ResourceChanged struct {
	Resource string `json:"resource"`
	Previous string `json:"previous,omitempty"`
}

// CatalogLoaded reports a successful interaction fetch.
type CatalogLoaded struct {
	Resource  string        `json:"resource"`
	DiagramID string        `json:"diagram_id"`
	Entities  int           `json:"entities"`
	Records   int           `json:"records"`
	Skipped   int           `json:"skipped"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// ResourceLoadError reports a failed interaction fetch.  Existing data for
// the resource is untouched.
type ResourceLoadError struct {
	Resource  string `json:"resource"`
	DiagramID string `json:"diagram_id"`
	Message   string `json:"message"`
}

// Overlay update reasons.
const (
	ReasonExpand   = "expand"
	ReasonTeardown = "teardown"
	ReasonCollapse = "collapse"
	ReasonResource = "resource"
)

// OverlayUpdated fires once per completed overlay batch.
type OverlayUpdated struct {
	Resource string `json:"resource"`
	Reason   string `json:"reason"`
	Anchor   int64  `json:"anchor,omitempty"`
}

// HoveredChanged fires on a hover identity transition.  Current is nil when
// nothing is hovered any more.
type HoveredChanged struct {
	Previous interactor.Primitive `json:"-"`
	Current  interactor.Primitive `json:"-"`
}

// Collapsed reports that every disclosure of Resource was torn down.
type Collapsed struct {
	Resource string `json:"resource"`
	Anchors  int    `json:"anchors"`
	Links    int    `json:"links"`
}

func (DiagramRequested) EventName() string  { return NameDiagramRequested }
func (DiagramLoaded) EventName() string     { return NameDiagramLoaded }
func (GraphLoaded) EventName() string       { return NameGraphLoaded }
func (DiagramError) EventName() string      { return NameDiagramError }
func (ResourceChanged) EventName() string   { return NameResourceChanged }
func (CatalogLoaded) EventName() string     { return NameCatalogLoaded }
func (ResourceLoadError) EventName() string { return NameResourceLoadError }
func (OverlayUpdated) EventName() string    { return NameOverlayUpdated }
func (HoveredChanged) EventName() string    { return NameHoveredChanged }
func (Collapsed) EventName() string         { return NameCollapsed }
