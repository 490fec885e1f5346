// Package loader drives the diagram lifecycle: it reads a layout, binds the
// diagram context, builds the identifier index and starts the interactor
// fetch of the active resource, publishing each stage on the bus.
package loader

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/pathway-overlay/internal/application/eventloop"
	"github.com/turtacn/pathway-overlay/internal/application/events"
	"github.com/turtacn/pathway-overlay/internal/domain/interactor"
	"github.com/turtacn/pathway-overlay/internal/domain/viewport"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/diagram"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/logging"
)

// LayoutSource reads diagram layouts.
type LayoutSource interface {
	Load(ctx context.Context, diagramID string) (*diagram.Layout, error)
}

// Catalog is the part of the interactor catalog the loader drives.
type Catalog interface {
	Load(resource, diagramID string)
	Loaded(resource string) bool
	Pending(resource string) bool
	Reset()
}

// Options configures a Pipeline.
type Options struct {
	// InitialResource is fetched as soon as a graph is loaded.  Empty
	// disables the initial fetch.
	InitialResource string
	// Frame is the padding used to fit a new diagram into the viewport.
	Frame float64
	// Viewport, when set, is fitted to every new diagram.
	Viewport *viewport.Transform
	// Timeout bounds a layout read.  Zero means no timeout.
	Timeout time.Duration
}

// Status describes the pipeline state.
type Status struct {
	DiagramID string `json:"diagram_id,omitempty"`
	Loading   string `json:"loading,omitempty"`
	Loaded    bool   `json:"loaded"`
	Resource  string `json:"resource"`
	// Error is the failure of the last load, cleared by the next one.
	Error string `json:"error,omitempty"`
}

type inflight struct {
	token     string
	diagramID string
	cancel    context.CancelFunc
}

// Pipeline sequences diagram loads.  Its methods run on the event loop.
type Pipeline struct {
	source  LayoutSource
	catalog Catalog
	loop    eventloop.Poster
	bus     *events.Bus
	logger  logging.Logger
	opts    Options

	current  *interactor.DiagramContext
	resource string
	pending  *inflight
	lastErr  string
	unsub    []events.Unsubscribe
}

// New returns a pipeline subscribed to resource changes on bus.
func New(source LayoutSource, catalog Catalog, loop eventloop.Poster, bus *events.Bus, logger logging.Logger, opts Options) *Pipeline {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	p := &Pipeline{
		source:   source,
		catalog:  catalog,
		loop:     loop,
		bus:      bus,
		logger:   logger.Named("loader"),
		opts:     opts,
		resource: opts.InitialResource,
	}
	p.unsub = append(p.unsub, events.Subscribe(bus, p.onResourceChanged))
	return p
}

// Close cancels any load in flight and drops subscriptions.
func (p *Pipeline) Close() {
	if p.pending != nil {
		p.pending.cancel()
		p.pending = nil
	}
	for _, u := range p.unsub {
		u()
	}
	p.unsub = nil
}

// Status reports the current diagram and any load in flight.
func (p *Pipeline) Status() Status {
	s := Status{Resource: p.resource, Error: p.lastErr}
	if p.current != nil {
		s.DiagramID = p.current.DiagramID
		s.Loaded = true
	}
	if p.pending != nil {
		s.Loading = p.pending.diagramID
	}
	return s
}

// Context returns the bound diagram context, or nil.
func (p *Pipeline) Context() *interactor.DiagramContext { return p.current }

// Load invalidates the current diagram and starts reading diagramID.  A
// load still in flight is cancelled and its result discarded.
func (p *Pipeline) Load(diagramID string) {
	if p.pending != nil {
		p.pending.cancel()
		p.logger.Debug("cancelling previous diagram load",
			logging.String(logging.FieldDiagram, p.pending.diagramID))
	}
	p.current = nil
	p.lastErr = ""
	p.catalog.Reset()
	p.bus.Publish(events.DiagramRequested{DiagramID: diagramID})

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if p.opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), p.opts.Timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	req := &inflight{token: uuid.NewString(), diagramID: diagramID, cancel: cancel}
	p.pending = req

	start := time.Now()
	go func() {
		layout, err := p.source.Load(ctx, diagramID)
		if !p.loop.Post(func() { p.finish(req.token, layout, err, start) }) {
			cancel()
		}
	}()
}

func (p *Pipeline) finish(token string, layout *diagram.Layout, err error, start time.Time) {
	req := p.pending
	if req == nil || req.token != token {
		p.logger.Debug("discarding superseded diagram load", logging.String("token", token))
		return
	}
	p.pending = nil
	req.cancel()

	if err != nil {
		p.logger.Warn("diagram load failed", append(logging.ErrFields(err),
			logging.String(logging.FieldDiagram, req.diagramID))...)
		p.lastErr = err.Error()
		p.bus.Publish(events.DiagramError{DiagramID: req.diagramID, Message: p.lastErr})
		return
	}

	entities := layout.Entities()
	idx := interactor.MapIndex{}
	ctx := &interactor.DiagramContext{DiagramID: req.diagramID, Entities: entities, Index: idx}
	p.current = ctx
	if vp := p.opts.Viewport; vp != nil {
		vp.SetMatrix(vp.FitToBounds(ctx.Bounds(), p.opts.Frame))
	}
	p.bus.Publish(events.DiagramLoaded{Context: ctx})

	layout.Index(idx, entities)
	p.bus.Publish(events.GraphLoaded{DiagramID: req.diagramID, Entities: len(entities), Identifiers: len(idx)})
	logging.LogOperationDuration(p.logger, "diagram load", start,
		logging.String(logging.FieldDiagram, req.diagramID),
		logging.Int("entities", len(entities)),
		logging.Int("identifiers", len(idx)))

	if p.resource != "" {
		p.catalog.Load(p.resource, req.diagramID)
	}
}

func (p *Pipeline) onResourceChanged(e events.ResourceChanged) {
	p.resource = e.Resource
	if p.current == nil || e.Resource == "" {
		return
	}
	if p.catalog.Loaded(e.Resource) || p.catalog.Pending(e.Resource) {
		return
	}
	p.catalog.Load(e.Resource, p.current.DiagramID)
}
