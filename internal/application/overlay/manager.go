// Package overlay is the interactor overlay engine: it resolves anchor
// disclosures into static, loop and dynamic links, tears them down again,
// and resolves pointer positions to the primitives under them.  Every method
// must run on the event loop.
package overlay

import (
	"sort"
	"strconv"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/turtacn/pathway-overlay/internal/application/events"
	"github.com/turtacn/pathway-overlay/internal/config"
	"github.com/turtacn/pathway-overlay/internal/domain/interactor"
	domainOverlay "github.com/turtacn/pathway-overlay/internal/domain/overlay"
	"github.com/turtacn/pathway-overlay/internal/domain/render"
	"github.com/turtacn/pathway-overlay/internal/domain/viewport"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/pathway-overlay/pkg/errors"
)

// Records is the part of the catalog the engine reads.
type Records interface {
	Get(resource, accession string) []interactor.RawInteraction
}

// Settings is the immutable engine configuration.
type Settings struct {
	DisclosureCap   int
	InitialResource string
	Layout          RadialLayout
}

// SettingsFromConfig extracts the engine settings from cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		DisclosureCap:   cfg.Interactors.DisclosureCap,
		InitialResource: cfg.Interactors.InitialResource,
		Layout: RadialLayout{
			Radius:     cfg.Layout.Radius,
			NodeWidth:  cfg.Layout.NodeWidth,
			NodeHeight: cfg.Layout.NodeHeight,
		},
	}
}

// Dependencies are the collaborators of a Manager.  Store, Renderers and
// Metrics are optional.
type Dependencies struct {
	Records   Records
	Store     *domainOverlay.Store
	Viewport  *viewport.Transform
	Renderers *render.Registry
	Bus       *events.Bus
	Logger    logging.Logger
	Metrics   *prometheus.OverlayMetrics
}

// Result summarises one Resolve or Collapse batch.
type Result struct {
	Resource    string `json:"resource"`
	Noop        bool   `json:"noop"`
	StaticLinks int    `json:"static_links"`
	LoopLinks   int    `json:"loop_links"`
	Dynamic     int    `json:"dynamic_links"`
	NewEntities int    `json:"new_entities"`
	Candidates  int    `json:"candidates"`
	Removed     int    `json:"removed_links"`
	Orphaned    int    `json:"removed_entities"`
}

// Manager owns the overlay state of the current diagram.
type Manager struct {
	settings  Settings
	records   Records
	store     *domainOverlay.Store
	viewport  *viewport.Transform
	renderers *render.Registry
	bus       *events.Bus
	logger    logging.Logger
	metrics   *prometheus.OverlayMetrics

	ctx      *interactor.DiagramContext
	resource string
	hovered  interactor.Primitive
	cap      int

	unsubscribe []events.Unsubscribe
}

// NewManager wires a Manager to the lifecycle events on deps.Bus.
func NewManager(settings Settings, deps Dependencies) *Manager {
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if deps.Store == nil {
		deps.Store = domainOverlay.NewStore()
	}
	if deps.Renderers == nil {
		deps.Renderers = render.NewDefaultRegistry()
	}
	m := &Manager{
		settings:  settings,
		records:   deps.Records,
		store:     deps.Store,
		viewport:  deps.Viewport,
		renderers: deps.Renderers,
		bus:       deps.Bus,
		logger:    deps.Logger.Named("overlay"),
		metrics:   deps.Metrics,
		resource:  settings.InitialResource,
		cap:       settings.DisclosureCap,
	}
	m.unsubscribe = append(m.unsubscribe,
		events.Subscribe(m.bus, m.onDiagramRequested),
		events.Subscribe(m.bus, m.onDiagramLoaded),
	)
	return m
}

// Close drops the lifecycle subscriptions.
func (m *Manager) Close() {
	for _, u := range m.unsubscribe {
		u()
	}
	m.unsubscribe = nil
}

func (m *Manager) onDiagramRequested(e events.DiagramRequested) {
	m.ctx = nil
	m.hovered = nil
	m.metrics.ResetIndexSizes(m.store.Resources()...)
	m.store.Reset()
	m.logger.Debug("overlay invalidated", logging.String(logging.FieldDiagram, e.DiagramID))
}

func (m *Manager) onDiagramLoaded(e events.DiagramLoaded) {
	m.ctx = e.Context
	if e.Context != nil {
		m.logger.Debug("diagram context bound",
			logging.String(logging.FieldDiagram, e.Context.DiagramID),
			logging.Int("entities", len(e.Context.Entities)))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Accessors
// ─────────────────────────────────────────────────────────────────────────────

// Context returns the bound diagram context, or nil.
func (m *Manager) Context() *interactor.DiagramContext { return m.ctx }

// Resource returns the active resource.
func (m *Manager) Resource() string { return m.resource }

// DisclosureCap returns the active cap on new dynamic links per toggle.
func (m *Manager) DisclosureCap() int { return m.cap }

// SetDisclosureCap changes the cap for later toggles.  Negative values are
// ignored.
func (m *Manager) SetDisclosureCap(n int) {
	if n < 0 {
		return
	}
	if n != m.cap {
		m.logger.Info("disclosure cap changed", logging.Int("from", m.cap), logging.Int("to", n))
	}
	m.cap = n
}

// Anchor returns the diagram entity with id in the bound context.
func (m *Manager) Anchor(id int64) (*interactor.DiagramEntity, error) {
	if m.ctx == nil {
		return nil, errors.New(errors.ErrCodeNoDiagramContext, "no diagram loaded")
	}
	e, ok := m.ctx.Entity(id)
	if !ok {
		return nil, errors.New(errors.ErrCodeEntityNotFound, "diagram entity not found").
			WithDetail(logging.FieldAnchor + "=" + strconv.FormatInt(id, 10))
	}
	return e, nil
}

// InteractorLinks returns the links anchor created in resource, or every link
// of resource when anchor is nil.
func (m *Manager) InteractorLinks(resource string, anchor *interactor.DiagramEntity) []interactor.Link {
	return m.store.InteractorLinks(resource, anchor)
}

// ─────────────────────────────────────────────────────────────────────────────
// Resolution
// ─────────────────────────────────────────────────────────────────────────────

// Toggle flips anchor's disclosure state and resolves it.
func (m *Manager) Toggle(anchor *interactor.DiagramEntity) Result {
	if anchor == nil {
		return Result{Resource: m.resource, Noop: true}
	}
	return m.Resolve(anchor, !anchor.Pressed)
}

// Resolve expands anchor's interactors when pressed and tears them down
// otherwise.  It is a no-op without a diagram context, and expanding an
// anchor that is already expanded in the active resource changes nothing.
func (m *Manager) Resolve(anchor *interactor.DiagramEntity, pressed bool) Result {
	if m.ctx == nil || anchor == nil {
		m.metrics.RecordResolve(m.resource, prometheus.ResolveNoop)
		return Result{Resource: m.resource, Noop: true}
	}
	anchor.Pressed = pressed
	if !pressed {
		return m.teardown(anchor)
	}
	if m.store.HasAnchor(m.resource, anchor) {
		m.metrics.RecordResolve(m.resource, prometheus.ResolveNoop)
		return Result{Resource: m.resource, Noop: true}
	}
	return m.expand(anchor)
}

func (m *Manager) expand(anchor *interactor.DiagramEntity) Result {
	start := time.Now()
	res := Result{Resource: m.resource}
	resource := m.resource

	var candidates []interactor.RawInteraction
	for _, rec := range m.records.Get(resource, anchor.Accession) {
		targets, known := m.ctx.Index.Lookup(interactor.NormalizeAccession(rec.PartnerAccession))
		if !known || len(targets) == 0 {
			candidates = append(candidates, rec)
			continue
		}
		for _, target := range targets {
			var link interactor.Link
			if target == anchor {
				link = interactor.NewLoopLink(anchor, rec)
				res.LoopLinks++
			} else {
				link = interactor.NewStaticLink(anchor, target, rec)
				res.StaticLinks++
			}
			m.store.Cache(resource, anchor, link)
			m.store.AddToView(resource, link)
		}
	}
	res.Candidates = len(candidates)

	n := len(candidates)
	if n > m.cap {
		n = m.cap
	}
	for i := 0; i < n; i++ {
		rec := candidates[i]
		entity, ok := m.store.InteractorEntity(resource, rec.PartnerAccession)
		if !ok {
			entity = interactor.NewEntity(rec.PartnerAccession, rec.PartnerAlias, m.settings.Layout.Place(anchor, i, n))
			m.store.CacheEntity(resource, entity)
			res.NewEntities++
		}
		m.metrics.RecordEntity(resource, !ok)

		link := interactor.NewDynamicLink(anchor, entity, rec)
		entity.AddLink(link)
		m.store.Cache(resource, anchor, link)
		m.store.AddToView(resource, entity)
		m.store.AddToView(resource, link)
		res.Dynamic++
	}

	m.metrics.RecordResolve(resource, prometheus.ResolveExpand)
	m.metrics.RecordLinks(resource, string(interactor.KindStaticLink), res.StaticLinks)
	m.metrics.RecordLinks(resource, string(interactor.KindLoopLink), res.LoopLinks)
	m.metrics.RecordLinks(resource, string(interactor.KindDynamicLink), res.Dynamic)
	m.metrics.SetIndexSize(resource, m.store.Len(resource))

	logging.LogOperationDuration(m.logger, "expand", start,
		logging.String(logging.FieldResource, resource),
		logging.Int64(logging.FieldAnchor, anchor.ID),
		logging.Int("static", res.StaticLinks),
		logging.Int("loop", res.LoopLinks),
		logging.Int("dynamic", res.Dynamic),
		logging.Int("candidates", res.Candidates))

	m.bus.Publish(events.OverlayUpdated{Resource: resource, Reason: events.ReasonExpand, Anchor: anchor.ID})
	return res
}

func (m *Manager) teardown(anchor *interactor.DiagramEntity) Result {
	resource := m.resource
	removed := m.store.Teardown(resource, anchor)
	if removed.Links == 0 {
		m.metrics.RecordResolve(resource, prometheus.ResolveNoop)
		return Result{Resource: resource, Noop: true}
	}
	m.dropStaleHover()

	m.metrics.RecordResolve(resource, prometheus.ResolveTeardown)
	m.metrics.SetIndexSize(resource, m.store.Len(resource))
	m.logger.Debug("anchor torn down",
		logging.String(logging.FieldResource, resource),
		logging.Int64(logging.FieldAnchor, anchor.ID),
		logging.Int("links", removed.Links),
		logging.Int("entities", removed.Entities))

	m.bus.Publish(events.OverlayUpdated{Resource: resource, Reason: events.ReasonTeardown, Anchor: anchor.ID})
	return Result{Resource: resource, Removed: removed.Links, Orphaned: removed.Entities}
}

// Collapse tears down every disclosure of the active resource and releases
// the anchors' toggles.  With nothing disclosed it is a no-op and publishes
// nothing.
func (m *Manager) Collapse() Result {
	resource := m.resource
	res := Result{Resource: resource}
	if m.ctx == nil {
		res.Noop = true
		return res
	}
	anchors := m.store.Anchors(resource)
	if len(anchors) == 0 {
		res.Noop = true
		return res
	}
	for _, anchor := range anchors {
		anchor.Pressed = false
		removed := m.store.Teardown(resource, anchor)
		res.Removed += removed.Links
		res.Orphaned += removed.Entities
	}
	m.dropStaleHover()

	m.metrics.RecordCollapse(resource)
	m.metrics.SetIndexSize(resource, m.store.Len(resource))
	m.logger.Info("overlay collapsed",
		logging.String(logging.FieldResource, resource),
		logging.Int("anchors", len(anchors)),
		logging.Int("links", res.Removed))

	m.bus.Publish(events.Collapsed{Resource: resource, Anchors: len(anchors), Links: res.Removed})
	m.bus.Publish(events.OverlayUpdated{Resource: resource, Reason: events.ReasonCollapse})
	return res
}

// SetResource re-scopes the overlay to resource.  Data cached for the
// previous resource is kept.
func (m *Manager) SetResource(resource string) {
	if resource == m.resource {
		return
	}
	prev := m.resource
	m.resource = resource
	m.SetHovered(nil)
	m.logger.Info("interactor resource changed",
		logging.String(logging.FieldResource, resource),
		logging.String("previous", prev))
	m.bus.Publish(events.ResourceChanged{Resource: resource, Previous: prev})
	if m.ctx != nil {
		m.bus.Publish(events.OverlayUpdated{Resource: resource, Reason: events.ReasonResource})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Hit testing
// ─────────────────────────────────────────────────────────────────────────────

// HoveredAt returns the primitives of resource under the screen point, the
// ones the renderer for the current zoom tier reports visible and hovered.
// Entities sort before loops, loops before links.
func (m *Manager) HoveredAt(screen r2.Vec, resource string) []interactor.Primitive {
	if m.ctx == nil || m.viewport == nil {
		return nil
	}
	start := time.Now()
	model := m.viewport.ScreenToModel(screen)
	zoom := m.viewport.ZoomFactor()

	var hits []interactor.Primitive
	for _, p := range m.store.Query(resource, model) {
		r := m.renderers.For(p, zoom)
		if r != nil && r.IsVisible(p) && r.IsHovered(p, model) {
			hits = append(hits, p)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		ri, rj := kindRank(hits[i].Kind()), kindRank(hits[j].Kind())
		if ri != rj {
			return ri < rj
		}
		return hits[i].Key() < hits[j].Key()
	})
	m.metrics.ObserveHitTest(resource, time.Since(start))
	return hits
}

// SetHovered records p as hovered.  It publishes and returns a HoveredChanged
// only when p differs from the current hovered primitive.
func (m *Manager) SetHovered(p interactor.Primitive) *events.HoveredChanged {
	if p == m.hovered {
		return nil
	}
	ev := events.HoveredChanged{Previous: m.hovered, Current: p}
	m.hovered = p
	m.metrics.RecordHoverTransition()
	m.bus.Publish(ev)
	return &ev
}

// Hover hit-tests screen in the active resource and hovers the top hit, or
// nothing.
func (m *Manager) Hover(screen r2.Vec) ([]interactor.Primitive, *events.HoveredChanged) {
	hits := m.HoveredAt(screen, m.resource)
	var top interactor.Primitive
	if len(hits) > 0 {
		top = hits[0]
	}
	return hits, m.SetHovered(top)
}

// Hovered returns the hovered primitive, or nil.
func (m *Manager) Hovered() interactor.Primitive { return m.hovered }

// IsHighlighted reports whether p is the hovered primitive.
func (m *Manager) IsHighlighted(p interactor.Primitive) bool {
	return p != nil && p == m.hovered
}

func (m *Manager) dropStaleHover() {
	if m.hovered != nil && !m.store.Visible(m.resource, m.hovered) {
		m.SetHovered(nil)
	}
}

func kindRank(k interactor.PrimitiveKind) int {
	switch k {
	case interactor.KindEntity:
		return 0
	case interactor.KindLoopLink:
		return 1
	default:
		return 2
	}
}
