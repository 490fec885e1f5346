package overlay

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gonum.org/v1/gonum/spatial/r2"
	"pgregory.net/rapid"

	"github.com/turtacn/pathway-overlay/internal/application/events"
	"github.com/turtacn/pathway-overlay/internal/domain/interactor"
	domainOverlay "github.com/turtacn/pathway-overlay/internal/domain/overlay"
	"github.com/turtacn/pathway-overlay/internal/domain/render"
	"github.com/turtacn/pathway-overlay/internal/domain/viewport"
	"github.com/turtacn/pathway-overlay/pkg/errors"
)

type fakeRecords map[string]map[string][]interactor.RawInteraction

func (f fakeRecords) Get(resource, accession string) []interactor.RawInteraction {
	if recs, ok := f[resource][accession]; ok {
		return recs
	}
	return []interactor.RawInteraction{}
}

func box(x, y, w, h float64) r2.Box {
	return r2.Box{Min: r2.Vec{X: x, Y: y}, Max: r2.Vec{X: x + w, Y: y + h}}
}

var testSettings = Settings{
	DisclosureCap:   10,
	InitialResource: "static",
	Layout:          RadialLayout{Radius: 120, NodeWidth: 60, NodeHeight: 24},
}

type fixture struct {
	manager  *Manager
	bus      *events.Bus
	store    *domainOverlay.Store
	viewport *viewport.Transform
	records  fakeRecords
	a, b, c  *interactor.DiagramEntity
	ctx      *interactor.DiagramContext
	seen     []events.Event
}

func newFixture(settings Settings, registry *render.Registry) *fixture {
	f := &fixture{
		bus:      events.NewBus(),
		store:    domainOverlay.NewStore(),
		viewport: viewport.New(800, 600),
		records:  fakeRecords{},
		a:        &interactor.DiagramEntity{ID: 1, Accession: "X", Box: box(0, 0, 40, 20)},
		b:        &interactor.DiagramEntity{ID: 2, Accession: "Y", Box: box(400, 0, 40, 20)},
		c:        &interactor.DiagramEntity{ID: 3, Accession: "W", Box: box(400, 400, 40, 20)},
	}
	idx := interactor.MapIndex{}
	idx.Add("X", f.a)
	idx.Add("Y", f.b)
	idx.Add("W", f.c)
	idx.Declare("COMPLEX_PART")
	f.ctx = &interactor.DiagramContext{DiagramID: "R-HSA-1", Entities: []*interactor.DiagramEntity{f.a, f.b, f.c}, Index: idx}

	f.bus.SubscribeAll(func(e events.Event) { f.seen = append(f.seen, e) })
	f.manager = NewManager(settings, Dependencies{
		Records:   f.records,
		Store:     f.store,
		Viewport:  f.viewport,
		Renderers: registry,
		Bus:       f.bus,
	})
	return f
}

func (f *fixture) load() {
	f.bus.Publish(events.DiagramRequested{DiagramID: f.ctx.DiagramID})
	f.bus.Publish(events.DiagramLoaded{Context: f.ctx})
	f.seen = nil
}

func (f *fixture) count(name string) int {
	n := 0
	for _, e := range f.seen {
		if e.EventName() == name {
			n++
		}
	}
	return n
}

func unmatched(prefix string, n int) []interactor.RawInteraction {
	out := make([]interactor.RawInteraction, n)
	for i := range out {
		out[i] = interactor.RawInteraction{ID: int64(100 + i), PartnerAccession: fmt.Sprintf("%s%d", prefix, i), Score: 0.5}
	}
	return out
}

type ManagerSuite struct {
	suite.Suite
	f *fixture
}

func (s *ManagerSuite) SetupTest() {
	s.f = newFixture(testSettings, nil)
	s.f.load()
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) TestMixedClassification() {
	f := s.f
	f.records["static"] = map[string][]interactor.RawInteraction{"X": {
		{ID: 1, PartnerAccession: "X", Score: 0.9},
		{ID: 2, PartnerAccession: "uniprotkb:Y", Score: 0.8},
		{ID: 3, PartnerAccession: "Z1", Score: 0.7},
		{ID: 4, PartnerAccession: "Z2", Score: 0.6},
	}}

	res := f.manager.Resolve(f.a, true)
	s.Equal(1, res.LoopLinks)
	s.Equal(1, res.StaticLinks)
	s.Equal(2, res.Dynamic)
	s.Equal(2, res.NewEntities)
	s.Equal(1, f.count(events.NameOverlayUpdated))
	s.True(f.a.Pressed)

	var kinds []interactor.PrimitiveKind
	for _, l := range f.manager.InteractorLinks("static", f.a) {
		kinds = append(kinds, l.Kind())
	}
	s.Equal([]interactor.PrimitiveKind{
		interactor.KindLoopLink, interactor.KindStaticLink, interactor.KindDynamicLink, interactor.KindDynamicLink,
	}, kinds)

	static := f.manager.InteractorLinks("static", f.a)[1].(*interactor.StaticLink)
	s.Same(f.b, static.Target())

	for _, acc := range []string{"Z1", "Z2"} {
		_, ok := f.store.InteractorEntity("static", acc)
		s.True(ok, acc)
	}
	// 4 links + 2 entities.
	s.Equal(6, f.store.Len("static"))
}

func (s *ManagerSuite) TestDisclosureCap() {
	f := s.f
	f.records["static"] = map[string][]interactor.RawInteraction{"X": unmatched("Z", 11)}

	res := f.manager.Resolve(f.a, true)
	s.Equal(10, res.Dynamic)
	s.Equal(10, res.NewEntities)
	s.Equal(11, res.Candidates)
	for i := 0; i < 10; i++ {
		_, ok := f.store.InteractorEntity("static", fmt.Sprintf("Z%d", i))
		s.True(ok)
	}
	_, ok := f.store.InteractorEntity("static", "Z10")
	s.False(ok, "the eleventh candidate is untouched")
}

func (s *ManagerSuite) TestCapDoesNotBoundStaticLinks() {
	f := s.f
	f.manager.SetDisclosureCap(0)
	f.records["static"] = map[string][]interactor.RawInteraction{"X": append(
		[]interactor.RawInteraction{{ID: 1, PartnerAccession: "Y"}, {ID: 2, PartnerAccession: "CHEBI:W"}},
		unmatched("Z", 3)...,
	)}

	res := f.manager.Resolve(f.a, true)
	s.Equal(2, res.StaticLinks)
	s.Zero(res.Dynamic)
	s.Zero(f.store.EntityCount("static"))
}

func (s *ManagerSuite) TestKnownIdentifierWithoutPlacementIsDynamic() {
	f := s.f
	f.records["static"] = map[string][]interactor.RawInteraction{"X": {{ID: 1, PartnerAccession: "COMPLEX_PART"}}}

	res := f.manager.Resolve(f.a, true)
	s.Equal(1, res.Dynamic)
	_, ok := f.store.InteractorEntity("static", "COMPLEX_PART")
	s.True(ok, "dynamic entities are keyed by the raw accession")
}

func (s *ManagerSuite) TestSharedEntityAcrossAnchors() {
	f := s.f
	f.records["static"] = map[string][]interactor.RawInteraction{
		"X": {{ID: 1, PartnerAccession: "Z"}},
		"Y": {{ID: 2, PartnerAccession: "Z"}},
	}
	f.manager.Resolve(f.a, true)
	e, _ := f.store.InteractorEntity("static", "Z")
	placed := e.Bounds()

	res := f.manager.Resolve(f.b, true)
	s.Zero(res.NewEntities)
	e2, _ := f.store.InteractorEntity("static", "Z")
	s.Same(e, e2)
	s.Equal(2, e.LinkCount())
	s.Equal(placed, e.Bounds(), "reused entity keeps its position")

	f.manager.Resolve(f.a, false)
	_, ok := f.store.InteractorEntity("static", "Z")
	s.True(ok)
	f.manager.Resolve(f.b, false)
	_, ok = f.store.InteractorEntity("static", "Z")
	s.False(ok)
	s.Zero(f.store.Len("static"))
}

func (s *ManagerSuite) TestRepeatedPressIsNoop() {
	f := s.f
	f.records["static"] = map[string][]interactor.RawInteraction{"X": unmatched("Z", 2)}
	f.manager.Resolve(f.a, true)
	before := f.store.Len("static")

	res := f.manager.Resolve(f.a, true)
	s.True(res.Noop)
	s.Equal(before, f.store.Len("static"))
	s.Equal(1, f.count(events.NameOverlayUpdated))
}

func (s *ManagerSuite) TestToggleAndTeardownIdempotent() {
	f := s.f
	f.records["static"] = map[string][]interactor.RawInteraction{"X": unmatched("Z", 3)}

	f.manager.Toggle(f.a)
	s.True(f.a.Pressed)
	s.Equal(6, f.store.Len("static"))

	res := f.manager.Toggle(f.a)
	s.False(f.a.Pressed)
	s.Equal(3, res.Removed)
	s.Equal(3, res.Orphaned)
	s.Zero(f.store.Len("static"))

	res = f.manager.Resolve(f.a, false)
	s.True(res.Noop)
	s.Zero(res.Removed)
	s.Equal(2, f.count(events.NameOverlayUpdated), "tearing down an absent anchor is silent")

	s.True(f.manager.Collapse().Noop)
	s.Zero(f.count(events.NameCollapsed))
	s.Equal(2, f.count(events.NameOverlayUpdated))
}

func (s *ManagerSuite) TestIdentifierListedTwiceYieldsOneLink() {
	f := newFixture(testSettings, nil)
	f.ctx.Index.(interactor.MapIndex).Add("Y", f.b)
	f.ctx.Index.(interactor.MapIndex).Add("X", f.a)
	f.load()
	f.records["static"] = map[string][]interactor.RawInteraction{"X": {
		{ID: 1, PartnerAccession: "X"},
		{ID: 7, PartnerAccession: "Y"},
	}}

	res := f.manager.Resolve(f.a, true)
	s.Equal(1, res.StaticLinks)
	s.Equal(1, res.LoopLinks)
	s.Len(f.manager.InteractorLinks("static", f.a), 2)
}

func (s *ManagerSuite) TestNoContextIsNoop() {
	f := newFixture(testSettings, nil)
	f.records["static"] = map[string][]interactor.RawInteraction{"X": unmatched("Z", 3)}

	s.True(f.manager.Resolve(f.a, true).Noop)
	s.True(f.manager.Collapse().Noop)
	s.Nil(f.manager.HoveredAt(r2.Vec{}, "static"))
	s.Empty(f.seen)
	s.False(f.a.Pressed)

	_, err := f.manager.Anchor(1)
	s.True(errors.IsCode(err, errors.ErrCodeNoDiagramContext))
}

func (s *ManagerSuite) TestAnchorLookup() {
	e, err := s.f.manager.Anchor(2)
	s.Require().NoError(err)
	s.Same(s.f.b, e)

	_, err = s.f.manager.Anchor(99)
	s.True(errors.IsNotFound(err))
}

func (s *ManagerSuite) TestCollapse() {
	f := s.f
	f.records["static"] = map[string][]interactor.RawInteraction{
		"X": {{ID: 1, PartnerAccession: "Y"}, {ID: 2, PartnerAccession: "Z"}},
		"W": {{ID: 3, PartnerAccession: "Z"}, {ID: 4, PartnerAccession: "Q"}},
	}
	f.manager.Resolve(f.a, true)
	f.manager.Resolve(f.c, true)
	f.seen = nil

	res := f.manager.Collapse()
	s.Equal(4, res.Removed)
	s.Equal(2, res.Orphaned)
	s.Zero(f.store.Len("static"))
	s.Empty(f.manager.InteractorLinks("static", nil))
	s.False(f.a.Pressed)
	s.False(f.c.Pressed)
	s.Equal(1, f.count(events.NameCollapsed))
	s.Equal(1, f.count(events.NameOverlayUpdated))
}

func (s *ManagerSuite) TestResourceSwitchKeepsData() {
	f := s.f
	f.records["static"] = map[string][]interactor.RawInteraction{"X": {{ID: 1, PartnerAccession: "Z"}}}
	f.records["IntAct"] = map[string][]interactor.RawInteraction{"X": {{ID: 2, PartnerAccession: "Q"}}}
	f.manager.Resolve(f.a, true)

	zScreen := f.viewport.ModelToScreen(testSettings.Layout.Place(f.a, 0, 1).Min)
	zScreen = r2.Add(zScreen, r2.Vec{X: 1, Y: 1})
	s.NotEmpty(f.manager.HoveredAt(zScreen, "static"))

	f.manager.SetResource("IntAct")
	s.Equal(1, f.count(events.NameResourceChanged))
	s.Empty(f.manager.HoveredAt(zScreen, f.manager.Resource()))
	s.Empty(f.manager.InteractorLinks("IntAct", f.a))

	res := f.manager.Resolve(f.a, true)
	s.Equal(1, res.NewEntities)
	_, ok := f.store.InteractorEntity("IntAct", "Z")
	s.False(ok)

	f.manager.SetResource("static")
	hits := f.manager.HoveredAt(zScreen, f.manager.Resource())
	s.Require().NotEmpty(hits)
	for _, p := range hits {
		s.NotEqual("interactor:Q", p.Key())
	}
	f.manager.SetResource("static")
	s.Equal(2, f.count(events.NameResourceChanged))
}

func (s *ManagerSuite) TestHoverTransitions() {
	f := s.f
	f.records["static"] = map[string][]interactor.RawInteraction{"X": {{ID: 1, PartnerAccession: "Z"}}}
	f.manager.Resolve(f.a, true)
	entity, _ := f.store.InteractorEntity("static", "Z")
	at := f.viewport.ModelToScreen(entity.Center())
	f.seen = nil

	hits, ev := f.manager.Hover(at)
	s.Require().NotEmpty(hits)
	s.Same(entity, hits[0], "entities sort first")
	s.Require().NotNil(ev)
	s.Nil(ev.Previous)
	s.Same(entity, ev.Current)
	s.True(f.manager.IsHighlighted(entity))

	_, ev = f.manager.Hover(at)
	s.Nil(ev, "re-hovering the same primitive is silent")
	s.Equal(1, f.count(events.NameHoveredChanged))

	f.manager.Resolve(f.a, false)
	s.Nil(f.manager.Hovered(), "teardown releases a removed hovered primitive")
	s.Equal(2, f.count(events.NameHoveredChanged))
	s.False(f.manager.IsHighlighted(nil))
}

func (s *ManagerSuite) TestDiagramRequestedResets() {
	f := s.f
	f.records["static"] = map[string][]interactor.RawInteraction{"X": unmatched("Z", 2)}
	f.manager.Resolve(f.a, true)

	f.bus.Publish(events.DiagramRequested{DiagramID: "R-HSA-2"})
	s.Nil(f.manager.Context())
	s.Empty(f.store.Resources())
	s.True(f.manager.Resolve(f.a, true).Noop)
}

func (s *ManagerSuite) TestSettingsFromDefaults() {
	s.Equal(10, s.f.manager.DisclosureCap())
	s.f.manager.SetDisclosureCap(-1)
	s.Equal(10, s.f.manager.DisclosureCap())
	s.f.manager.SetDisclosureCap(3)
	s.Equal(3, s.f.manager.DisclosureCap())
}

func TestRadialLayout(t *testing.T) {
	l := RadialLayout{Radius: 100, NodeWidth: 20, NodeHeight: 10}
	anchor := &interactor.DiagramEntity{Box: box(0, 0, 20, 20)}

	top := l.Place(anchor, 0, 4)
	assert.InDelta(t, 10, (top.Min.X+top.Max.X)/2, 1e-9)
	assert.InDelta(t, -90, (top.Min.Y+top.Max.Y)/2, 1e-9)
	assert.InDelta(t, 20, top.Max.X-top.Min.X, 1e-9)

	right := l.Place(anchor, 1, 4)
	assert.InDelta(t, 110, (right.Min.X+right.Max.X)/2, 1e-9)
	assert.InDelta(t, 10, (right.Min.Y+right.Max.Y)/2, 1e-9)

	assert.Equal(t, l.Place(anchor, 0, 1), l.Place(anchor, 0, 0))
}

// ─────────────────────────────────────────────────────────────────────────────
// Properties
// ─────────────────────────────────────────────────────────────────────────────

// New entities per toggle are min(k, cap); matched links are never capped.
func TestProperty_DisclosureCountsFollowCap(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		limit := rapid.IntRange(0, 12).Draw(rt, "cap")
		k := rapid.IntRange(0, 20).Draw(rt, "unmatched")
		matched := rapid.IntRange(0, 5).Draw(rt, "matched")

		settings := testSettings
		settings.DisclosureCap = limit
		f := newFixture(settings, nil)
		f.load()

		recs := unmatched("Z", k)
		targets := []string{"X", "Y", "W"}
		for i := 0; i < matched; i++ {
			recs = append(recs, interactor.RawInteraction{ID: int64(i), PartnerAccession: targets[i%len(targets)]})
		}
		f.records["static"] = map[string][]interactor.RawInteraction{"X": recs}

		res := f.manager.Resolve(f.a, true)
		want := k
		if want > limit {
			want = limit
		}
		require.Equal(rt, want, res.NewEntities)
		require.Equal(rt, want, f.store.EntityCount("static"))
		require.Equal(rt, matched, res.StaticLinks+res.LoopLinks)
		require.Equal(rt, 1, f.count(events.NameOverlayUpdated))
	})
}

// HoveredAt never reports a primitive its renderer considers invisible.
func TestProperty_HoveredAtRespectsVisibility(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		reg := render.NewDefaultRegistry()
		hidden := rapid.SliceOfDistinct(rapid.SampledFrom([]interactor.PrimitiveKind{
			interactor.KindEntity, interactor.KindStaticLink, interactor.KindLoopLink, interactor.KindDynamicLink,
		}), func(k interactor.PrimitiveKind) interactor.PrimitiveKind { return k }).Draw(rt, "hidden")
		for _, k := range hidden {
			reg.Register(k, render.Tier100, render.Hidden{})
		}

		f := newFixture(testSettings, reg)
		f.load()
		f.records["static"] = map[string][]interactor.RawInteraction{"X": append(
			[]interactor.RawInteraction{{ID: 1, PartnerAccession: "X"}, {ID: 2, PartnerAccession: "Y"}},
			unmatched("Z", 4)...,
		)}
		f.manager.Resolve(f.a, true)

		zoom := rapid.Float64Range(0.1, 20).Draw(rt, "zoom")
		f.viewport.SetMatrix(viewport.Scaling(zoom))
		pt := r2.Vec{
			X: rapid.Float64Range(-200, 600).Draw(rt, "x"),
			Y: rapid.Float64Range(-200, 200).Draw(rt, "y"),
		}
		screen := f.viewport.ModelToScreen(pt)
		for _, p := range f.manager.HoveredAt(screen, "static") {
			r := reg.For(p, zoom)
			require.NotNil(rt, r)
			require.True(rt, r.IsVisible(p), "returned invisible %s", p.Key())
		}
	})
}

// Toggling any sequence of anchors on and then off leaves nothing behind.
func TestProperty_ToggleOffRestoresStore(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(testSettings, nil)
		f.load()
		partners := []string{"X", "Y", "W", "P1", "P2", "P3"}
		anchors := []*interactor.DiagramEntity{f.a, f.b, f.c}
		f.records["static"] = map[string][]interactor.RawInteraction{}
		for _, a := range anchors {
			picks := rapid.SliceOf(rapid.SampledFrom(partners)).Draw(rt, "partners_"+a.Accession)
			recs := make([]interactor.RawInteraction, len(picks))
			for i, p := range picks {
				recs[i] = interactor.RawInteraction{ID: int64(i), PartnerAccession: p}
			}
			f.records["static"][a.Accession] = recs
		}

		order := rapid.Permutation(anchors).Draw(rt, "order")
		for _, a := range order {
			f.manager.Resolve(a, true)
			for _, acc := range []string{"P1", "P2", "P3"} {
				if e, ok := f.store.InteractorEntity("static", acc); ok {
					require.False(rt, e.Orphaned())
				}
			}
		}
		for _, a := range rapid.Permutation(anchors).Draw(rt, "off") {
			f.manager.Resolve(a, false)
		}
		require.Zero(rt, f.store.Len("static"))
		require.Zero(rt, f.store.EntityCount("static"))
		require.Empty(rt, f.manager.InteractorLinks("static", nil))
	})
}
