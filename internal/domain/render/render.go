// Package render defines the renderer capability the overlay consumes for
// visibility and hover decisions, and the (kind, tier) table that selects a
// renderer for the current zoom level.  Painting is not part of this package.
package render

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/turtacn/pathway-overlay/internal/domain/interactor"
)

// Renderer answers the two questions the hit-test resolver asks about a
// primitive at a given level of detail.
type Renderer interface {
	IsVisible(p interactor.Primitive) bool
	IsHovered(p interactor.Primitive, modelPoint r2.Vec) bool
}

// ─────────────────────────────────────────────────────────────────────────────
// Tiers
// ─────────────────────────────────────────────────────────────────────────────

// Tier is a level of detail derived from the zoom factor.
type Tier int

const (
	Tier000 Tier = iota
	Tier050
	Tier100
	Tier800
)

func (t Tier) String() string {
	switch t {
	case Tier000:
		return "000"
	case Tier050:
		return "050"
	case Tier100:
		return "100"
	case Tier800:
		return "800"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// TierFor maps a zoom factor to its tier.
func TierFor(zoom float64) Tier {
	switch {
	case zoom < 0.5:
		return Tier000
	case zoom < 1:
		return Tier050
	case zoom < 8:
		return Tier100
	default:
		return Tier800
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Registry
// ─────────────────────────────────────────────────────────────────────────────

type key struct {
	kind interactor.PrimitiveKind
	tier Tier
}

// Registry looks renderers up by primitive kind and tier.
type Registry struct {
	entries map[key]Renderer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[key]Renderer)}
}

// Register installs r for (kind, tier), replacing any previous entry.
func (r *Registry) Register(kind interactor.PrimitiveKind, tier Tier, renderer Renderer) {
	r.entries[key{kind, tier}] = renderer
}

// Delegate makes (kind, from) resolve to whatever (kind, to) resolves to at
// lookup time.
func (r *Registry) Delegate(kind interactor.PrimitiveKind, from, to Tier) {
	r.entries[key{kind, from}] = delegate{registry: r, key: key{kind, to}}
}

// Lookup returns the renderer for (kind, tier).
func (r *Registry) Lookup(kind interactor.PrimitiveKind, tier Tier) (Renderer, bool) {
	renderer, ok := r.entries[key{kind, tier}]
	if d, isDelegate := renderer.(delegate); isDelegate {
		return d.resolve()
	}
	return renderer, ok
}

// For returns the renderer for p at zoom, or nil when none is registered.
func (r *Registry) For(p interactor.Primitive, zoom float64) Renderer {
	renderer, ok := r.Lookup(p.Kind(), TierFor(zoom))
	if !ok {
		return nil
	}
	return renderer
}

type delegate struct {
	registry *Registry
	key      key
}

func (d delegate) resolve() (Renderer, bool) {
	renderer, ok := d.registry.entries[d.key]
	if _, loops := renderer.(delegate); loops {
		return nil, false
	}
	return renderer, ok
}

func (d delegate) IsVisible(p interactor.Primitive) bool {
	if r, ok := d.resolve(); ok {
		return r.IsVisible(p)
	}
	return false
}

func (d delegate) IsHovered(p interactor.Primitive, pt r2.Vec) bool {
	if r, ok := d.resolve(); ok {
		return r.IsHovered(p, pt)
	}
	return false
}

// NewDefaultRegistry returns the geometric renderers for every kind and tier.
// Dynamic primitives are hidden at Tier000 and Tier800 reuses Tier100.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	kinds := map[interactor.PrimitiveKind]Renderer{
		interactor.KindEntity:      BoxRenderer{},
		interactor.KindStaticLink:  SegmentRenderer{Tolerance: interactor.HitTolerance},
		interactor.KindDynamicLink: SegmentRenderer{Tolerance: interactor.HitTolerance},
		interactor.KindLoopLink:    RingRenderer{Radius: interactor.LoopRadius, Tolerance: interactor.HitTolerance},
	}
	for kind, renderer := range kinds {
		r.Register(kind, Tier050, renderer)
		r.Register(kind, Tier100, renderer)
		r.Delegate(kind, Tier800, Tier100)
		r.Register(kind, Tier000, renderer)
	}
	r.Register(interactor.KindEntity, Tier000, Hidden{})
	r.Register(interactor.KindDynamicLink, Tier000, Hidden{})
	return r
}
