// Package interactor defines the overlay data model: the diagram entities
// that act as anchors, the raw interaction records fetched for them, the
// synthetic interactor entities and the three link variants drawn between
// them.
package interactor

import (
	"gonum.org/v1/gonum/spatial/r2"
)

// ─────────────────────────────────────────────────────────────────────────────
// Diagram entities
// ─────────────────────────────────────────────────────────────────────────────

// DiagramEntity is a node of the loaded diagram layout.  The loader owns it;
// the overlay only references it.
type DiagramEntity struct {
	ID        int64
	Accession string
	// SchemaClass is the diagram class name ("Protein", "Complex", ...).
	SchemaClass string
	DisplayName string
	Box         r2.Box
	// Pressed is the disclosure toggle state.
	Pressed bool
}

// Center returns the centre of the entity's box.
func (e *DiagramEntity) Center() r2.Vec {
	return boxCenter(e.Box)
}

// RawInteraction is one immutable record fetched from an interaction
// resource.
type RawInteraction struct {
	ID               int64   `json:"id"`
	SourceAccession  string  `json:"source,omitempty"`
	PartnerAccession string  `json:"acc"`
	PartnerAlias     string  `json:"alias,omitempty"`
	Score            float64 `json:"score"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Primitives
// ─────────────────────────────────────────────────────────────────────────────

// PrimitiveKind enumerates the overlay primitive variants.
type PrimitiveKind string

const (
	KindEntity      PrimitiveKind = "interactor"
	KindStaticLink  PrimitiveKind = "static_link"
	KindLoopLink    PrimitiveKind = "loop_link"
	KindDynamicLink PrimitiveKind = "dynamic_link"
)

// Geometry shared by the primitives and the renderers that hit-test them.
const (
	// HitTolerance is the model-space distance within which a link is hovered.
	HitTolerance = 4.0
	// LoopRadius is the radius of the loop drawn on an anchor's top-right corner.
	LoopRadius = 10.0
)

// Primitive is anything the overlay draws and indexes.
type Primitive interface {
	Kind() PrimitiveKind
	// Bounds is the model-space box used by the spatial index.
	Bounds() r2.Box
	// Key is a stable textual identity.
	Key() string
}

// Link is an edge of the overlay, always anchored on a diagram entity.
type Link interface {
	Primitive
	InteractionID() int64
	Score() float64
	Anchor() *DiagramEntity
}

func boxCenter(b r2.Box) r2.Vec {
	return r2.Scale(0.5, r2.Add(b.Min, b.Max))
}

// boundsOf returns the box spanned by points, padded by pad on every side.
func boundsOf(pad float64, points ...r2.Vec) r2.Box {
	b := r2.Box{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		if p.X < b.Min.X {
			b.Min.X = p.X
		}
		if p.Y < b.Min.Y {
			b.Min.Y = p.Y
		}
		if p.X > b.Max.X {
			b.Max.X = p.X
		}
		if p.Y > b.Max.Y {
			b.Max.Y = p.Y
		}
	}
	d := r2.Vec{X: pad, Y: pad}
	return r2.Box{Min: r2.Sub(b.Min, d), Max: r2.Add(b.Max, d)}
}
