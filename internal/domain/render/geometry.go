package render

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/turtacn/pathway-overlay/internal/domain/interactor"
)

// Hidden is never visible nor hovered.
type Hidden struct{}

func (Hidden) IsVisible(interactor.Primitive) bool         { return false }
func (Hidden) IsHovered(interactor.Primitive, r2.Vec) bool { return false }

// BoxRenderer hovers a primitive when the point lies inside its bounds.
type BoxRenderer struct{}

func (BoxRenderer) IsVisible(interactor.Primitive) bool { return true }

func (BoxRenderer) IsHovered(p interactor.Primitive, pt r2.Vec) bool {
	return contains(p.Bounds(), pt)
}

type segmenter interface {
	Segment() (from, to r2.Vec)
}

// SegmentRenderer hovers a link when the point is within Tolerance of the
// drawn segment.
type SegmentRenderer struct {
	Tolerance float64
}

func (SegmentRenderer) IsVisible(interactor.Primitive) bool { return true }

func (r SegmentRenderer) IsHovered(p interactor.Primitive, pt r2.Vec) bool {
	s, ok := p.(segmenter)
	if !ok {
		return false
	}
	from, to := s.Segment()
	return segmentDistance(pt, from, to) <= r.Tolerance
}

type centered interface {
	Center() r2.Vec
}

// RingRenderer hovers a loop when the point is within Tolerance of its ring.
type RingRenderer struct {
	Radius    float64
	Tolerance float64
}

func (RingRenderer) IsVisible(interactor.Primitive) bool { return true }

func (r RingRenderer) IsHovered(p interactor.Primitive, pt r2.Vec) bool {
	c, ok := p.(centered)
	if !ok {
		return false
	}
	return math.Abs(length(r2.Sub(pt, c.Center()))-r.Radius) <= r.Tolerance
}

func contains(b r2.Box, pt r2.Vec) bool {
	return pt.X >= b.Min.X && pt.X <= b.Max.X && pt.Y >= b.Min.Y && pt.Y <= b.Max.Y
}

func length(v r2.Vec) float64 {
	return math.Hypot(v.X, v.Y)
}

// segmentDistance is the distance from pt to the segment [a, b].
func segmentDistance(pt, a, b r2.Vec) float64 {
	ab := r2.Sub(b, a)
	l2 := ab.X*ab.X + ab.Y*ab.Y
	if l2 == 0 {
		return length(r2.Sub(pt, a))
	}
	ap := r2.Sub(pt, a)
	t := (ap.X*ab.X + ap.Y*ab.Y) / l2
	t = math.Max(0, math.Min(1, t))
	return length(r2.Sub(pt, r2.Add(a, r2.Scale(t, ab))))
}
