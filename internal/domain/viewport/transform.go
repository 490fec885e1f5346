package viewport

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// PanZoom is an incremental viewport change: zoom by Scale around the screen
// point Origin, then translate by (DX, DY) in screen space.  A non-positive
// Scale means no zoom.
type PanZoom struct {
	DX, DY float64
	Scale  float64
	Origin r2.Vec
}

// Option configures a Transform.
type Option func(*Transform)

// WithZoomLimits clamps the zoom factor reached through ApplyPanZoom.
// Non-positive bounds disable the corresponding limit.
func WithZoomLimits(lo, hi float64) Option {
	return func(t *Transform) {
		t.minZoom = lo
		t.maxZoom = hi
	}
}

// WithMatrix sets the initial matrix.  Non-invertible matrices are ignored.
func WithMatrix(m Matrix) Option {
	return func(t *Transform) {
		t.SetMatrix(m)
	}
}

// Transform holds the current affine matrix, its inverse and the viewport
// size.  It is not safe for concurrent use.
type Transform struct {
	matrix  Matrix
	inverse Matrix

	width, height    float64
	minZoom, maxZoom float64
}

// New returns an identity Transform for a viewport of the given screen size.
func New(width, height float64, opts ...Option) *Transform {
	t := &Transform{
		matrix:  Identity,
		inverse: Identity,
		width:   math.Max(width, 0),
		height:  math.Max(height, 0),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Matrix returns the current matrix.
func (t *Transform) Matrix() Matrix { return t.matrix }

// Size returns the viewport size in screen units.
func (t *Transform) Size() (width, height float64) { return t.width, t.height }

// Resize changes the viewport size.  The matrix is left as is.
func (t *Transform) Resize(width, height float64) {
	t.width = math.Max(width, 0)
	t.height = math.Max(height, 0)
}

// SetMatrix replaces the matrix and recomputes its inverse.  A matrix that
// cannot be inverted is rejected and the previous state kept.
func (t *Transform) SetMatrix(m Matrix) bool {
	if !m.Invertible() {
		return false
	}
	t.matrix = m
	t.inverse = m.Inverse()
	return true
}

// ApplyPanZoom composes d onto the current matrix.
func (t *Transform) ApplyPanZoom(d PanZoom) bool {
	s := d.Scale
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		s = 1
	}
	if zoom := t.ZoomFactor(); zoom > 0 && s != 1 {
		// Outside the limits a gesture may stall but never reverses or
		// grows.
		clamped := t.clampZoom(zoom*s) / zoom
		if s > 1 {
			s = math.Min(math.Max(clamped, 1), s)
		} else {
			s = math.Max(math.Min(clamped, 1), s)
		}
	}

	m := Translation(d.Origin.X, d.Origin.Y).
		Multiply(Scaling(s)).
		Multiply(Translation(-d.Origin.X, -d.Origin.Y)).
		Multiply(t.matrix)
	m = Translation(d.DX, d.DY).Multiply(m)
	return t.SetMatrix(m)
}

func (t *Transform) clampZoom(z float64) float64 {
	if t.minZoom > 0 && z < t.minZoom {
		z = t.minZoom
	}
	if t.maxZoom > 0 && z > t.maxZoom {
		z = t.maxZoom
	}
	return z
}

// FitToBounds computes, without applying it, the matrix that centers content
// expanded by frame on every side inside the viewport at the largest zoom
// that keeps it fully visible.  A framed box with non-positive width or
// height, or an empty viewport, falls back to zoom 1.
func (t *Transform) FitToBounds(content r2.Box, frame float64) Matrix {
	minX, maxX := math.Min(content.Min.X, content.Max.X), math.Max(content.Min.X, content.Max.X)
	minY, maxY := math.Min(content.Min.Y, content.Max.Y), math.Max(content.Min.Y, content.Max.Y)
	minX, minY = minX-frame, minY-frame
	maxX, maxY = maxX+frame, maxY+frame

	w, h := maxX-minX, maxY-minY
	cx, cy := minX+w/2, minY+h/2

	zoom := 1.0
	if w > 0 && h > 0 && t.width > 0 && t.height > 0 {
		zoom = math.Min(t.width/w, t.height/h)
	}

	vcx, vcy := t.width/2, t.height/2
	return Scaling(zoom).Translate(vcx/zoom-cx, vcy/zoom-cy)
}

// ScreenToModel maps a screen point into model space.
func (t *Transform) ScreenToModel(p r2.Vec) r2.Vec {
	return t.inverse.Apply(p)
}

// ModelToScreen maps a model point into screen space.
func (t *Transform) ModelToScreen(p r2.Vec) r2.Vec {
	return t.matrix.Apply(p)
}

// ZoomFactor returns the horizontal scale component of the matrix.
func (t *Transform) ZoomFactor() float64 {
	return t.matrix.A
}

// VisibleModelBox returns the model-space rectangle covered by the viewport.
func (t *Transform) VisibleModelBox() r2.Box {
	corners := [...]r2.Vec{
		t.ScreenToModel(r2.Vec{}),
		t.ScreenToModel(r2.Vec{X: t.width}),
		t.ScreenToModel(r2.Vec{Y: t.height}),
		t.ScreenToModel(r2.Vec{X: t.width, Y: t.height}),
	}
	box := r2.Box{Min: corners[0], Max: corners[0]}
	for _, c := range corners[1:] {
		box.Min.X, box.Min.Y = math.Min(box.Min.X, c.X), math.Min(box.Min.Y, c.Y)
		box.Max.X, box.Max.Y = math.Max(box.Max.X, c.X), math.Max(box.Max.Y, c.Y)
	}
	return box
}
