package handlers

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/turtacn/pathway-overlay/internal/domain/interactor"
	"github.com/turtacn/pathway-overlay/internal/domain/viewport"
)

// BoxView is the JSON form of a model-space box.
type BoxView struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

func boxView(b r2.Box) BoxView {
	return BoxView{MinX: b.Min.X, MinY: b.Min.Y, MaxX: b.Max.X, MaxY: b.Max.Y}
}

// PrimitiveView is the JSON form of an overlay primitive.
type PrimitiveView struct {
	Kind          interactor.PrimitiveKind `json:"kind"`
	Key           string                   `json:"key"`
	Bounds        BoxView                  `json:"bounds"`
	Anchor        int64                    `json:"anchor,omitempty"`
	Target        int64                    `json:"target,omitempty"`
	InteractionID int64                    `json:"interaction_id,omitempty"`
	Score         float64                  `json:"score,omitempty"`
	Accession     string                   `json:"accession,omitempty"`
	Alias         string                   `json:"alias,omitempty"`
	Highlighted   bool                     `json:"highlighted,omitempty"`
}

func primitiveView(p interactor.Primitive, highlighted bool) PrimitiveView {
	v := PrimitiveView{Kind: p.Kind(), Key: p.Key(), Bounds: boxView(p.Bounds()), Highlighted: highlighted}
	if l, ok := p.(interactor.Link); ok {
		v.Anchor = l.Anchor().ID
		v.InteractionID = l.InteractionID()
		v.Score = l.Score()
	}
	switch t := p.(type) {
	case *interactor.StaticLink:
		v.Target = t.Target().ID
	case *interactor.DynamicLink:
		v.Accession = t.Entity().Accession()
		v.Alias = t.Entity().Alias()
	case *interactor.Entity:
		v.Accession = t.Accession()
		v.Alias = t.Alias()
	}
	return v
}

// MatrixView is the JSON form of an affine matrix.
type MatrixView struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
	D float64 `json:"d"`
	E float64 `json:"e"`
	F float64 `json:"f"`
}

func (m MatrixView) matrix() viewport.Matrix {
	return viewport.Matrix{A: m.A, B: m.B, C: m.C, D: m.D, E: m.E, F: m.F}
}

func matrixView(m viewport.Matrix) MatrixView {
	return MatrixView{A: m.A, B: m.B, C: m.C, D: m.D, E: m.E, F: m.F}
}

// ViewportView reports the viewport state.
type ViewportView struct {
	Matrix  MatrixView `json:"matrix"`
	Zoom    float64    `json:"zoom"`
	Width   float64    `json:"width"`
	Height  float64    `json:"height"`
	Visible BoxView    `json:"visible"`
}

func viewportView(t *viewport.Transform) ViewportView {
	w, h := t.Size()
	return ViewportView{
		Matrix:  matrixView(t.Matrix()),
		Zoom:    t.ZoomFactor(),
		Width:   w,
		Height:  h,
		Visible: boxView(t.VisibleModelBox()),
	}
}
