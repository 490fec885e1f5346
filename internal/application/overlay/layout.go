package overlay

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/turtacn/pathway-overlay/internal/domain/interactor"
)

// RadialLayout places the i-th of n dynamic interactors on a circle around
// the anchor, starting at twelve o'clock and going clockwise in screen
// orientation.
type RadialLayout struct {
	Radius     float64
	NodeWidth  float64
	NodeHeight float64
}

// Place returns the box of the i-th of n interactors around anchor.
func (l RadialLayout) Place(anchor *interactor.DiagramEntity, i, n int) r2.Box {
	if n <= 0 {
		n = 1
	}
	angle := 2*math.Pi*float64(i)/float64(n) - math.Pi/2
	offset := r2.Vec{X: l.Radius * math.Cos(angle), Y: l.Radius * math.Sin(angle)}
	c := r2.Add(anchor.Center(), offset)
	half := r2.Vec{X: l.NodeWidth / 2, Y: l.NodeHeight / 2}
	return r2.Box{Min: r2.Sub(c, half), Max: r2.Add(c, half)}
}
