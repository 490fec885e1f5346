// Package viewport owns the pan/zoom affine transform between screen space
// and diagram model space.
package viewport

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Matrix is a 2×3 affine matrix in SVG order:
//
//	x' = A·x + C·y + E
//	y' = B·x + D·y + F
type Matrix struct {
	A, B, C, D, E, F float64
}

// Identity is the identity matrix.
var Identity = Matrix{A: 1, D: 1}

// Scaling returns a uniform scale about the origin.
func Scaling(s float64) Matrix {
	return Matrix{A: s, D: s}
}

// Translation returns a translation by (tx, ty).
func Translation(tx, ty float64) Matrix {
	return Matrix{A: 1, D: 1, E: tx, F: ty}
}

// Multiply returns m·n, the transform that applies n first and then m.
func (m Matrix) Multiply(n Matrix) Matrix {
	return Matrix{
		A: m.A*n.A + m.C*n.B,
		B: m.B*n.A + m.D*n.B,
		C: m.A*n.C + m.C*n.D,
		D: m.B*n.C + m.D*n.D,
		E: m.A*n.E + m.C*n.F + m.E,
		F: m.B*n.E + m.D*n.F + m.F,
	}
}

// Scale returns m·scale(s).
func (m Matrix) Scale(s float64) Matrix {
	return m.Multiply(Scaling(s))
}

// Translate returns m·translate(tx, ty).
func (m Matrix) Translate(tx, ty float64) Matrix {
	return m.Multiply(Translation(tx, ty))
}

// Apply maps p through m.
func (m Matrix) Apply(p r2.Vec) r2.Vec {
	return r2.Vec{
		X: m.A*p.X + m.C*p.Y + m.E,
		Y: m.B*p.X + m.D*p.Y + m.F,
	}
}

// Determinant of the linear part.
func (m Matrix) Determinant() float64 {
	return m.A*m.D - m.B*m.C
}

// Invertible reports whether m has a finite, non-zero determinant and finite
// components.
func (m Matrix) Invertible() bool {
	det := m.Determinant()
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return false
	}
	for _, v := range [...]float64{m.A, m.B, m.C, m.D, m.E, m.F} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Inverse returns m⁻¹.  The result is undefined when m is not invertible.
func (m Matrix) Inverse() Matrix {
	det := m.Determinant()
	return Matrix{
		A: m.D / det,
		B: -m.B / det,
		C: -m.C / det,
		D: m.A / det,
		E: (m.C*m.F - m.D*m.E) / det,
		F: (m.B*m.E - m.A*m.F) / det,
	}
}
