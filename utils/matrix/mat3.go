// Package matrix contains small fixed-size linear algebra used by trajectory alignment, and random
// sampling helpers.
package matrix

import "github.com/golang/geo/r3"

// Mat3 is a row-major 3x3 matrix.
type Mat3 [3][3]float64

// Identity3 returns the 3x3 identity matrix.
func Identity3() Mat3 {
	return Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// OuterProduct returns a·bᵀ.
func OuterProduct(a, b r3.Vector) Mat3 {
	av := [3]float64{a.X, a.Y, a.Z}
	bv := [3]float64{b.X, b.Y, b.Z}
	var m Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] = av[i] * bv[j]
		}
	}
	return m
}

// FromColumns builds a matrix whose columns are c0, c1 and c2.
func FromColumns(c0, c1, c2 r3.Vector) Mat3 {
	return Mat3{
		{c0.X, c1.X, c2.X},
		{c0.Y, c1.Y, c2.Y},
		{c0.Z, c1.Z, c2.Z},
	}
}

// Add returns m+o.
func (m Mat3) Add(o Mat3) Mat3 {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] += o[i][j]
		}
	}
	return m
}

// Scale returns s·m.
func (m Mat3) Scale(s float64) Mat3 {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] *= s
		}
	}
	return m
}

// Mul returns the matrix product m·o.
func (m Mat3) Mul(o Mat3) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out[i][j] += m[i][k] * o[k][j]
			}
		}
	}
	return out
}

// MulVec returns m·v.
func (m Mat3) MulVec(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// Transpose returns mᵀ.
func (m Mat3) Transpose() Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[j][i]
		}
	}
	return out
}

// Det returns the determinant of m.
func (m Mat3) Det() float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// Trace returns the sum of the diagonal of m.
func (m Mat3) Trace() float64 {
	return m[0][0] + m[1][1] + m[2][2]
}

// Col returns column j of m.
func (m Mat3) Col(j int) r3.Vector {
	return r3.Vector{X: m[0][j], Y: m[1][j], Z: m[2][j]}
}

// Row returns row i of m.
func (m Mat3) Row(i int) r3.Vector {
	return r3.Vector{X: m[i][0], Y: m[i][1], Z: m[i][2]}
}

// WithCol returns a copy of m with column j replaced by c.
func (m Mat3) WithCol(j int, c r3.Vector) Mat3 {
	m[0][j], m[1][j], m[2][j] = c.X, c.Y, c.Z
	return m
}

// AlmostEqual reports whether every element of m and o differ by less than tol.
func (m Mat3) AlmostEqual(o Mat3, tol float64) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			d := m[i][j] - o[i][j]
			if d > tol || d < -tol {
				return false
			}
		}
	}
	return true
}
