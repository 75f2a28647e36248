package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// R4AA is a rotation of Theta radians about the unit axis (RX, RY, RZ). Its R3 form is the axis
// scaled by Theta, so a rotation vector's length is its angle.
type R4AA struct {
	Theta float64 `json:"th"`
	RX    float64 `json:"x"`
	RY    float64 `json:"y"`
	RZ    float64 `json:"z"`
}

// NewR4AA creates an R4AA with zero rotation about the z axis.
func NewR4AA() *R4AA {
	return &R4AA{Theta: 0, RX: 0, RY: 0, RZ: 1}
}

// QuatToR4AA converts a quaternion to an R4 axis angle. The identity maps to NewR4AA.
func QuatToR4AA(q quat.Number) *R4AA {
	q = Normalize(q)
	if q.Real < 0 {
		q = Flip(q)
	}
	sinHalf := math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if sinHalf < quaternionNormEpsilon {
		return NewR4AA()
	}
	return &R4AA{
		Theta: 2 * math.Atan2(sinHalf, q.Real),
		RX:    q.Imag / sinHalf,
		RY:    q.Jmag / sinHalf,
		RZ:    q.Kmag / sinHalf,
	}
}

// ToQuat converts an R4 axis angle to a unit quaternion. A zero axis is the identity.
func (r4 *R4AA) ToQuat() quat.Number {
	axis := r3.Vector{X: r4.RX, Y: r4.RY, Z: r4.RZ}
	n := axis.Norm()
	if n == 0 {
		return NewZeroOrientation()
	}
	axis = axis.Mul(1 / n)
	sinA, cosA := math.Sincos(r4.Theta / 2)
	return quat.Number{Real: cosA, Imag: axis.X * sinA, Jmag: axis.Y * sinA, Kmag: axis.Z * sinA}
}

// ToR3 returns the rotation vector.
func (r4 *R4AA) ToR3() r3.Vector {
	return r3.Vector{X: r4.RX, Y: r4.RY, Z: r4.RZ}.Mul(r4.Theta)
}

// R3ToR4 splits a rotation vector into its angle and unit axis.
func R3ToR4(aa r3.Vector) *R4AA {
	theta := aa.Norm()
	if theta == 0 {
		return NewR4AA()
	}
	return &R4AA{Theta: theta, RX: aa.X / theta, RY: aa.Y / theta, RZ: aa.Z / theta}
}
