// Package spatialmath defines the vector, quaternion and pose primitives shared by the inertial
// and visual estimators.
//
// Vectors are github.com/golang/geo/r3 vectors and orientations are gonum unit quaternions
// (quat.Number with Real as the scalar part). A body-frame vector v is expressed in the world
// frame as q*v*conj(q).
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// quaternionNormEpsilon is the norm under which a quaternion is considered degenerate and is
// replaced by the identity when normalised.
const quaternionNormEpsilon = 1e-12

// NewZeroOrientation returns the identity quaternion, which signifies no rotation.
func NewZeroOrientation() quat.Number {
	return quat.Number{Real: 1}
}

// Norm returns the norm of a quaternion.
func Norm(q quat.Number) float64 {
	return quat.Abs(q)
}

// Normalize returns q scaled to unit norm. A degenerate quaternion normalises to the identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n < quaternionNormEpsilon || math.IsNaN(n) || math.IsInf(n, 0) {
		return NewZeroOrientation()
	}
	return quat.Scale(1/n, q)
}

// Flip returns the quaternion representing the same rotation with the opposite sign.
func Flip(q quat.Number) quat.Number {
	return quat.Scale(-1, q)
}

// PureQuaternion returns the quaternion with a zero real part and v as its imaginary part.
func PureQuaternion(v r3.Vector) quat.Number {
	return quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
}

// RotateVector rotates v from the body frame described by q into the world frame.
func RotateVector(q quat.Number, v r3.Vector) r3.Vector {
	r := quat.Mul(quat.Mul(q, PureQuaternion(v)), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// InverseRotateVector rotates v from the world frame into the body frame described by q.
func InverseRotateVector(q quat.Number, v r3.Vector) r3.Vector {
	r := quat.Mul(quat.Mul(quat.Conj(q), PureQuaternion(v)), q)
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// IntegrateAngularVelocity advances q by the body-frame angular velocity w (rad/s) over dt
// seconds by rotating about w's axis by |w|·dt, and renormalises the result.
func IntegrateAngularVelocity(q quat.Number, w r3.Vector, dt float64) quat.Number {
	delta := R3ToR4(w.Mul(dt)).ToQuat()
	return Normalize(quat.Mul(q, delta))
}

// OrientationBetween returns the rotation taking o1 to o2, expressed in the world frame.
func OrientationBetween(o1, o2 quat.Number) quat.Number {
	return quat.Mul(o2, quat.Conj(o1))
}

// RotationAngle returns the angle in radians, in [0, pi], of the rotation represented by q.
func RotationAngle(q quat.Number) float64 {
	q = Normalize(q)
	w := math.Min(1, math.Abs(q.Real))
	return 2 * math.Acos(w)
}

// QuaternionAlmostEqual reports whether a and b represent the same rotation within tol on every
// component. q and -q are treated as equal.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	near := func(x, y quat.Number) bool {
		return math.Abs(x.Real-y.Real) < tol &&
			math.Abs(x.Imag-y.Imag) < tol &&
			math.Abs(x.Jmag-y.Jmag) < tol &&
			math.Abs(x.Kmag-y.Kmag) < tol
	}
	return near(a, b) || near(a, Flip(b))
}
