package imu

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/motiontrack/spatialmath"
)

// gradientEpsilon is the objective gradient norm under which the correction step is skipped.
const gradientEpsilon = 1e-12

// OrientationFilter is a Madgwick gradient-descent orientation filter. The quaternion it holds
// rotates body-frame vectors into the world frame, whose z axis points up.
//
// An OrientationFilter is not safe for concurrent use.
type OrientationFilter struct {
	beta     float64
	nearZero float64
	q        quat.Number
}

// NewOrientationFilter returns a filter at the identity orientation with gain beta. Readings whose
// norm is below nearZero are treated as missing.
func NewOrientationFilter(beta, nearZero float64) *OrientationFilter {
	return &OrientationFilter{beta: beta, nearZero: nearZero, q: spatialmath.NewZeroOrientation()}
}

// Orientation returns the current estimate.
func (f *OrientationFilter) Orientation() quat.Number {
	return f.q
}

// Reset returns the filter to the identity orientation.
func (f *OrientationFilter) Reset() {
	f.q = spatialmath.NewZeroOrientation()
}

// Update advances the estimate by one gyroscope and accelerometer reading taken dt seconds after
// the previous one. With a near-zero accelerometer reading only the gyroscope is integrated.
func (f *OrientationFilter) Update(gyro, accel r3.Vector, dt float64) quat.Number {
	n := accel.Norm()
	if n < f.nearZero || math.IsNaN(n) {
		f.q = spatialmath.IntegrateAngularVelocity(f.q, gyro, dt)
		return f.q
	}
	a := accel.Mul(1 / n)
	q0, q1, q2, q3 := f.q.Real, f.q.Imag, f.q.Jmag, f.q.Kmag

	// gradient of the error between measured and predicted gravity direction
	s0 := 4*q0*q2*q2 + 2*q2*a.X + 4*q0*q1*q1 - 2*q1*a.Y
	s1 := 4*q1*q3*q3 - 2*q3*a.X + 4*q0*q0*q1 - 2*q0*a.Y - 4*q1 + 8*q1*q1*q1 + 8*q1*q2*q2 + 4*q1*a.Z
	s2 := 4*q0*q0*q2 + 2*q0*a.X + 4*q2*q3*q3 - 2*q3*a.Y - 4*q2 + 8*q2*q1*q1 + 8*q2*q2*q2 + 4*q2*a.Z
	s3 := 4*q1*q1*q3 - 2*q1*a.X + 4*q2*q2*q3 - 2*q2*a.Y

	f.q = f.step(gyro, quat.Number{Real: s0, Imag: s1, Jmag: s2, Kmag: s3}, dt)
	return f.q
}

// UpdateMARG is like Update but also corrects heading against the earth magnetic field measured by
// mag. The horizontal and vertical field components are re-estimated from the current orientation
// every step. A near-zero mag falls back to Update.
func (f *OrientationFilter) UpdateMARG(gyro, accel, mag r3.Vector, dt float64) quat.Number {
	mn := mag.Norm()
	if mn < f.nearZero || math.IsNaN(mn) {
		return f.Update(gyro, accel, dt)
	}
	an := accel.Norm()
	if an < f.nearZero || math.IsNaN(an) {
		f.q = spatialmath.IntegrateAngularVelocity(f.q, gyro, dt)
		return f.q
	}
	a := accel.Mul(1 / an)
	m := mag.Mul(1 / mn)
	q0, q1, q2, q3 := f.q.Real, f.q.Imag, f.q.Jmag, f.q.Kmag

	// reference direction of the earth magnetic field
	h := spatialmath.RotateVector(f.q, m)
	bx := math.Hypot(h.X, h.Y)
	bz := h.Z

	// objective: predicted minus measured gravity and field directions, in the body frame
	fg := [3]float64{
		2*(q1*q3-q0*q2) - a.X,
		2*(q0*q1+q2*q3) - a.Y,
		2*(0.5-q1*q1-q2*q2) - a.Z,
	}
	fb := [3]float64{
		2*bx*(0.5-q2*q2-q3*q3) + 2*bz*(q1*q3-q0*q2) - m.X,
		2*bx*(q1*q2-q0*q3) + 2*bz*(q0*q1+q2*q3) - m.Y,
		2*bx*(q0*q2+q1*q3) + 2*bz*(0.5-q1*q1-q2*q2) - m.Z,
	}

	// transposed jacobian times objective
	s0 := -2*q2*fg[0] + 2*q1*fg[1] -
		2*bz*q2*fb[0] + (-2*bx*q3+2*bz*q1)*fb[1] + 2*bx*q2*fb[2]
	s1 := 2*q3*fg[0] + 2*q0*fg[1] - 4*q1*fg[2] +
		2*bz*q3*fb[0] + (2*bx*q2+2*bz*q0)*fb[1] + (2*bx*q3-4*bz*q1)*fb[2]
	s2 := -2*q0*fg[0] + 2*q3*fg[1] - 4*q2*fg[2] +
		(-4*bx*q2-2*bz*q0)*fb[0] + (2*bx*q1+2*bz*q3)*fb[1] + (2*bx*q0-4*bz*q2)*fb[2]
	s3 := 2*q1*fg[0] + 2*q2*fg[1] +
		(-4*bx*q3+2*bz*q1)*fb[0] + (-2*bx*q0+2*bz*q2)*fb[1] + 2*bx*q1*fb[2]

	f.q = f.step(gyro, quat.Number{Real: s0, Imag: s1, Jmag: s2, Kmag: s3}, dt)
	return f.q
}

// step integrates the gyroscope rate, less beta times the normalised gradient, with an explicit
// Euler step and renormalises.
func (f *OrientationFilter) step(gyro r3.Vector, gradient quat.Number, dt float64) quat.Number {
	qDot := quat.Scale(0.5, quat.Mul(f.q, spatialmath.PureQuaternion(gyro)))
	if gn := quat.Abs(gradient); gn > gradientEpsilon && !math.IsNaN(gn) {
		qDot = quat.Sub(qDot, quat.Scale(f.beta/gn, gradient))
	}
	return spatialmath.Normalize(quat.Add(f.q, quat.Scale(dt, qDot)))
}
