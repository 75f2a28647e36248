package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"
)

// represent a 45 degree rotation around the x axis in all the representations
var (
	th    = math.Pi / 4.
	q45x  = quat.Number{Real: math.Cos(th / 2.), Imag: math.Sin(th / 2.), Jmag: 0, Kmag: 0} // in quaternion representation
	aa45x = &R4AA{th, 1., 0., 0.}                                   // in axis-angle representation
)

func TestZeroOrientation(t *testing.T) {
	zero := NewZeroOrientation()
	test.That(t, zero, test.ShouldResemble, quat.Number{Real: 1, Imag: 0, Jmag: 0, Kmag: 0})
	test.That(t, QuatToR4AA(zero), test.ShouldResemble, NewR4AA())
	test.That(t, RotationAngle(zero), test.ShouldEqual, 0.)
}

func TestNormalize(t *testing.T) {
	q := Normalize(quat.Number{Real: 2, Imag: 0, Jmag: 0, Kmag: 0})
	test.That(t, q, test.ShouldResemble, quat.Number{Real: 1, Imag: 0, Jmag: 0, Kmag: 0})

	q = Normalize(quat.Number{Real: 1, Imag: 1, Jmag: 1, Kmag: 1})
	test.That(t, Norm(q), test.ShouldAlmostEqual, 1)
	test.That(t, q.Kmag, test.ShouldAlmostEqual, 0.5)

	test.That(t, Normalize(quat.Number{}), test.ShouldResemble, NewZeroOrientation())
	test.That(t, Normalize(quat.Number{Real: math.NaN()}), test.ShouldResemble, NewZeroOrientation())
}

func TestAxisAngles(t *testing.T) {
	q := aa45x.ToQuat()
	test.That(t, q.Real, test.ShouldAlmostEqual, q45x.Real)
	test.That(t, q.Imag, test.ShouldAlmostEqual, q45x.Imag)
	test.That(t, q.Jmag, test.ShouldAlmostEqual, q45x.Jmag)
	test.That(t, q.Kmag, test.ShouldAlmostEqual, q45x.Kmag)

	aa := QuatToR4AA(q45x)
	test.That(t, aa.Theta, test.ShouldAlmostEqual, aa45x.Theta)
	test.That(t, aa.RX, test.ShouldAlmostEqual, aa45x.RX)
	test.That(t, aa.RY, test.ShouldAlmostEqual, aa45x.RY)
	test.That(t, aa.RZ, test.ShouldAlmostEqual, aa45x.RZ)

	// the negated quaternion is the same rotation
	aa = QuatToR4AA(Flip(q45x))
	test.That(t, aa.Theta, test.ShouldAlmostEqual, aa45x.Theta)
	test.That(t, aa.RX, test.ShouldAlmostEqual, 1)

	r3aa := aa45x.ToR3()
	test.That(t, r3aa.X, test.ShouldAlmostEqual, th)
	test.That(t, R3ToR4(r3aa), test.ShouldResemble, aa45x)
	test.That(t, R3ToR4(r3.Vector{}), test.ShouldResemble, NewR4AA())
}

func TestRotateVector(t *testing.T) {
	yaw90 := (&R4AA{math.Pi / 2, 0, 0, 1}).ToQuat()

	v := RotateVector(yaw90, r3.Vector{X: 1})
	test.That(t, v.X, test.ShouldAlmostEqual, 0)
	test.That(t, v.Y, test.ShouldAlmostEqual, 1)
	test.That(t, v.Z, test.ShouldAlmostEqual, 0)

	back := InverseRotateVector(yaw90, v)
	test.That(t, back.X, test.ShouldAlmostEqual, 1)
	test.That(t, back.Y, test.ShouldAlmostEqual, 0)

	// rotation preserves length
	w := RotateVector(q45x, r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, w.Norm(), test.ShouldAlmostEqual, r3.Vector{X: 1, Y: 2, Z: 3}.Norm())
}

func TestIntegrateAngularVelocity(t *testing.T) {
	q := NewZeroOrientation()
	for i := 0; i < 100; i++ {
		q = IntegrateAngularVelocity(q, r3.Vector{Z: math.Pi / 2}, 0.01)
		test.That(t, Norm(q), test.ShouldAlmostEqual, 1)
	}
	expected := (&R4AA{math.Pi / 2, 0, 0, 1}).ToQuat()
	test.That(t, QuaternionAlmostEqual(q, expected, 1e-9), test.ShouldBeTrue)

	test.That(t, IntegrateAngularVelocity(q45x, r3.Vector{}, 0.1), test.ShouldResemble, Normalize(q45x))
}

func TestOrientationBetween(t *testing.T) {
	yaw10 := (&R4AA{0.1, 0, 0, 1}).ToQuat()
	yaw30 := (&R4AA{0.3, 0, 0, 1}).ToQuat()
	diff := OrientationBetween(yaw10, yaw30)
	test.That(t, RotationAngle(diff), test.ShouldAlmostEqual, 0.2)
	test.That(t, RotationAngle(Flip(diff)), test.ShouldAlmostEqual, 0.2)

	test.That(t, QuaternionAlmostEqual(quat.Mul(diff, yaw10), yaw30, 1e-9), test.ShouldBeTrue)
	test.That(t, QuaternionAlmostEqual(yaw10, yaw30, 1e-5), test.ShouldBeFalse)
	test.That(t, QuaternionAlmostEqual(yaw10, Flip(yaw10), 1e-9), test.ShouldBeTrue)
}

func TestPose(t *testing.T) {
	p := NewZeroPose(1.5)
	test.That(t, p.Timestamp, test.ShouldEqual, 1.5)
	test.That(t, p.Orientation, test.ShouldResemble, NewZeroOrientation())

	moved := p.Translate(r3.Vector{X: 3, Y: 4}).WithTimestamp(2)
	test.That(t, p.Position, test.ShouldResemble, r3.Vector{})
	test.That(t, moved.Timestamp, test.ShouldEqual, 2.)
	test.That(t, moved.DistanceTo(p), test.ShouldAlmostEqual, 5)

	turned := NewPose(2, moved.Position, q45x)
	test.That(t, turned.AngleTo(moved), test.ShouldAlmostEqual, th)
}
