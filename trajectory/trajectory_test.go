package trajectory

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/motiontrack/spatialmath"
	"go.viam.com/motiontrack/utils/matrix"
)

func posesAt(points ...r3.Vector) []spatialmath.Pose {
	poses := make([]spatialmath.Pose, 0, len(points))
	for i, p := range points {
		poses = append(poses, spatialmath.NewPose(float64(i), p, spatialmath.NewZeroOrientation()))
	}
	return poses
}

func yaw(theta float64) matrix.Mat3 {
	s, c := math.Sincos(theta)
	return matrix.Mat3{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
}

func TestUmeyamaRecoversOffset(t *testing.T) {
	src := []r3.Vector{{}, {X: 1}, {Y: 1}}
	offset := r3.Vector{X: 1, Y: 2, Z: 3}
	dst := make([]r3.Vector, len(src))
	for i, p := range src {
		dst[i] = p.Add(offset)
	}

	result, err := Umeyama(src, dst)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.Scale, test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, result.Translation.X, test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, result.Translation.Y, test.ShouldAlmostEqual, 2, 1e-9)
	test.That(t, result.Translation.Z, test.ShouldAlmostEqual, 3, 1e-9)
	test.That(t, result.Rotation.AlmostEqual(matrix.Identity3(), 1e-9), test.ShouldBeTrue)
	test.That(t, result.RMSE, test.ShouldAlmostEqual, 0, 1e-9)
}

func TestUmeyamaRecoversSimilarity(t *testing.T) {
	for _, tc := range []struct {
		name        string
		src         []r3.Vector
		scale       float64
		rotation    matrix.Mat3
		translation r3.Vector
	}{
		{
			"general",
			[]r3.Vector{{}, {X: 1}, {Y: 2}, {Z: 1}, {X: 1, Y: 1, Z: 1}, {X: -1, Y: 0.5, Z: 2}},
			2.5, yaw(0.7), r3.Vector{X: 0.5, Y: -1, Z: 3},
		},
		{
			"planar",
			[]r3.Vector{{}, {X: 1}, {X: 2, Y: 0.5}, {X: 3, Y: 1.5}, {X: 3.5, Y: 3}},
			0.3, yaw(0.7), r3.Vector{X: 0.2, Y: 0.1},
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			dst := make([]r3.Vector, len(tc.src))
			for i, p := range tc.src {
				dst[i] = tc.rotation.MulVec(p).Mul(tc.scale).Add(tc.translation)
			}
			result, err := Umeyama(tc.src, dst)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, result.Scale, test.ShouldAlmostEqual, tc.scale, 1e-9)
			test.That(t, result.Rotation.AlmostEqual(tc.rotation, 1e-9), test.ShouldBeTrue)
			test.That(t, result.Translation.Sub(tc.translation).Norm(), test.ShouldBeLessThan, 1e-9)
			test.That(t, result.RMSE, test.ShouldBeLessThan, 1e-9)
			for i, p := range tc.src {
				test.That(t, result.Apply(p).Sub(dst[i]).Norm(), test.ShouldBeLessThan, 1e-9)
			}
		})
	}
}

func TestUmeyamaRejectsReflection(t *testing.T) {
	src := []r3.Vector{{}, {X: 1}, {Y: 2}, {Z: 1}, {X: 1, Y: 1, Z: 1}}
	dst := make([]r3.Vector, len(src))
	for i, p := range src {
		dst[i] = r3.Vector{X: p.X, Y: p.Y, Z: -p.Z}
	}
	result, err := Umeyama(src, dst)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.Rotation.Det(), test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, result.RMSE, test.ShouldBeGreaterThan, 0.1)
}

func TestUmeyamaPreconditions(t *testing.T) {
	_, err := Umeyama([]r3.Vector{{}, {X: 1}}, []r3.Vector{{}, {X: 1}})
	test.That(t, errors.Is(err, ErrInsufficientPoints), test.ShouldBeTrue)

	_, err = Umeyama([]r3.Vector{{}, {X: 1}, {Y: 1}}, []r3.Vector{{}, {X: 1}})
	test.That(t, errors.Is(err, ErrLengthMismatch), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "src has 3 points, dst has 2")
}

func TestComputeMetrics(t *testing.T) {
	ref := posesAt(r3.Vector{}, r3.Vector{X: 1})
	est := posesAt(r3.Vector{X: 0.5}, r3.Vector{X: 1.5})
	m := ComputeMetrics(ref, est)
	test.That(t, m.Count, test.ShouldEqual, 2)
	test.That(t, m.RMSE, test.ShouldAlmostEqual, 0.5)
	test.That(t, m.MeanAbsError, test.ShouldAlmostEqual, 0.5)
	test.That(t, m.MaxError, test.ShouldAlmostEqual, 0.5)
	test.That(t, m.Elapsed, test.ShouldAlmostEqual, 1)
	test.That(t, m.DriftRate, test.ShouldAlmostEqual, 0.5)

	// truncated to the shorter sequence
	est = append(est, spatialmath.NewPose(2, r3.Vector{X: 100}, spatialmath.NewZeroOrientation()))
	test.That(t, ComputeMetrics(ref, est), test.ShouldResemble, m)

	ref = posesAt(r3.Vector{}, r3.Vector{X: 1}, r3.Vector{X: 2})
	est = posesAt(r3.Vector{}, r3.Vector{X: 1, Y: 3}, r3.Vector{X: 2, Y: 4})
	m = ComputeMetrics(ref, est)
	test.That(t, m.RMSE, test.ShouldAlmostEqual, math.Sqrt(25./3))
	test.That(t, m.MeanAbsError, test.ShouldAlmostEqual, 7./3)
	test.That(t, m.MaxError, test.ShouldAlmostEqual, 4)
	test.That(t, m.DriftRate, test.ShouldAlmostEqual, 2)

	test.That(t, ComputeMetrics(nil, est), test.ShouldResemble, Metrics{})
	single := ComputeMetrics(posesAt(r3.Vector{}), posesAt(r3.Vector{X: 3}))
	test.That(t, single.MaxError, test.ShouldAlmostEqual, 3)
	test.That(t, single.DriftRate, test.ShouldEqual, 0.)
}

func TestAlignAndCompare(t *testing.T) {
	ref := posesAt(r3.Vector{}, r3.Vector{X: 1}, r3.Vector{X: 2, Y: 1}, r3.Vector{X: 2, Y: 3})
	est := make([]spatialmath.Pose, len(ref))
	for i, p := range ref {
		// an estimate at a tenth of the scale, rotated and displaced
		est[i] = p
		est[i].Position = yaw(-0.4).MulVec(p.Position).Mul(0.1).Add(r3.Vector{X: 5})
	}
	raw := ComputeMetrics(ref, est)
	test.That(t, raw.RMSE, test.ShouldBeGreaterThan, 1)

	alignment, m, err := AlignAndCompare(ref, est)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, alignment.Scale, test.ShouldAlmostEqual, 10, 1e-6)
	test.That(t, m.RMSE, test.ShouldBeLessThan, 1e-6)
	test.That(t, m.Count, test.ShouldEqual, 4)

	_, _, err = AlignAndCompare(ref[:2], est)
	test.That(t, errors.Is(err, ErrInsufficientPoints), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldStartWith, "cannot align trajectories")
}

func TestTransformRotatesOrientation(t *testing.T) {
	a := AlignmentResult{Scale: 1, Rotation: yaw(math.Pi / 2)}
	p := a.Transform(spatialmath.NewPose(3, r3.Vector{X: 1}, spatialmath.NewZeroOrientation()))
	test.That(t, p.Timestamp, test.ShouldEqual, 3.)
	test.That(t, p.Position.Sub(r3.Vector{Y: 1}).Norm(), test.ShouldBeLessThan, 1e-12)
	test.That(t, spatialmath.RotationAngle(p.Orientation), test.ShouldAlmostEqual, math.Pi/2)

	// an improper matrix leaves orientation untouched
	a.Rotation = matrix.Identity3().Scale(2)
	p = a.Transform(spatialmath.NewZeroPose(0))
	test.That(t, p.Orientation, test.ShouldResemble, spatialmath.NewZeroOrientation())
}

func TestHistory(t *testing.T) {
	h := NewHistory()
	test.That(t, h.Len(), test.ShouldEqual, 0)

	var wg sync.WaitGroup
	var unordered int
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			h.Append(spatialmath.NewZeroPose(float64(i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			snap := h.Snapshot()
			for j := 1; j < len(snap); j++ {
				if snap[j].Timestamp <= snap[j-1].Timestamp {
					unordered++
				}
			}
		}
	}()
	wg.Wait()

	test.That(t, unordered, test.ShouldEqual, 0)
	test.That(t, h.Len(), test.ShouldEqual, 100)
	snap := h.Snapshot()
	test.That(t, snap[len(snap)-1].Timestamp, test.ShouldEqual, 99.)

	snap[0].Timestamp = -1
	test.That(t, h.Snapshot()[0].Timestamp, test.ShouldEqual, 0.)

	h.Reset()
	test.That(t, h.Len(), test.ShouldEqual, 0)
	test.That(t, Positions(posesAt(r3.Vector{X: 1}, r3.Vector{Y: 2})), test.ShouldResemble, []r3.Vector{{X: 1}, {Y: 2}})
}
