package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"go.viam.com/test"

	"go.viam.com/motiontrack/config"
	"go.viam.com/motiontrack/imu"
	"go.viam.com/motiontrack/logging"
	"go.viam.com/motiontrack/rimage/transform"
	"go.viam.com/motiontrack/testutils"
	"go.viam.com/motiontrack/vision/odometry"
)

const (
	frameWidth  = 160
	frameHeight = 120
)

var testIntrinsics = &transform.PinholeCameraIntrinsics{
	Width: frameWidth, Height: frameHeight, Fx: 500, Fy: 500, Ppx: 80, Ppy: 60,
}

func texturedFrame(ts float64, shift int) odometry.Frame {
	return odometry.Frame{
		Timestamp:  ts,
		Pix:        testutils.TexturedFrame(frameWidth, frameHeight, shift, 0),
		Width:      frameWidth,
		Height:     frameHeight,
		Intrinsics: testIntrinsics,
	}
}

func newTestSession(t *testing.T, cfg *config.Config) *Session {
	t.Helper()
	s, err := New(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, s.Close(), test.ShouldBeNil)
	})
	return s
}

func flush(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	test.That(t, s.Flush(ctx), test.ShouldBeNil)
}

func pushIMU(t *testing.T, s *Session, samples []imu.Sample) {
	t.Helper()
	for _, sample := range samples {
		test.That(t, s.PushIMU(context.Background(), sample), test.ShouldBeNil)
	}
}

func TestNew(t *testing.T) {
	logger := logging.NewTestLogger(t)
	sess1, err := New(nil, logger)
	test.That(t, err, test.ShouldBeNil)
	defer sess1.Close()
	sess2, err := New(config.Default(), logger)
	test.That(t, err, test.ShouldBeNil)
	defer sess2.Close()

	test.That(t, sess1.ID(), test.ShouldNotEqual, uuid.Nil)
	test.That(t, sess1.ID(), test.ShouldNotEqual, sess2.ID())
	test.That(t, sess1.Config(), test.ShouldResemble, *config.Default())

	id := uuid.New()
	sess3, err := NewWithID(id, nil, logger)
	test.That(t, err, test.ShouldBeNil)
	defer sess3.Close()
	test.That(t, sess3.ID(), test.ShouldEqual, id)

	cfg := config.Default()
	cfg.Session.IMUBuffer = 0
	_, err = New(cfg, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "invalid session config")
}

func TestDeadReckoning(t *testing.T) {
	s := newTestSession(t, nil)
	pushIMU(t, s, testutils.StationaryScenario(0.01, imu.DefaultGravity).Samples(200))
	flush(t, s)

	poses := s.DeadReckoningPoses()
	test.That(t, poses, test.ShouldHaveLength, 200)
	test.That(t, poses[199].Timestamp, test.ShouldAlmostEqual, 1.99)
	test.That(t, s.DeadReckoningPose().Position.Norm(), test.ShouldBeLessThan, 1e-6)

	// a sample that does not advance time is rejected
	pushIMU(t, s, []imu.Sample{{Timestamp: 1.5, Accel: r3.Vector{Z: imu.DefaultGravity}}})
	flush(t, s)
	stats := s.Stats()
	test.That(t, stats.IMUPushed, test.ShouldEqual, int64(201))
	test.That(t, stats.IMURejected, test.ShouldEqual, int64(1))
	test.That(t, stats.DeadReckoning, test.ShouldEqual, 200)

	motion := s.Motion()
	test.That(t, motion.DeadReckoningVelocity.Norm(), test.ShouldBeLessThan, 1e-6)
	test.That(t, motion.DeadReckoningAngularVelocity.Vector().Norm(), test.ShouldBeLessThan, 1e-6)
	test.That(t, motion.VisualOdometryInitialized, test.ShouldBeFalse)
}

func TestVisualOdometry(t *testing.T) {
	s := newTestSession(t, nil)
	for i := 0; i < 10; i++ {
		test.That(t, s.PushFrame(texturedFrame(float64(i)*0.1, 2*i)), test.ShouldBeNil)
		flush(t, s)
	}

	poses := s.VisualOdometryPoses()
	test.That(t, poses, test.ShouldHaveLength, 10)
	test.That(t, poses[0].Position.Norm(), test.ShouldEqual, 0.)
	test.That(t, s.VisualOdometryPose().Position.X, test.ShouldBeLessThan, 0.)
	test.That(t, s.Keyframes(), test.ShouldBeGreaterThanOrEqualTo, 1)

	stats := s.Stats()
	test.That(t, stats.FramesPushed, test.ShouldEqual, int64(10))
	test.That(t, stats.FramesDropped, test.ShouldEqual, int64(0))
	test.That(t, stats.FramesTracked, test.ShouldEqual, int64(10))
	test.That(t, stats.VisualOdometry, test.ShouldEqual, 10)

	motion := s.Motion()
	test.That(t, motion.VisualOdometryInitialized, test.ShouldBeTrue)
	test.That(t, motion.VisualOdometryStep.X, test.ShouldBeLessThan, 0.)

	test.That(t, s.PushFrame(odometry.Frame{Timestamp: 1}), test.ShouldBeNil)
	flush(t, s)
	test.That(t, s.Stats().FramesSkipped, test.ShouldEqual, int64(1))
	test.That(t, s.VisualOdometryPoses(), test.ShouldHaveLength, 10)
}

func TestOverflowingFrameKeepsWorkerAlive(t *testing.T) {
	s := newTestSession(t, nil)
	bad := odometry.Frame{Timestamp: 0, Pix: make([]byte, 100), Width: 1<<32 - 1, Height: 1<<32 - 1, Intrinsics: testIntrinsics}
	test.That(t, s.PushFrame(bad), test.ShouldBeNil)
	flush(t, s)
	test.That(t, s.PushFrame(texturedFrame(0.1, 0)), test.ShouldBeNil)
	flush(t, s)

	stats := s.Stats()
	test.That(t, stats.FramesSkipped, test.ShouldEqual, int64(1))
	test.That(t, stats.FramesTracked, test.ShouldEqual, int64(1))
	test.That(t, stats.VisualOdometry, test.ShouldEqual, 1)
}

func TestFramesWithoutWaiting(t *testing.T) {
	s := newTestSession(t, nil)
	for i := 0; i < 30; i++ {
		test.That(t, s.PushFrame(texturedFrame(float64(i)*0.1, i)), test.ShouldBeNil)
	}
	flush(t, s)

	stats := s.Stats()
	test.That(t, stats.FramesPushed, test.ShouldEqual, int64(30))
	processed := stats.FramesPushed - stats.FramesDropped
	test.That(t, processed, test.ShouldBeGreaterThanOrEqualTo, int64(1))
	test.That(t, stats.FramesTracked+stats.FramesLost, test.ShouldEqual, processed)
	test.That(t, int64(stats.VisualOdometry), test.ShouldEqual, processed)
}

func TestReset(t *testing.T) {
	s := newTestSession(t, nil)
	pushIMU(t, s, testutils.StationaryScenario(0.01, imu.DefaultGravity).Samples(50))
	test.That(t, s.PushFrame(texturedFrame(0, 0)), test.ShouldBeNil)
	flush(t, s)
	test.That(t, s.DeadReckoningPoses(), test.ShouldHaveLength, 50)
	test.That(t, s.VisualOdometryPoses(), test.ShouldHaveLength, 1)

	s.Reset()
	test.That(t, s.DeadReckoningPoses(), test.ShouldBeEmpty)
	test.That(t, s.VisualOdometryPoses(), test.ShouldBeEmpty)
	test.That(t, s.Keyframes(), test.ShouldEqual, 0)
	test.That(t, s.Stats().Epoch, test.ShouldEqual, int64(1))

	scenario := testutils.StationaryScenario(0.01, imu.DefaultGravity)
	scenario.Start = 10
	pushIMU(t, s, scenario.Samples(20))
	test.That(t, s.PushFrame(texturedFrame(10, 0)), test.ShouldBeNil)
	flush(t, s)
	poses := s.DeadReckoningPoses()
	test.That(t, poses, test.ShouldHaveLength, 20)
	test.That(t, poses[0].Timestamp, test.ShouldEqual, 10.)
	test.That(t, s.VisualOdometryPoses(), test.ShouldHaveLength, 1)
	test.That(t, s.Keyframes(), test.ShouldEqual, 1)
}

func TestResetWhileStreaming(t *testing.T) {
	s := newTestSession(t, nil)
	samples := testutils.StationaryScenario(0.01, imu.DefaultGravity).Samples(500)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i, sample := range samples {
			if s.PushIMU(context.Background(), sample) != nil {
				return
			}
			if i%10 == 0 {
				if s.PushFrame(texturedFrame(sample.Timestamp, i/10)) != nil {
					return
				}
			}
		}
	}()
	for i := 0; i < 5; i++ {
		s.Reset()
	}
	<-done
	flush(t, s)

	stats := s.Stats()
	test.That(t, stats.Epoch, test.ShouldEqual, int64(5))
	test.That(t, stats.IMUPushed, test.ShouldEqual, int64(500))
	test.That(t, stats.IMURejected, test.ShouldEqual, int64(0))
	test.That(t, int64(stats.DeadReckoning)+stats.IMUStale, test.ShouldBeLessThanOrEqualTo, int64(500))
	test.That(t, s.DeadReckoningPose().Position.Norm(), test.ShouldBeLessThan, 1e-6)
	test.That(t, int64(stats.VisualOdometry), test.ShouldBeLessThanOrEqualTo, stats.FramesPushed)
}

func TestCompare(t *testing.T) {
	s := newTestSession(t, nil)
	scenario := testutils.StationaryScenario(0.01, imu.DefaultGravity)
	scenario.Accel = r3.Vector{X: 0.5}
	pushIMU(t, s, scenario.Samples(101))
	for i := 0; i < 10; i++ {
		test.That(t, s.PushFrame(texturedFrame(float64(i)*0.1, 2*i)), test.ShouldBeNil)
		flush(t, s)
	}
	// outside the dead-reckoning time span
	test.That(t, s.PushFrame(texturedFrame(2, 20)), test.ShouldBeNil)
	flush(t, s)
	test.That(t, s.VisualOdometryPoses(), test.ShouldHaveLength, 11)

	raw, err := s.Compare(false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, raw.Alignment, test.ShouldBeNil)
	test.That(t, raw.Metrics.Count, test.ShouldEqual, 10)
	test.That(t, raw.Metrics.Elapsed, test.ShouldAlmostEqual, 0.9, 1e-9)
	test.That(t, raw.Metrics.MaxError, test.ShouldBeGreaterThan, 0.)

	aligned, err := s.Compare(true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, aligned.Alignment, test.ShouldNotBeNil)
	test.That(t, aligned.Metrics.Count, test.ShouldEqual, 10)

	s.Reset()
	_, err = s.Compare(true)
	test.That(t, err, test.ShouldNotBeNil)
	empty, err := s.Compare(false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, empty.Metrics.Count, test.ShouldEqual, 0)
}

func TestCalibrate(t *testing.T) {
	s := newTestSession(t, nil)
	_, err := s.Calibrate(nil)
	test.That(t, err, test.ShouldNotBeNil)

	scenario := testutils.StationaryScenario(0.01, imu.DefaultGravity)
	scenario.GyroBias = r3.Vector{X: 0.01, Y: -0.02, Z: 0.005}
	scenario.AccelBias = r3.Vector{Z: 0.2}
	calib, err := s.Calibrate(scenario.Samples(100))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, calib.GyroBias.Sub(scenario.GyroBias).Norm(), test.ShouldBeLessThan, 1e-12)
	test.That(t, calib.AccelBias.Z, test.ShouldAlmostEqual, 0.2, 1e-9)
	test.That(t, calib.Gravity, test.ShouldEqual, imu.DefaultGravity)

	s.drMu.Lock()
	test.That(t, s.dr.Calibration(), test.ShouldResemble, calib)
	s.drMu.Unlock()

	pushIMU(t, s, scenario.Samples(100))
	flush(t, s)
	test.That(t, s.DeadReckoningPose().Position.Norm(), test.ShouldBeLessThan, 1e-6)
}

func TestClose(t *testing.T) {
	s, err := New(nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Close(), test.ShouldBeNil)
	test.That(t, s.Close(), test.ShouldBeNil)

	test.That(t, s.PushIMU(context.Background(), imu.Sample{}), test.ShouldBeError, ErrClosed)
	test.That(t, s.PushFrame(texturedFrame(0, 0)), test.ShouldBeError, ErrClosed)
	test.That(t, s.Flush(context.Background()), test.ShouldBeNil)
}
