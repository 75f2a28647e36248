// Package session runs the dead-reckoning and visual-odometry engines side by side. Each engine
// is fed by its own worker goroutine so that callers may deliver IMU samples and camera frames
// from any goroutine.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	goutils "go.viam.com/utils"

	"go.viam.com/motiontrack/config"
	"go.viam.com/motiontrack/imu"
	"go.viam.com/motiontrack/logging"
	"go.viam.com/motiontrack/spatialmath"
	"go.viam.com/motiontrack/trajectory"
	"go.viam.com/motiontrack/utils"
	"go.viam.com/motiontrack/vision/keypoints"
	"go.viam.com/motiontrack/vision/odometry"
)

// ErrClosed is returned when input is pushed to a closed session.
var ErrClosed = errors.New("session is closed")

const flushPollInterval = time.Millisecond

// envelope tags an input with the reset epoch it was pushed in.
type envelope[T any] struct {
	epoch int64
	item  T
}

// A Session owns one dead-reckoning integrator and one visual-odometry controller along with the
// queues and workers feeding them.
type Session struct {
	id     uuid.UUID
	cfg    config.Config
	logger logging.Logger

	epoch atomic.Int64

	drMu sync.Mutex
	dr   *imu.Integrator
	voMu sync.Mutex
	vo   *odometry.VisualOdometry

	imuCh  chan envelope[imu.Sample]
	frames *odometry.FrameQueue[envelope[odometry.Frame]]

	workers   utils.StoppableWorkers
	closeOnce sync.Once

	imuPushed     atomic.Int64
	imuHandled    atomic.Int64
	imuStale      atomic.Int64
	imuRejected   atomic.Int64
	framesHandled atomic.Int64
	framesStale   atomic.Int64
	framesSkipped atomic.Int64
	framesLost    atomic.Int64
	framesTracked atomic.Int64
	framesClamped atomic.Int64
}

// Stats counts what happened to the inputs of a session.
type Stats struct {
	Epoch          int64 `json:"epoch"`
	IMUPushed      int64 `json:"imu_pushed"`
	IMUStale       int64 `json:"imu_stale"`
	IMURejected    int64 `json:"imu_rejected"`
	FramesPushed   int64 `json:"frames_pushed"`
	FramesDropped  int64 `json:"frames_dropped"`
	FramesStale    int64 `json:"frames_stale"`
	FramesSkipped  int64 `json:"frames_skipped"`
	FramesTracked  int64 `json:"frames_tracked"`
	FramesLost     int64 `json:"frames_lost"`
	FramesClamped  int64 `json:"frames_clamped"`
	Keyframes      int   `json:"keyframes"`
	DeadReckoning  int   `json:"dead_reckoning_poses"`
	VisualOdometry int   `json:"visual_odometry_poses"`
}

// Motion is the latest rate estimate of each engine. VisualOdometryStep is the smoothed
// translation per frame, in the unscaled units of the visual trajectory.
type Motion struct {
	DeadReckoningVelocity        r3.Vector                   `json:"dead_reckoning_velocity"`
	DeadReckoningAngularVelocity spatialmath.AngularVelocity `json:"dead_reckoning_angular_velocity"`
	VisualOdometryInitialized    bool                        `json:"visual_odometry_initialized"`
	VisualOdometryStep           r3.Vector                   `json:"visual_odometry_step"`
}

// Comparison is the outcome of comparing the visual-odometry trajectory against dead reckoning.
// Alignment is nil when the trajectories were compared unaligned.
type Comparison struct {
	Alignment *trajectory.AlignmentResult `json:"alignment,omitempty"`
	Metrics   trajectory.Metrics          `json:"metrics"`
}

// New makes a new session from cfg, or from the defaults when cfg is nil.
func New(cfg *config.Config, logger logging.Logger) (*Session, error) {
	return NewWithID(uuid.New(), cfg, logger)
}

// NewWithID makes a new session with an ID.
func NewWithID(id uuid.UUID, cfg *config.Config, logger logging.Logger) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid session config")
	}
	logger = logger.Sublogger("session").WithFields("session", id.String())

	s := &Session{
		id:     id,
		cfg:    *cfg,
		logger: logger,
		dr:     imu.NewIntegrator(cfg.IMU, logger.Sublogger("imu")),
		vo: odometry.NewVisualOdometry(
			cfg.Odometry,
			keypoints.NewCornerDetector(cfg.Detector),
			keypoints.NewPatchMatcher(cfg.Matching),
			odometry.NewPoseDeltaEstimator(cfg.Estimator),
			logger.Sublogger("odometry"),
		),
		imuCh:  make(chan envelope[imu.Sample], cfg.Session.IMUBuffer),
		frames: odometry.NewFrameQueue[envelope[odometry.Frame]](),
	}
	s.workers = utils.NewStoppableWorkers(s.processIMU, s.processFrames)
	logger.Debugw("session started", "imu_buffer", cfg.Session.IMUBuffer)
	return s, nil
}

// ID returns the id of this session.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Config returns the configuration the session was made with.
func (s *Session) Config() config.Config {
	return s.cfg
}

// PushIMU queues a sample for dead reckoning. It blocks while the queue is full until ctx is done
// or the session is closed.
func (s *Session) PushIMU(ctx context.Context, sample imu.Sample) error {
	closed := s.workers.Context()
	if closed.Err() != nil {
		return ErrClosed
	}
	select {
	case s.imuCh <- envelope[imu.Sample]{epoch: s.epoch.Load(), item: sample}:
		s.imuPushed.Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-closed.Done():
		return ErrClosed
	}
}

// PushFrame queues a frame for visual odometry, replacing any frame not yet processed. It never
// blocks.
func (s *Session) PushFrame(frame odometry.Frame) error {
	if s.workers.Context().Err() != nil {
		return ErrClosed
	}
	s.frames.Put(envelope[odometry.Frame]{epoch: s.epoch.Load(), item: frame})
	return nil
}

func (s *Session) processIMU(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		var env envelope[imu.Sample]
		select {
		case env = <-s.imuCh:
		case <-ctx.Done():
			return
		}
		s.handleIMU(env)
	}
}

func (s *Session) handleIMU(env envelope[imu.Sample]) {
	defer s.imuHandled.Inc()
	s.drMu.Lock()
	defer s.drMu.Unlock()
	if env.epoch != s.epoch.Load() {
		s.imuStale.Inc()
		return
	}
	if _, ok := s.dr.Process(env.item); !ok {
		s.imuRejected.Inc()
	}
}

func (s *Session) processFrames(ctx context.Context) {
	for {
		env, err := s.frames.Next(ctx)
		if err != nil {
			return
		}
		s.handleFrame(env)
	}
}

func (s *Session) handleFrame(env envelope[odometry.Frame]) {
	defer s.framesHandled.Inc()
	s.voMu.Lock()
	defer s.voMu.Unlock()
	if env.epoch != s.epoch.Load() {
		s.framesStale.Inc()
		return
	}
	result := s.vo.ProcessFrame(env.item)
	switch result.Status {
	case odometry.StatusSkipped:
		s.framesSkipped.Inc()
	case odometry.StatusLostRepeated:
		s.framesLost.Inc()
	case odometry.StatusInitialized, odometry.StatusTracked:
		s.framesTracked.Inc()
	}
	if result.Clamped {
		s.framesClamped.Inc()
	}
}

// Reset returns both engines to their initial state. Inputs pushed before the reset and not yet
// processed are discarded. The IMU calibration is kept.
func (s *Session) Reset() {
	s.drMu.Lock()
	defer s.drMu.Unlock()
	s.voMu.Lock()
	defer s.voMu.Unlock()

	epoch := s.epoch.Inc()
	imuRejected, framesSkipped := s.dr.Rejected(), s.vo.Skipped()
	s.dr.Reset()
	s.vo.Reset()
	if s.frames.Clear() {
		s.framesStale.Inc()
		s.framesHandled.Inc()
	}
	s.logger.Infow("session reset", "epoch", epoch, "imu_rejected", imuRejected, "frames_skipped", framesSkipped)
}

// Flush waits until every input pushed before the call has been processed or discarded.
func (s *Session) Flush(ctx context.Context) error {
	imuPushed := s.imuPushed.Load()
	framesPushed := s.frames.Pushed()
	for {
		framesSettled := s.frames.Dropped() + s.framesHandled.Load()
		if s.imuHandled.Load() >= imuPushed && framesSettled >= framesPushed {
			return nil
		}
		if s.workers.Context().Err() != nil {
			return ErrClosed
		}
		if !goutils.SelectContextOrWait(ctx, flushPollInterval) {
			return ctx.Err()
		}
	}
}

// Calibrate estimates the IMU biases from samples recorded at rest and applies them to every
// subsequent sample.
func (s *Session) Calibrate(samples []imu.Sample) (imu.Calibration, error) {
	calib, err := imu.CalibrateStationary(samples, s.cfg.IMU.Gravity)
	if err != nil {
		return imu.Calibration{}, err
	}
	s.drMu.Lock()
	s.dr.SetCalibration(calib)
	s.drMu.Unlock()
	s.logger.Infow("calibrated imu", "accel_bias", calib.AccelBias, "gyro_bias", calib.GyroBias)
	return calib, nil
}

// DeadReckoningPose returns the latest dead-reckoning pose.
func (s *Session) DeadReckoningPose() spatialmath.Pose {
	s.drMu.Lock()
	defer s.drMu.Unlock()
	return s.dr.Pose()
}

// VisualOdometryPose returns the latest visual-odometry pose.
func (s *Session) VisualOdometryPose() spatialmath.Pose {
	s.voMu.Lock()
	defer s.voMu.Unlock()
	return s.vo.Pose()
}

// DeadReckoningPoses returns a copy of the dead-reckoning pose history.
func (s *Session) DeadReckoningPoses() []spatialmath.Pose {
	s.drMu.Lock()
	defer s.drMu.Unlock()
	return s.dr.History()
}

// VisualOdometryPoses returns a copy of the visual-odometry pose history.
func (s *Session) VisualOdometryPoses() []spatialmath.Pose {
	s.voMu.Lock()
	defer s.voMu.Unlock()
	return s.vo.History()
}

// Motion returns the current rate estimates of both engines.
func (s *Session) Motion() Motion {
	var m Motion
	s.drMu.Lock()
	m.DeadReckoningVelocity = s.dr.Velocity()
	m.DeadReckoningAngularVelocity = s.dr.AngularVelocity()
	s.drMu.Unlock()
	s.voMu.Lock()
	m.VisualOdometryInitialized = s.vo.Initialized()
	m.VisualOdometryStep = s.vo.Velocity()
	s.voMu.Unlock()
	return m
}

// Keyframes returns the number of keyframes held by the visual-odometry controller.
func (s *Session) Keyframes() int {
	s.voMu.Lock()
	defer s.voMu.Unlock()
	return s.vo.KeyframeCount()
}

// Compare pairs each visual-odometry pose with the dead-reckoning pose at the same time and
// computes error metrics, aligning the visual trajectory first when align is set.
func (s *Session) Compare(align bool) (Comparison, error) {
	ref, est := trajectory.Synchronize(s.DeadReckoningPoses(), s.VisualOdometryPoses())
	if !align {
		return Comparison{Metrics: trajectory.ComputeMetrics(ref, est)}, nil
	}
	alignment, metrics, err := trajectory.AlignAndCompare(ref, est)
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{Alignment: &alignment, Metrics: metrics}, nil
}

// Stats returns the input counters of the session.
func (s *Session) Stats() Stats {
	st := Stats{
		Epoch:         s.epoch.Load(),
		IMUPushed:     s.imuPushed.Load(),
		IMUStale:      s.imuStale.Load(),
		IMURejected:   s.imuRejected.Load(),
		FramesPushed:  s.frames.Pushed(),
		FramesDropped: s.frames.Dropped(),
		FramesStale:   s.framesStale.Load(),
		FramesSkipped: s.framesSkipped.Load(),
		FramesTracked: s.framesTracked.Load(),
		FramesLost:    s.framesLost.Load(),
		FramesClamped: s.framesClamped.Load(),
	}
	s.drMu.Lock()
	st.DeadReckoning = s.dr.HistoryLen()
	s.drMu.Unlock()
	s.voMu.Lock()
	st.Keyframes = s.vo.KeyframeCount()
	st.VisualOdometry = s.vo.HistoryLen()
	s.voMu.Unlock()
	return st
}

// Close stops the workers. Inputs still queued are discarded. Calling Close more than once is
// safe.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.workers.Stop()
		s.logger.Debugw("session closed", "stats", s.Stats())
	})
	return nil
}
