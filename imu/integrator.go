package imu

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/motiontrack/logging"
	"go.viam.com/motiontrack/spatialmath"
	"go.viam.com/motiontrack/trajectory"
)

// Integrator is a strapdown dead-reckoning engine. Each accepted sample is bias corrected, fed to
// the orientation filter, rotated into the world frame and stripped of gravity before being
// integrated twice into velocity and position.
//
// An Integrator is a single-writer state machine: callers must serialise calls.
type Integrator struct {
	cfg    Config
	calib  Calibration
	filter *OrientationFilter
	logger logging.Logger

	pose     spatialmath.Pose
	velocity r3.Vector
	rate     spatialmath.AngularVelocity
	history  *trajectory.History

	started       bool
	lastTimestamp float64
	rejected      int
}

// NewIntegrator returns an integrator at the origin using the calibration described by cfg.
func NewIntegrator(cfg Config, logger logging.Logger) *Integrator {
	return &Integrator{
		cfg:     cfg,
		calib:   cfg.Calibration(),
		filter:  NewOrientationFilter(cfg.Beta, cfg.NearZeroAccel),
		logger:  logger,
		pose:    spatialmath.NewZeroPose(0),
		history: trajectory.NewHistory(),
	}
}

// SetCalibration replaces the calibration applied to subsequent samples.
func (in *Integrator) SetCalibration(calib Calibration) {
	in.calib = calib
}

// Calibration returns the calibration currently applied.
func (in *Integrator) Calibration() Calibration {
	return in.calib
}

// Process consumes a sample, deriving dt from the previously accepted timestamp. The first sample
// only establishes the time base and records the initial pose. A sample arriving more than max_dt
// after the previous one is rejected and becomes the new time base; samples that do not advance
// time are rejected and ignored.
func (in *Integrator) Process(s Sample) (spatialmath.Pose, bool) {
	if !in.started {
		in.started = true
		in.lastTimestamp = s.Timestamp
		in.pose = in.pose.WithTimestamp(s.Timestamp)
		in.history.Append(in.pose)
		return in.pose, true
	}
	dt := s.Timestamp - in.lastTimestamp
	pose, ok := in.ProcessSample(s, dt)
	if !ok && dt > in.cfg.MaxDt {
		in.lastTimestamp = s.Timestamp
	}
	return pose, ok
}

// ProcessSample integrates a sample over dt seconds and returns the new pose. When dt is outside
// (0, max_dt] the sample is rejected: state is left unchanged and the last pose is returned with
// false.
func (in *Integrator) ProcessSample(s Sample, dt float64) (spatialmath.Pose, bool) {
	if err := ValidateTimestep(dt, in.cfg.MaxDt); err != nil {
		in.rejected++
		in.logger.Debugw("rejected imu sample", "t", s.Timestamp, "error", err)
		return in.pose, false
	}
	in.started = true
	in.lastTimestamp = s.Timestamp

	s = in.calib.Correct(s)
	prev := in.pose.Orientation
	var q quat.Number
	if s.Mag != nil {
		q = in.filter.UpdateMARG(s.Gyro, s.Accel, *s.Mag, dt)
	} else {
		q = in.filter.Update(s.Gyro, s.Accel, dt)
	}
	in.rate = spatialmath.QuatToAngVel(quat.Mul(quat.Conj(prev), q), dt)

	linear := spatialmath.RotateVector(q, s.Accel).Sub(r3.Vector{Z: in.calib.Gravity})
	in.velocity = in.velocity.Add(linear.Mul(dt))
	position := in.pose.Position.
		Add(in.velocity.Mul(dt)).
		Add(linear.Mul(0.5 * dt * dt))

	in.pose = spatialmath.NewPose(s.Timestamp, position, q)
	in.history.Append(in.pose)
	return in.pose, true
}

// Pose returns the latest pose.
func (in *Integrator) Pose() spatialmath.Pose {
	return in.pose
}

// Velocity returns the current world-frame velocity estimate.
func (in *Integrator) Velocity() r3.Vector {
	return in.velocity
}

// AngularVelocity returns the body-frame rate of the filtered orientation over the last accepted
// sample. Unlike the raw gyro reading it includes the filter's correction.
func (in *Integrator) AngularVelocity() spatialmath.AngularVelocity {
	return in.rate
}

// History returns a copy of every pose emitted since the last reset.
func (in *Integrator) History() []spatialmath.Pose {
	return in.history.Snapshot()
}

// HistoryLen returns the number of poses emitted since the last reset.
func (in *Integrator) HistoryLen() int {
	return in.history.Len()
}

// Rejected returns how many samples were rejected for an invalid timestep since the last reset.
func (in *Integrator) Rejected() int {
	return in.rejected
}

// Reset zeroes position, velocity and orientation and clears the pose history. The calibration is
// kept.
func (in *Integrator) Reset() {
	in.filter.Reset()
	in.pose = spatialmath.NewZeroPose(0)
	in.velocity = r3.Vector{}
	in.rate = spatialmath.AngularVelocity{}
	in.history.Reset()
	in.started = false
	in.lastTimestamp = 0
	in.rejected = 0
}
