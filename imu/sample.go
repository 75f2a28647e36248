// Package imu implements inertial dead reckoning: a gradient-descent orientation filter fusing
// gyroscope, accelerometer and optionally magnetometer readings, and a strapdown integrator that
// turns gravity- and bias-compensated acceleration into position.
package imu

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// ErrInvalidTimestep is returned when a sample's timestep is outside (0, max_dt].
var ErrInvalidTimestep = errors.New("invalid timestep")

// Sample is one inertial measurement in the body frame. Accel is in m/s², Gyro in rad/s. Mag is
// optional and only its direction is used.
type Sample struct {
	Timestamp float64
	Accel     r3.Vector
	Gyro      r3.Vector
	Mag       *r3.Vector
}

// Calibration holds the biases subtracted from every sample before integration and the local
// gravity magnitude.
type Calibration struct {
	AccelBias r3.Vector
	GyroBias  r3.Vector
	Gravity   float64
}

// Correct returns the sample with both biases removed.
func (c Calibration) Correct(s Sample) Sample {
	s.Accel = s.Accel.Sub(c.AccelBias)
	s.Gyro = s.Gyro.Sub(c.GyroBias)
	return s
}

// CalibrateStationary estimates a calibration from samples recorded while the device was at
// rest. The gyro bias is the mean angular rate. The accelerometer bias is the difference between
// the mean acceleration and a vector of magnitude gravity along the measured direction.
func CalibrateStationary(samples []Sample, gravity float64) (Calibration, error) {
	if len(samples) == 0 {
		return Calibration{}, errors.New("need at least one stationary sample to calibrate")
	}
	if gravity <= 0 {
		return Calibration{}, errors.Errorf("gravity must be positive, got %f", gravity)
	}

	axes := make([][]float64, 6)
	for i := range axes {
		axes[i] = make([]float64, len(samples))
	}
	for i, s := range samples {
		axes[0][i], axes[1][i], axes[2][i] = s.Accel.X, s.Accel.Y, s.Accel.Z
		axes[3][i], axes[4][i], axes[5][i] = s.Gyro.X, s.Gyro.Y, s.Gyro.Z
	}
	meanAccel := r3.Vector{X: stat.Mean(axes[0], nil), Y: stat.Mean(axes[1], nil), Z: stat.Mean(axes[2], nil)}
	meanGyro := r3.Vector{X: stat.Mean(axes[3], nil), Y: stat.Mean(axes[4], nil), Z: stat.Mean(axes[5], nil)}

	n := meanAccel.Norm()
	if n < DefaultNearZeroAccel || math.IsNaN(n) {
		return Calibration{}, errors.New("stationary samples have no measurable gravity")
	}
	return Calibration{
		AccelBias: meanAccel.Sub(meanAccel.Mul(gravity / n)),
		GyroBias:  meanGyro,
		Gravity:   gravity,
	}, nil
}

// ValidateTimestep returns ErrInvalidTimestep unless dt is in (0, maxDt].
func ValidateTimestep(dt, maxDt float64) error {
	if math.IsNaN(dt) || dt <= 0 || dt > maxDt {
		return errors.Wrapf(ErrInvalidTimestep, "dt %.6fs outside (0, %.3f]", dt, maxDt)
	}
	return nil
}
