package imu

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// Defaults for the inertial engine.
const (
	DefaultBeta          = 0.04
	DefaultGravity       = 9.81
	DefaultMaxDt         = 0.5
	DefaultNearZeroAccel = 1e-9
)

// Config describes the orientation filter gain, the sensor calibration and the timestep guard of
// the dead-reckoning integrator.
type Config struct {
	Beta          float64    `json:"beta"`
	AccelBias     [3]float64 `json:"accel_bias"`
	GyroBias      [3]float64 `json:"gyro_bias"`
	Gravity       float64    `json:"gravity"`
	MaxDt         float64    `json:"max_dt"`
	NearZeroAccel float64    `json:"near_zero_accel"`
}

// DefaultConfig returns the default inertial configuration: zero biases and standard gravity.
func DefaultConfig() Config {
	return Config{
		Beta:          DefaultBeta,
		Gravity:       DefaultGravity,
		MaxDt:         DefaultMaxDt,
		NearZeroAccel: DefaultNearZeroAccel,
	}
}

// Validate ensures all parts of the config are valid.
func (config *Config) Validate(path string) error {
	if config.Beta < 0 {
		return goutils.NewConfigValidationError(path, errors.New("beta must be non-negative"))
	}
	if config.Gravity <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "gravity")
	}
	if config.MaxDt <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "max_dt")
	}
	if config.NearZeroAccel < 0 {
		return goutils.NewConfigValidationError(path, errors.New("near_zero_accel must be non-negative"))
	}
	return nil
}

// Calibration returns the calibration described by the config.
func (config *Config) Calibration() Calibration {
	return Calibration{
		AccelBias: r3.Vector{X: config.AccelBias[0], Y: config.AccelBias[1], Z: config.AccelBias[2]},
		GyroBias:  r3.Vector{X: config.GyroBias[0], Y: config.GyroBias[1], Z: config.GyroBias[2]},
		Gravity:   config.Gravity,
	}
}
