// Package config defines the configuration of the whole estimation engine and how it is read.
package config

import (
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/motiontrack/imu"
	"go.viam.com/motiontrack/vision/keypoints"
	"go.viam.com/motiontrack/vision/odometry"
)

// DefaultIMUBuffer is the default capacity of the queue between IMU delivery and integration.
const DefaultIMUBuffer = 256

// Config gathers every tunable of the inertial and visual engines.
type Config struct {
	ConfigFilePath string `json:"-"`

	IMU       imu.Config               `json:"imu"`
	Detector  keypoints.DetectorConfig `json:"detector"`
	Matching  keypoints.MatchingConfig `json:"matching"`
	Estimator odometry.EstimatorConfig `json:"estimator"`
	Odometry  odometry.Config          `json:"odometry"`
	Session   Session                  `json:"session"`
}

// Session configures how a session buffers input.
type Session struct {
	IMUBuffer int `json:"imu_buffer"`
}

// Validate ensures all parts of the config are valid.
func (s *Session) Validate(path string) error {
	if s.IMUBuffer <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "imu_buffer")
	}
	return nil
}

// Default returns the configuration every engine uses unless told otherwise.
func Default() *Config {
	return &Config{
		IMU:       imu.DefaultConfig(),
		Detector:  keypoints.DefaultDetectorConfig(),
		Matching:  keypoints.DefaultMatchingConfig(),
		Estimator: odometry.DefaultEstimatorConfig(),
		Odometry:  odometry.DefaultConfig(),
		Session:   Session{IMUBuffer: DefaultIMUBuffer},
	}
}

// Validate returns the combined validation errors of every section.
func (c *Config) Validate() error {
	return multierr.Combine(
		c.IMU.Validate("imu"),
		c.Detector.Validate("detector"),
		c.Matching.Validate("matching"),
		c.Estimator.Validate("estimator"),
		c.Odometry.Validate("odometry"),
		c.Session.Validate("session"),
	)
}
