package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/multierr"
	"go.viam.com/test"

	"go.viam.com/motiontrack/imu"
	"go.viam.com/motiontrack/vision/keypoints"
	"go.viam.com/motiontrack/vision/odometry"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	test.That(t, cfg.Validate(), test.ShouldBeNil)
	test.That(t, cfg.IMU, test.ShouldResemble, imu.DefaultConfig())
	test.That(t, cfg.Detector.MaxFeatures, test.ShouldEqual, 150)
	test.That(t, cfg.Matching.PatchSize, test.ShouldEqual, 15)
	test.That(t, cfg.Estimator.MinMatches, test.ShouldEqual, 8)
	test.That(t, cfg.Odometry, test.ShouldResemble, odometry.DefaultConfig())
	test.That(t, cfg.Session.IMUBuffer, test.ShouldEqual, DefaultIMUBuffer)
}

func TestFromReaderOverlaysDefaults(t *testing.T) {
	cfg, err := FromReader("inline", strings.NewReader(`{
		"imu": {"beta": 0.1, "accel_bias": [0.01, -0.02, 0.03], "gravity": 9.80665},
		"detector": {"max_features": 80},
		"odometry": {"keyframe_rotation_deg": 5}
	}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, "inline")
	test.That(t, cfg.IMU.Beta, test.ShouldEqual, 0.1)
	test.That(t, cfg.IMU.AccelBias, test.ShouldResemble, [3]float64{0.01, -0.02, 0.03})
	test.That(t, cfg.IMU.Gravity, test.ShouldEqual, 9.80665)
	test.That(t, cfg.IMU.MaxDt, test.ShouldEqual, imu.DefaultMaxDt)
	test.That(t, cfg.Detector.MaxFeatures, test.ShouldEqual, 80)
	test.That(t, cfg.Detector.MinDistance, test.ShouldEqual, keypoints.DefaultDetectorConfig().MinDistance)
	test.That(t, cfg.Odometry.KeyframeRotationDeg, test.ShouldEqual, 5.)
	test.That(t, cfg.Odometry.KeyframeTranslation, test.ShouldEqual, 0.15)
	test.That(t, cfg.Matching, test.ShouldResemble, keypoints.DefaultMatchingConfig())

	cfg, err = FromReader("", strings.NewReader(`{}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Detector, test.ShouldResemble, Default().Detector)
}

func TestFromReaderErrors(t *testing.T) {
	_, err := FromReader("", strings.NewReader(`{"imu": `))
	test.That(t, err.Error(), test.ShouldContainSubstring, "failed to decode Config from json")

	_, err = FromReader("", strings.NewReader(`{"imu": {"bata": 1}, "extra": true}`))
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown config fields")
	test.That(t, err.Error(), test.ShouldContainSubstring, "extra")
	test.That(t, err.Error(), test.ShouldContainSubstring, "bata")

	_, err = FromReader("", strings.NewReader(`{"detector": {"max_features": "many"}}`))
	test.That(t, err.Error(), test.ShouldContainSubstring, "failed to process Config")

	_, err = FromReader("", strings.NewReader(`{"matching": {"patch_size": 4}, "session": {"imu_buffer": 0}}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, multierr.Errors(err), test.ShouldHaveLength, 2)
	test.That(t, err.Error(), test.ShouldContainSubstring, "patch_size")
	test.That(t, err.Error(), test.ShouldContainSubstring, "imu_buffer")
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "motiontrack.json")
	t.Setenv("MOTIONTRACK_TEST_GRAVITY", "9.7")
	test.That(t, os.WriteFile(path, []byte(`{"imu": {"gravity": ${MOTIONTRACK_TEST_GRAVITY}}}`), 0o600), test.ShouldBeNil)

	cfg, err := Read(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.IMU.Gravity, test.ShouldEqual, 9.7)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, path)

	_, err = Read(filepath.Join(dir, "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}
