// Package testutils generates synthetic sensor streams and fixture files for tests and for the
// simulate command.
package testutils

import (
	"github.com/golang/geo/r3"

	"go.viam.com/motiontrack/imu"
	"go.viam.com/motiontrack/spatialmath"
	"go.viam.com/motiontrack/utils/matrix"
)

// IMUScenario describes a device that starts level at rest and moves with a constant world-frame
// linear acceleration while turning about the vertical axis at a constant rate.
type IMUScenario struct {
	Start   float64
	Dt      float64
	Gravity float64
	// Accel is the linear world-frame acceleration, gravity excluded.
	Accel r3.Vector
	// YawRate is the angular rate about the world z axis in rad/s.
	YawRate float64
	// AccelBias and GyroBias are added to every generated reading.
	AccelBias r3.Vector
	GyroBias  r3.Vector
	// NoiseSigma is the standard deviation of white noise added to accelerometer and gyroscope.
	NoiseSigma float64
}

// StationaryScenario returns a scenario for a device at rest.
func StationaryScenario(dt, gravity float64) IMUScenario {
	return IMUScenario{Dt: dt, Gravity: gravity}
}

// Samples generates n samples of the scenario. The first sample is at Start.
func (sc IMUScenario) Samples(n int) []imu.Sample {
	noise := matrix.NewVectorSampler(sc.NoiseSigma)
	gyro := r3.Vector{Z: sc.YawRate}
	orientation := spatialmath.NewZeroOrientation()
	samples := make([]imu.Sample, 0, n)
	for i := 0; i < n; i++ {
		if i > 0 {
			orientation = spatialmath.IntegrateAngularVelocity(orientation, gyro, sc.Dt)
		}
		specific := sc.Accel.Add(r3.Vector{Z: sc.Gravity})
		body := spatialmath.InverseRotateVector(orientation, specific)
		samples = append(samples, imu.Sample{
			Timestamp: sc.Start + float64(i)*sc.Dt,
			Accel:     body.Add(sc.AccelBias).Add(noise.Sample()),
			Gyro:      gyro.Add(sc.GyroBias).Add(noise.Sample()),
		})
	}
	return samples
}

// Position returns the ground-truth position of the scenario t seconds after Start.
func (sc IMUScenario) Position(t float64) r3.Vector {
	return sc.Accel.Mul(0.5 * t * t)
}
