package spatialmath

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a timestamped position and orientation produced by one of the estimators. Poses are
// values: once appended to a history they are never modified.
type Pose struct {
	Timestamp   float64     `json:"t"`
	Position    r3.Vector   `json:"position"`
	Orientation quat.Number `json:"orientation"`
}

// NewZeroPose returns a pose at the origin with identity orientation.
func NewZeroPose(timestamp float64) Pose {
	return Pose{Timestamp: timestamp, Orientation: NewZeroOrientation()}
}

// NewPose returns a pose with the given position and orientation.
func NewPose(timestamp float64, position r3.Vector, orientation quat.Number) Pose {
	return Pose{Timestamp: timestamp, Position: position, Orientation: orientation}
}

// WithTimestamp returns a copy of p restamped at timestamp.
func (p Pose) WithTimestamp(timestamp float64) Pose {
	p.Timestamp = timestamp
	return p
}

// Translate returns a copy of p moved by delta.
func (p Pose) Translate(delta r3.Vector) Pose {
	p.Position = p.Position.Add(delta)
	return p
}

// DistanceTo returns the euclidean distance between the positions of p and other.
func (p Pose) DistanceTo(other Pose) float64 {
	return p.Position.Sub(other.Position).Norm()
}

// AngleTo returns the rotation angle in radians between the orientations of p and other.
func (p Pose) AngleTo(other Pose) float64 {
	return RotationAngle(OrientationBetween(p.Orientation, other.Orientation))
}
