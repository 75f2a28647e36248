package spatialmath

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// AngularVelocity contains angular velocity in rad/s across body x/y/z axes.
type AngularVelocity r3.Vector

// Vector returns the angular velocity as an r3 vector.
func (av AngularVelocity) Vector() r3.Vector {
	return r3.Vector(av)
}

// QuatToAngVel calculates the body-frame angular velocity that rotates from by diffQ in dt seconds.
// It is the inverse of IntegrateAngularVelocity.
func QuatToAngVel(diffQ quat.Number, dt float64) AngularVelocity {
	if dt <= 0 {
		return AngularVelocity{}
	}
	return AngularVelocity(QuatToR4AA(diffQ).ToR3().Mul(1 / dt))
}
