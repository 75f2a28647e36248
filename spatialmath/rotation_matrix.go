package spatialmath

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/motiontrack/utils/matrix"
)

// rotationTolerance bounds how far a matrix may be from orthonormal with unit determinant and still
// be accepted as a rotation.
const rotationTolerance = 1e-6

// RotationMatrix is a proper 3x3 rotation matrix.
type RotationMatrix struct {
	mat matrix.Mat3
}

// NewRotationMatrix validates m and wraps it as a rotation.
func NewRotationMatrix(m matrix.Mat3) (*RotationMatrix, error) {
	if !m.Mul(m.Transpose()).AlmostEqual(matrix.Identity3(), rotationTolerance) {
		return nil, errors.New("rotation matrix is not orthonormal")
	}
	if math.Abs(m.Det()-1) > rotationTolerance {
		return nil, errors.Errorf("rotation matrix has determinant %f, want 1", m.Det())
	}
	return &RotationMatrix{m}, nil
}

// At returns the element at row, col.
func (rm *RotationMatrix) At(row, col int) float64 {
	return rm.mat[row][col]
}

// Mat3 returns a copy of the underlying matrix.
func (rm *RotationMatrix) Mat3() matrix.Mat3 {
	return rm.mat
}

// Quaternion returns the unit quaternion with a non-negative real part for the rotation.
// See: https://www.euclideanspace.com/maths/geometry/rotations/conversions/matrixToQuaternion/
func (rm *RotationMatrix) Quaternion() quat.Number {
	m := rm.mat
	var q quat.Number
	switch tr := m.Trace(); {
	case tr > 0:
		s := 0.5 / math.Sqrt(tr+1)
		q = quat.Number{Real: 0.25 / s, Imag: (m[2][1] - m[1][2]) * s, Jmag: (m[0][2] - m[2][0]) * s, Kmag: (m[1][0] - m[0][1]) * s}
	case m[0][0] > m[1][1] && m[0][0] > m[2][2]:
		s := 2 * math.Sqrt(1+m[0][0]-m[1][1]-m[2][2])
		q = quat.Number{Real: (m[2][1] - m[1][2]) / s, Imag: 0.25 * s, Jmag: (m[0][1] + m[1][0]) / s, Kmag: (m[0][2] + m[2][0]) / s}
	case m[1][1] > m[2][2]:
		s := 2 * math.Sqrt(1+m[1][1]-m[0][0]-m[2][2])
		q = quat.Number{Real: (m[0][2] - m[2][0]) / s, Imag: (m[0][1] + m[1][0]) / s, Jmag: 0.25 * s, Kmag: (m[1][2] + m[2][1]) / s}
	default:
		s := 2 * math.Sqrt(1+m[2][2]-m[0][0]-m[1][1])
		q = quat.Number{Real: (m[1][0] - m[0][1]) / s, Imag: (m[0][2] + m[2][0]) / s, Jmag: (m[1][2] + m[2][1]) / s, Kmag: 0.25 * s}
	}
	q = Normalize(q)
	if q.Real < 0 {
		q = Flip(q)
	}
	return q
}
