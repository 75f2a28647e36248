package trajectory

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/motiontrack/spatialmath"
	"go.viam.com/motiontrack/utils/matrix"
)

var (
	// ErrInsufficientPoints is returned when fewer than three point pairs are given to Umeyama.
	ErrInsufficientPoints = errors.New("at least 3 points are required for alignment")
	// ErrLengthMismatch is returned when the two point sequences given to Umeyama differ in length.
	ErrLengthMismatch = errors.New("point sequences differ in length")
)

// minAlignmentPoints is the smallest point set a similarity transform is fitted to.
const minAlignmentPoints = 3

// AlignmentResult is the similarity transform dst ≈ Scale·Rotation·src + Translation, and the
// residual it leaves.
type AlignmentResult struct {
	Scale       float64
	Rotation    matrix.Mat3
	Translation r3.Vector
	RMSE        float64
}

// Apply maps a source point into the destination frame.
func (a AlignmentResult) Apply(p r3.Vector) r3.Vector {
	return a.Rotation.MulVec(p).Mul(a.Scale).Add(a.Translation)
}

// Transform maps a source pose into the destination frame. Orientations are rotated only when
// Rotation is a proper rotation.
func (a AlignmentResult) Transform(p spatialmath.Pose) spatialmath.Pose {
	p.Position = a.Apply(p.Position)
	if rm, err := spatialmath.NewRotationMatrix(a.Rotation); err == nil {
		p.Orientation = spatialmath.Normalize(quat.Mul(rm.Quaternion(), p.Orientation))
	}
	return p
}

// Umeyama fits the least-squares similarity transform taking src onto dst.
//
// The cross-covariance of the centred points is decomposed by power iteration (see
// matrix.SVD) instead of a general dense SVD; a reflection in the fit is removed by flipping the
// least significant singular direction.
func Umeyama(src, dst []r3.Vector) (AlignmentResult, error) {
	if len(src) != len(dst) {
		return AlignmentResult{}, errors.Wrapf(ErrLengthMismatch, "src has %d points, dst has %d", len(src), len(dst))
	}
	if len(src) < minAlignmentPoints {
		return AlignmentResult{}, errors.Wrapf(ErrInsufficientPoints, "got %d", len(src))
	}
	n := float64(len(src))

	meanSrc, meanDst := centroid(src), centroid(dst)
	var cov matrix.Mat3
	var varSrc float64
	for i := range src {
		s := src[i].Sub(meanSrc)
		d := dst[i].Sub(meanDst)
		cov = cov.Add(matrix.OuterProduct(d, s))
		varSrc += s.Norm2()
	}
	cov = cov.Scale(1 / n)
	varSrc /= n

	u, sigma, v := matrix.SVD(cov)
	// U·Vᵀ rotates src onto dst; the transpose V·Uᵀ is the inverse.
	rotation := u.Mul(v.Transpose())
	signs := [3]float64{1, 1, 1}
	if rotation.Det() < 0 {
		v = v.WithCol(2, v.Col(2).Mul(-1))
		signs[2] = -1
		rotation = u.Mul(v.Transpose())
	}

	scale := 1.0
	if varSrc > 0 {
		scale = (sigma[0]*signs[0] + sigma[1]*signs[1] + sigma[2]*signs[2]) / varSrc
	}
	result := AlignmentResult{
		Scale:       scale,
		Rotation:    rotation,
		Translation: meanDst.Sub(rotation.MulVec(meanSrc.Mul(scale))),
	}

	var sq float64
	for i := range src {
		sq += result.Apply(src[i]).Sub(dst[i]).Norm2()
	}
	result.RMSE = math.Sqrt(sq / n)
	return result, nil
}

// Positions projects poses to their positions.
func Positions(poses []spatialmath.Pose) []r3.Vector {
	return lo.Map(poses, func(p spatialmath.Pose, _ int) r3.Vector { return p.Position })
}

func centroid(points []r3.Vector) r3.Vector {
	var sum r3.Vector
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Mul(1 / float64(len(points)))
}
