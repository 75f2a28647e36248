package matrix

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
)

const (
	// PowerIterations is the number of power-iteration steps spent on each eigenvector.
	PowerIterations = 50
	// eigenEpsilon is the magnitude under which an eigenvalue or vector is treated as zero. Deflation
	// is skipped for eigenvalues below it.
	eigenEpsilon = 1e-12
)

var unitAxes = [3]r3.Vector{{X: 1}, {Y: 1}, {Z: 1}}

// SymmetricEigen approximates the eigen decomposition of the symmetric positive semi-definite
// matrix a by power iteration with deflation, spending iterations steps on each of the first two
// axes. The third eigenvector is the cross product of the first two. Eigenvalues are returned in
// descending order with their unit eigenvectors; the vectors form an orthonormal basis.
func SymmetricEigen(a Mat3, iterations int) ([3]float64, [3]r3.Vector) {
	var values [3]float64
	var vectors [3]r3.Vector

	work := a
	for axis := 0; axis < 2; axis++ {
		v := powerSeed(work, vectors[:axis])
		for it := 0; it < iterations; it++ {
			w := orthogonalize(work.MulVec(v), vectors[:axis])
			n := w.Norm()
			if n < eigenEpsilon {
				// v lies in the null space of what is left; keep it as is.
				break
			}
			v = w.Mul(1 / n)
		}
		vectors[axis] = v
		values[axis] = v.Dot(a.MulVec(v))
		if values[axis] > eigenEpsilon {
			work = work.Add(OuterProduct(v, v).Scale(-values[axis]))
		}
	}
	vectors[2] = vectors[0].Cross(vectors[1]).Normalize()
	values[2] = vectors[2].Dot(a.MulVec(vectors[2]))

	order := []int{0, 1, 2}
	sort.SliceStable(order, func(i, j int) bool { return values[order[i]] > values[order[j]] })
	var sortedValues [3]float64
	var sortedVectors [3]r3.Vector
	for i, idx := range order {
		sortedValues[i] = values[idx]
		sortedVectors[i] = vectors[idx]
	}
	return sortedValues, sortedVectors
}

// SVD approximates the singular value decomposition m = U·diag(sigma)·Vᵀ from the eigen
// decomposition of mᵀ·m. Singular values are non-negative and descending. When a singular value
// is zero the corresponding left vector is completed to an orthonormal basis.
func SVD(m Mat3) (Mat3, [3]float64, Mat3) {
	values, vs := SymmetricEigen(m.Transpose().Mul(m), PowerIterations)

	var sigma [3]float64
	var us [3]r3.Vector
	for i := 0; i < 3; i++ {
		sigma[i] = math.Sqrt(math.Max(values[i], 0))
		if sigma[i] > math.Sqrt(eigenEpsilon) {
			us[i] = m.MulVec(vs[i]).Mul(1 / sigma[i])
			continue
		}
		sigma[i] = 0
		switch i {
		case 0:
			us[0] = vs[0]
		case 1:
			us[1] = anyOrthogonal(us[0])
		default:
			us[2] = us[0].Cross(us[1]).Normalize()
		}
	}
	return FromColumns(us[0], us[1], us[2]), sigma, FromColumns(vs[0], vs[1], vs[2])
}

// powerSeed picks a starting vector orthogonal to found: the largest column of a when it has one,
// otherwise the first unit axis that survives orthogonalization.
func powerSeed(a Mat3, found []r3.Vector) r3.Vector {
	best := r3.Vector{}
	for j := 0; j < 3; j++ {
		c := orthogonalize(a.Col(j), found)
		if c.Norm() > best.Norm() {
			best = c
		}
	}
	if best.Norm() > eigenEpsilon {
		return best.Normalize()
	}
	for _, axis := range unitAxes {
		c := orthogonalize(axis, found)
		if c.Norm() > 1e-6 {
			return c.Normalize()
		}
	}
	return unitAxes[0]
}

// orthogonalize removes from v its components along each of the unit vectors in basis.
func orthogonalize(v r3.Vector, basis []r3.Vector) r3.Vector {
	for _, b := range basis {
		v = v.Sub(b.Mul(v.Dot(b)))
	}
	return v
}

// anyOrthogonal returns a unit vector orthogonal to the unit vector v.
func anyOrthogonal(v r3.Vector) r3.Vector {
	axis := unitAxes[0]
	if math.Abs(v.X) > 0.9 {
		axis = unitAxes[1]
	}
	return v.Cross(axis).Normalize()
}
