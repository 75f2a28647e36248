package trajectory

import (
	"math"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"go.viam.com/motiontrack/spatialmath"
)

// Metrics summarises the positional disagreement between a reference and an estimated
// trajectory. Errors are euclidean distances between poses at the same index.
type Metrics struct {
	Count        int     `json:"count"`
	RMSE         float64 `json:"rmse"`
	MeanAbsError float64 `json:"mean_abs_error"`
	MaxError     float64 `json:"max_error"`
	// DriftRate is MaxError divided by the time spanned by the compared reference poses, or zero
	// when that span is not positive.
	DriftRate float64 `json:"drift_rate"`
	Elapsed   float64 `json:"elapsed"`
}

// ComputeMetrics compares est against ref index by index after truncating both to the shorter
// length. Comparing nothing yields zero metrics.
func ComputeMetrics(ref, est []spatialmath.Pose) Metrics {
	n := min(len(ref), len(est))
	if n == 0 {
		return Metrics{}
	}
	errs := lo.Times(n, func(i int) float64 {
		return ref[i].DistanceTo(est[i])
	})

	m := Metrics{
		Count:        n,
		MeanAbsError: stat.Mean(errs, nil),
		MaxError:     floats.Max(errs),
		Elapsed:      ref[n-1].Timestamp - ref[0].Timestamp,
	}
	m.RMSE = math.Sqrt(floats.Dot(errs, errs) / float64(n))
	if m.Elapsed > 0 {
		m.DriftRate = m.MaxError / m.Elapsed
	}
	return m
}

// AlignAndCompare fits the similarity transform taking est onto ref over their common prefix,
// applies it to est and computes metrics against ref. Visual odometry is not metrically scaled,
// so this is the meaningful comparison between the two engines.
func AlignAndCompare(ref, est []spatialmath.Pose) (AlignmentResult, Metrics, error) {
	n := min(len(ref), len(est))
	ref, est = ref[:n], est[:n]
	alignment, err := Umeyama(Positions(est), Positions(ref))
	if err != nil {
		return AlignmentResult{}, Metrics{}, errors.Wrap(err, "cannot align trajectories")
	}
	aligned := lo.Map(est, func(p spatialmath.Pose, _ int) spatialmath.Pose {
		return alignment.Transform(p)
	})
	return alignment, ComputeMetrics(ref, aligned), nil
}
