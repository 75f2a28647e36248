// Package odometry implements monocular frame-to-keyframe visual odometry: a robust flow-based
// pose-delta estimator and the controller that tracks keyframes and accumulates poses.
//
// The translation scale is heuristic. Monocular flow does not resolve metric distance, so
// translations are in arbitrary world units proportional to the FlowScale of the estimator.
package odometry

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/motiontrack/rimage/transform"
	"go.viam.com/motiontrack/utils"
	"go.viam.com/motiontrack/vision/keypoints"
)

// EstimatorConfig contains the parameters of the pose-delta estimator.
type EstimatorConfig struct {
	MinMatches         int     `json:"min_matches"`
	FlowScale          float64 `json:"flow_scale"`
	MADMultiplier      float64 `json:"mad_multiplier"`
	MinInlierThreshold float64 `json:"min_inlier_threshold"`
	MaxInlierThreshold float64 `json:"max_inlier_threshold"`
}

// DefaultEstimatorConfig returns the estimator defaults.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		MinMatches:         8,
		FlowScale:          0.05,
		MADMultiplier:      3,
		MinInlierThreshold: 0.001,
		MaxInlierThreshold: 0.05,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *EstimatorConfig) Validate(path string) error {
	if cfg.MinMatches < 1 {
		return goutils.NewConfigValidationFieldRequiredError(path, "min_matches")
	}
	if cfg.FlowScale <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "flow_scale")
	}
	if cfg.MADMultiplier <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "mad_multiplier")
	}
	if cfg.MinInlierThreshold < 0 || cfg.MaxInlierThreshold < cfg.MinInlierThreshold {
		return goutils.NewConfigValidationError(path, errors.Errorf(
			"inlier thresholds must satisfy 0 <= min (%v) <= max (%v)", cfg.MinInlierThreshold, cfg.MaxInlierThreshold))
	}
	return nil
}

// PoseDelta is the translation estimated between two frames with its quality measures.
type PoseDelta struct {
	Translation r3.Vector
	InlierRatio float64
	InlierCount int
	MatchCount  int
}

// PoseDeltaEstimator estimates camera translation from the median optical flow of matched
// features.
type PoseDeltaEstimator struct {
	cfg EstimatorConfig
}

// NewPoseDeltaEstimator returns an estimator using cfg.
func NewPoseDeltaEstimator(cfg EstimatorConfig) *PoseDeltaEstimator {
	return &PoseDeltaEstimator{cfg: cfg}
}

// Estimate converts every valid match to a flow vector in normalized camera coordinates, takes
// the per-axis median as the flow estimate and counts as inliers the matches whose residuals on
// both axes are within a multiple of the mean absolute deviation. Matches whose indices are out
// of range are skipped. Fewer than MinMatches usable matches yield a zero PoseDelta.
func (e *PoseDeltaEstimator) Estimate(
	matches []keypoints.Match,
	prev, curr []keypoints.Feature,
	intrinsics *transform.PinholeCameraIntrinsics,
) PoseDelta {
	if intrinsics == nil {
		return PoseDelta{}
	}
	prevPts, currPts := keypoints.MatchedPoints(matches, prev, curr)
	if len(prevPts) < e.cfg.MinMatches {
		return PoseDelta{}
	}

	flowX := make([]float64, len(prevPts))
	flowY := make([]float64, len(prevPts))
	for i := range prevPts {
		flow := intrinsics.PixelToNormalized(currPts[i]).Sub(intrinsics.PixelToNormalized(prevPts[i]))
		flowX[i], flowY[i] = flow.X, flow.Y
	}
	medianX, medianY := utils.Median(flowX), utils.Median(flowY)
	thresholdX := e.inlierThreshold(flowX, medianX)
	thresholdY := e.inlierThreshold(flowY, medianY)

	inliers := 0
	for i := range flowX {
		if math.Abs(flowX[i]-medianX) <= thresholdX && math.Abs(flowY[i]-medianY) <= thresholdY {
			inliers++
		}
	}
	return PoseDelta{
		Translation: r3.Vector{X: -medianX * e.cfg.FlowScale, Y: -medianY * e.cfg.FlowScale},
		InlierRatio: float64(inliers) / float64(len(flowX)),
		InlierCount: inliers,
		MatchCount:  len(flowX),
	}
}

func (e *PoseDeltaEstimator) inlierThreshold(flow []float64, median float64) float64 {
	mad := utils.MeanAbsDeviation(flow, median)
	return utils.Clamp(e.cfg.MADMultiplier*mad, e.cfg.MinInlierThreshold, e.cfg.MaxInlierThreshold)
}
