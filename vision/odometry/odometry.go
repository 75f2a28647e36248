package odometry

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/motiontrack/logging"
	"go.viam.com/motiontrack/spatialmath"
	"go.viam.com/motiontrack/trajectory"
	"go.viam.com/motiontrack/utils"
	"go.viam.com/motiontrack/vision/keypoints"
)

// malformedWarnEvery is how many malformed frames are skipped per warning logged.
const malformedWarnEvery = 100

// Config contains the parameters of the visual-odometry controller.
type Config struct {
	MinValidMatches     int     `json:"min_valid_matches"`
	KeyframeTranslation float64 `json:"keyframe_translation"`
	KeyframeRotationDeg float64 `json:"keyframe_rotation_deg"`
	MaxStepSpeed        float64 `json:"max_step_speed"`
	VelocitySmoothing   float64 `json:"velocity_smoothing"`
}

// DefaultConfig returns the controller defaults.
func DefaultConfig() Config {
	return Config{
		MinValidMatches:     4,
		KeyframeTranslation: 0.15,
		KeyframeRotationDeg: 3,
		MaxStepSpeed:        0.5,
		VelocitySmoothing:   0.3,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.MinValidMatches < 1 {
		return goutils.NewConfigValidationFieldRequiredError(path, "min_valid_matches")
	}
	if cfg.KeyframeTranslation <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "keyframe_translation")
	}
	if cfg.KeyframeRotationDeg <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "keyframe_rotation_deg")
	}
	if cfg.MaxStepSpeed <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "max_step_speed")
	}
	if cfg.VelocitySmoothing <= 0 || cfg.VelocitySmoothing > 1 {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("velocity_smoothing must be in (0, 1], got %v", cfg.VelocitySmoothing))
	}
	return nil
}

// Status describes what processing a frame did.
type Status int

// The frame statuses.
const (
	// StatusSkipped means the frame was malformed and left the state unchanged.
	StatusSkipped Status = iota
	// StatusInitialized means the frame started tracking and became the first keyframe.
	StatusInitialized
	// StatusTracked means a pose delta was estimated and applied.
	StatusTracked
	// StatusLostRepeated means too few matches survived and the previous pose was repeated.
	StatusLostRepeated
)

func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusInitialized:
		return "initialized"
	case StatusTracked:
		return "tracked"
	case StatusLostRepeated:
		return "lost_repeated"
	default:
		return "unknown"
	}
}

// FrameResult reports the outcome of processing one frame.
type FrameResult struct {
	Pose        spatialmath.Pose
	Status      Status
	MatchCount  int
	InlierCount int
	InlierRatio float64
	// Clamped is set when the estimated step exceeded the speed clamp and the smoothed velocity
	// was reused.
	Clamped     bool
	NewKeyframe bool
	// Err holds the reason a frame was skipped.
	Err error
}

// Keyframe is the matching reference for subsequent frames. The frame pixels are retained to
// extract the patches around its features.
type Keyframe struct {
	Pose     spatialmath.Pose
	Features []keypoints.Feature
	Pix      []byte
	Width    int
	Height   int
}

// VisualOdometry tracks a camera by matching each frame against the last keyframe. It starts
// uninitialized; the first valid frame sets the identity pose and the first keyframe.
//
// A VisualOdometry is a single-writer state machine: callers must serialise calls.
type VisualOdometry struct {
	cfg       Config
	detector  *keypoints.CornerDetector
	matcher   *keypoints.PatchMatcher
	estimator *PoseDeltaEstimator
	logger    logging.Logger

	initialized bool
	pose        spatialmath.Pose
	velocity    r3.Vector
	keyframes   []Keyframe
	history     *trajectory.History
	skipped     int
}

// NewVisualOdometry returns an uninitialized controller.
func NewVisualOdometry(
	cfg Config,
	detector *keypoints.CornerDetector,
	matcher *keypoints.PatchMatcher,
	estimator *PoseDeltaEstimator,
	logger logging.Logger,
) *VisualOdometry {
	return &VisualOdometry{
		cfg:       cfg,
		detector:  detector,
		matcher:   matcher,
		estimator: estimator,
		logger:    logger,
		pose:      spatialmath.NewZeroPose(0),
		history:   trajectory.NewHistory(),
	}
}

// ProcessFrame advances the tracker by one frame. Malformed frames are skipped without changing
// any state.
func (vo *VisualOdometry) ProcessFrame(frame Frame) FrameResult {
	if err := vo.checkFrame(&frame); err != nil {
		vo.skipped++
		if vo.skipped%malformedWarnEvery == 1 {
			vo.logger.Warnw("skipping malformed frame", "t", frame.Timestamp, "skipped", vo.skipped, "error", err)
		} else {
			vo.logger.Debugw("skipping malformed frame", "t", frame.Timestamp, "error", err)
		}
		return FrameResult{Pose: vo.pose, Status: StatusSkipped, Err: err}
	}

	features := vo.detector.Detect(frame.Pix, frame.Width, frame.Height)
	if !vo.initialized {
		vo.initialized = true
		vo.pose = spatialmath.NewZeroPose(frame.Timestamp)
		vo.velocity = r3.Vector{}
		vo.history.Append(vo.pose)
		vo.addKeyframe(frame, features)
		return FrameResult{Pose: vo.pose, Status: StatusInitialized, NewKeyframe: true}
	}

	kf := &vo.keyframes[len(vo.keyframes)-1]
	matches := vo.matcher.Match(kf.Features, features, kf.Pix, frame.Pix, frame.Width, frame.Height)
	valid := make([]keypoints.Match, 0, len(matches))
	for _, m := range matches {
		if m.Valid(kf.Features, features) {
			valid = append(valid, m)
		}
	}
	if len(valid) < vo.cfg.MinValidMatches {
		vo.logger.Debugw("too few matches, repeating pose", "t", frame.Timestamp, "matches", len(valid))
		vo.pose = vo.pose.WithTimestamp(frame.Timestamp)
		vo.history.Append(vo.pose)
		return FrameResult{Pose: vo.pose, Status: StatusLostRepeated, MatchCount: len(valid)}
	}

	delta := vo.estimator.Estimate(valid, kf.Features, features, frame.Intrinsics)
	result := FrameResult{
		Status:      StatusTracked,
		MatchCount:  delta.MatchCount,
		InlierCount: delta.InlierCount,
		InlierRatio: delta.InlierRatio,
	}
	if speed := delta.Translation.Norm(); speed > vo.cfg.MaxStepSpeed {
		vo.logger.Debugw("clamping outlier step", "t", frame.Timestamp, "speed", speed)
		result.Clamped = true
	} else {
		alpha := vo.cfg.VelocitySmoothing
		vo.velocity = vo.velocity.Mul(1 - alpha).Add(delta.Translation.Mul(alpha))
	}

	vo.pose = vo.pose.Translate(vo.velocity).WithTimestamp(frame.Timestamp)
	vo.history.Append(vo.pose)
	result.Pose = vo.pose

	moved := vo.pose.DistanceTo(kf.Pose)
	turned := vo.pose.AngleTo(kf.Pose)
	if moved > vo.cfg.KeyframeTranslation || turned > utils.DegToRad(vo.cfg.KeyframeRotationDeg) {
		vo.logger.Debugw("keyframe threshold crossed",
			"t", frame.Timestamp, "moved", moved, "turned_deg", utils.RadToDeg(turned))
		vo.addKeyframe(frame, features)
		result.NewKeyframe = true
	}
	return result
}

// checkFrame validates the frame and, once tracking, that it matches the keyframe size.
func (vo *VisualOdometry) checkFrame(frame *Frame) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	if len(vo.keyframes) > 0 {
		kf := vo.keyframes[len(vo.keyframes)-1]
		if kf.Width != frame.Width || kf.Height != frame.Height {
			return errors.Wrapf(ErrMalformedFrame, "frame size %dx%d differs from keyframe size %dx%d",
				frame.Width, frame.Height, kf.Width, kf.Height)
		}
	}
	return nil
}

func (vo *VisualOdometry) addKeyframe(frame Frame, features []keypoints.Feature) {
	pix := make([]byte, frame.Width*frame.Height)
	copy(pix, frame.Pix)
	vo.keyframes = append(vo.keyframes, Keyframe{
		Pose:     vo.pose,
		Features: features,
		Pix:      pix,
		Width:    frame.Width,
		Height:   frame.Height,
	})
	vo.logger.Debugw("inserted keyframe", "t", frame.Timestamp, "keyframes", len(vo.keyframes), "features", len(features))
}

// Initialized reports whether a first frame has been processed since the last reset.
func (vo *VisualOdometry) Initialized() bool {
	return vo.initialized
}

// Pose returns the latest pose.
func (vo *VisualOdometry) Pose() spatialmath.Pose {
	return vo.pose
}

// Velocity returns the smoothed per-frame translation.
func (vo *VisualOdometry) Velocity() r3.Vector {
	return vo.velocity
}

// Keyframes returns a copy of the keyframe list.
func (vo *VisualOdometry) Keyframes() []Keyframe {
	out := make([]Keyframe, len(vo.keyframes))
	copy(out, vo.keyframes)
	return out
}

// KeyframeCount returns the number of keyframes inserted since the last reset.
func (vo *VisualOdometry) KeyframeCount() int {
	return len(vo.keyframes)
}

// History returns a copy of every pose emitted since the last reset.
func (vo *VisualOdometry) History() []spatialmath.Pose {
	return vo.history.Snapshot()
}

// HistoryLen returns the number of poses emitted since the last reset.
func (vo *VisualOdometry) HistoryLen() int {
	return vo.history.Len()
}

// Skipped returns the number of malformed frames skipped since the last reset.
func (vo *VisualOdometry) Skipped() int {
	return vo.skipped
}

// Reset returns the controller to the uninitialized state, dropping keyframes and history.
func (vo *VisualOdometry) Reset() {
	vo.initialized = false
	vo.pose = spatialmath.NewZeroPose(0)
	vo.velocity = r3.Vector{}
	vo.keyframes = nil
	vo.history.Reset()
	vo.skipped = 0
}
