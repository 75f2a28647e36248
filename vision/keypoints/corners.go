package keypoints

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
	"gonum.org/v1/gonum/floats"

	"go.viam.com/motiontrack/rimage"
)

// DetectorConfig contains the parameters of the Harris corner detector.
type DetectorConfig struct {
	MaxFeatures       int     `json:"max_features"`
	MinDistance       float64 `json:"min_distance"`
	HarrisK           float64 `json:"harris_k"`
	ResponseThreshold float64 `json:"response_threshold"`
	Border            int     `json:"border"`
	WindowRadius      int     `json:"window_radius"`
}

// DefaultDetectorConfig returns the detector defaults: at most 150 corners at least 15 px apart.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		MaxFeatures:       150,
		MinDistance:       15,
		HarrisK:           0.04,
		ResponseThreshold: 1e-4,
		Border:            2,
		WindowRadius:      1,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *DetectorConfig) Validate(path string) error {
	if cfg.MaxFeatures <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "max_features")
	}
	if cfg.MinDistance < 0 {
		return goutils.NewConfigValidationError(path, errors.New("min_distance must be non-negative"))
	}
	if cfg.HarrisK <= 0 || cfg.HarrisK >= 0.25 {
		return goutils.NewConfigValidationError(path, errors.Errorf("harris_k must be in (0, 0.25), got %v", cfg.HarrisK))
	}
	if cfg.WindowRadius < 1 {
		return goutils.NewConfigValidationError(path, errors.New("window_radius must be at least 1"))
	}
	if cfg.Border < cfg.WindowRadius+1 {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("border (%d) must exceed window_radius (%d)", cfg.Border, cfg.WindowRadius))
	}
	return nil
}

// CornerDetector finds Harris corners in grayscale frames.
type CornerDetector struct {
	cfg DetectorConfig
}

// NewCornerDetector returns a detector using cfg.
func NewCornerDetector(cfg DetectorConfig) *CornerDetector {
	return &CornerDetector{cfg: cfg}
}

// Config returns the detector configuration.
func (d *CornerDetector) Config() DetectorConfig {
	return d.cfg
}

// Detect returns the corners of a row-major 8-bit grayscale buffer ordered by decreasing
// response. A buffer shorter than width*height or a side shorter than rimage.MinImageSide yields
// no features.
func (d *CornerDetector) Detect(pix []byte, width, height int) []Feature {
	img, err := rimage.GrayFromBytes(pix, width, height)
	if err != nil {
		return nil
	}
	gradients := rimage.SobelGradients(img)

	points, responses := d.candidates(gradients)
	if len(responses) == 0 {
		return nil
	}
	order := make([]int, len(responses))
	floats.Argsort(responses, order)
	strongest := responses[len(responses)-1]

	features := make([]Feature, 0, d.cfg.MaxFeatures)
	minDistSq := d.cfg.MinDistance * d.cfg.MinDistance
	for i := len(order) - 1; i >= 0 && len(features) < d.cfg.MaxFeatures; i-- {
		p := points[order[i]]
		suppressed := false
		for _, kept := range features {
			if offset := p.Sub(kept.Point); offset.Dot(offset) <= minDistSq {
				suppressed = true
				break
			}
		}
		if suppressed {
			continue
		}
		features = append(features, Feature{Point: p, Response: responses[i], Score: responses[i] / strongest})
	}
	return features
}

// candidates returns every interior pixel whose Harris response exceeds the threshold, together
// with its response.
func (d *CornerDetector) candidates(gradients *rimage.GradientField) ([]r2.Point, []float64) {
	w, h := gradients.Width(), gradients.Height()
	r := d.cfg.WindowRadius
	var points []r2.Point
	var responses []float64
	for y := d.cfg.Border; y < h-d.cfg.Border; y++ {
		for x := d.cfg.Border; x < w-d.cfg.Border; x++ {
			var gxx, gyy, gxy float64
			for wy := y - r; wy <= y+r; wy++ {
				for wx := x - r; wx <= x+r; wx++ {
					gx, gy := gradients.At(wx, wy)
					gxx += gx * gx
					gyy += gy * gy
					gxy += gx * gy
				}
			}
			det := gxx*gyy - gxy*gxy
			trace := gxx + gyy
			response := det - d.cfg.HarrisK*trace*trace
			if response > d.cfg.ResponseThreshold {
				points = append(points, r2.Point{X: float64(x), Y: float64(y)})
				responses = append(responses, response)
			}
		}
	}
	return points, responses
}
