package keypoints

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/motiontrack/rimage"
	"go.viam.com/motiontrack/utils"
)

// ratioEpsilon is the second best score at or below which a match is rejected as ambiguous:
// two candidates reproduce the patch exactly and neither can be preferred.
const ratioEpsilon = 1e-9

// MatchingConfig contains the parameters for matching features between two frames.
type MatchingConfig struct {
	PatchSize       int     `json:"patch_size"`
	MaxSearchRadius float64 `json:"max_search_radius"`
	SSDThreshold    float64 `json:"ssd_threshold"`
	Ratio           float64 `json:"ratio"`
	MaxQueries      int     `json:"max_queries"`
}

// DefaultMatchingConfig returns the matching defaults: 15 px patches searched within 60 px.
func DefaultMatchingConfig() MatchingConfig {
	return MatchingConfig{
		PatchSize:       15,
		MaxSearchRadius: 60,
		SSDThreshold:    10000,
		Ratio:           0.8,
		MaxQueries:      50,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *MatchingConfig) Validate(path string) error {
	if cfg.PatchSize < 3 || cfg.PatchSize%2 == 0 {
		return goutils.NewConfigValidationError(path, errors.Errorf("patch_size must be odd and at least 3, got %d", cfg.PatchSize))
	}
	if cfg.MaxSearchRadius <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "max_search_radius")
	}
	if cfg.SSDThreshold <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "ssd_threshold")
	}
	if cfg.Ratio <= 0 || cfg.Ratio > 1 {
		return goutils.NewConfigValidationError(path, errors.Errorf("ratio must be in (0, 1], got %v", cfg.Ratio))
	}
	if cfg.MaxQueries <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "max_queries")
	}
	return nil
}

// PatchMatcher matches features across frames by comparing the image patches around them.
type PatchMatcher struct {
	cfg MatchingConfig
}

// NewPatchMatcher returns a matcher using cfg.
func NewPatchMatcher(cfg MatchingConfig) *PatchMatcher {
	return &PatchMatcher{cfg: cfg}
}

// Match searches, for each of the first MaxQueries prev features, the curr features within
// MaxSearchRadius (Chebyshev distance) for the most similar patch. The best candidate is accepted
// when its score is below SSDThreshold and clearly better than the second best, so a patch with
// two exact copies in range is not matched. A lone candidate needs no margin. Features whose
// patch leaves the image are skipped, as are buffers that cannot hold a width x height frame.
func (pm *PatchMatcher) Match(prev, curr []Feature, prevPix, currPix []byte, width, height int) []Match {
	if !rimage.BufferHolds(len(prevPix), width, height) || !rimage.BufferHolds(len(currPix), width, height) {
		return nil
	}
	half := pm.cfg.PatchSize / 2
	queries := prev
	if len(queries) > pm.cfg.MaxQueries {
		queries = queries[:pm.cfg.MaxQueries]
	}

	side := 2*half + 1
	prevPatch := make([]float64, side*side)
	currPatch := make([]float64, len(prevPatch))
	var matches []Match
	for pi, pf := range queries {
		if !extractPatch(prevPix, width, height, pf.Point, half, prevPatch) {
			continue
		}
		best, second := math.Inf(1), math.Inf(1)
		bestIndex := -1
		for ci, cf := range curr {
			if chebyshev(pf.Point, cf.Point) > pm.cfg.MaxSearchRadius {
				continue
			}
			if !extractPatch(currPix, width, height, cf.Point, half, currPatch) {
				continue
			}
			score := ssd(prevPatch, currPatch)
			switch {
			case score < best:
				second = best
				best = score
				bestIndex = ci
			case score < second:
				second = score
			}
		}
		if bestIndex < 0 || best >= pm.cfg.SSDThreshold {
			continue
		}
		if second <= ratioEpsilon || best/second >= pm.cfg.Ratio {
			continue
		}
		matches = append(matches, Match{PrevIndex: pi, CurrIndex: bestIndex, Score: best})
	}
	return matches
}

// extractPatch fills dst with the mean-subtracted square patch of half-width half around p. It
// returns false, leaving dst in an unspecified state, when the patch does not fit in the image.
func extractPatch(pix []byte, width, height int, p r2.Point, half int, dst []float64) bool {
	if !finite(p) {
		return false
	}
	cx, cy := int(math.Round(p.X)), int(math.Round(p.Y))
	if cx-half < 0 || cy-half < 0 || cx+half >= width || cy+half >= height {
		return false
	}
	side := 2*half + 1
	var sum float64
	for dy := 0; dy < side; dy++ {
		row := (cy-half+dy)*width + cx - half
		for dx := 0; dx < side; dx++ {
			v := float64(pix[row+dx])
			dst[dy*side+dx] = v
			sum += v
		}
	}
	mean := sum / float64(len(dst))
	for i := range dst {
		dst[i] -= mean
	}
	return true
}

func ssd(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += utils.Square(a[i] - b[i])
	}
	return sum
}
