// Package keypoints contains corner features detected in grayscale frames and the patch matching
// used to track them from one frame to the next. For now:
// - Harris corners with greedy non-maximum suppression
// - mean-subtracted SSD patch matching with a ratio test
package keypoints

import (
	"math"

	"github.com/golang/geo/r2"
)

// Feature is a corner detected in a frame.
type Feature struct {
	// Point is the pixel location of the corner.
	Point r2.Point `json:"point"`
	// Response is the raw Harris corner response at Point.
	Response float64 `json:"response"`
	// Score is Response relative to the strongest corner of the same frame, in (0, 1].
	Score float64 `json:"score"`
}

// Match pairs a feature of the previous feature list with one of the current list.
type Match struct {
	PrevIndex int     `json:"prev_index"`
	CurrIndex int     `json:"curr_index"`
	Score     float64 `json:"score"`
}

// Valid reports whether both indices of the match refer to entries of prev and curr and the
// matched points are finite.
func (m Match) Valid(prev, curr []Feature) bool {
	if m.PrevIndex < 0 || m.PrevIndex >= len(prev) || m.CurrIndex < 0 || m.CurrIndex >= len(curr) {
		return false
	}
	return finite(prev[m.PrevIndex].Point) && finite(curr[m.CurrIndex].Point)
}

// MatchedPoints returns the prev and curr pixel locations of every valid match, skipping the
// others.
func MatchedPoints(matches []Match, prev, curr []Feature) ([]r2.Point, []r2.Point) {
	prevPts := make([]r2.Point, 0, len(matches))
	currPts := make([]r2.Point, 0, len(matches))
	for _, m := range matches {
		if !m.Valid(prev, curr) {
			continue
		}
		prevPts = append(prevPts, prev[m.PrevIndex].Point)
		currPts = append(currPts, curr[m.CurrIndex].Point)
	}
	return prevPts, currPts
}

func finite(p r2.Point) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// chebyshev returns the L-infinity distance between two points.
func chebyshev(a, b r2.Point) float64 {
	return math.Max(math.Abs(a.X-b.X), math.Abs(a.Y-b.Y))
}
