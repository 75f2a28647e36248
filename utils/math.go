// Package utils contains numeric and concurrency helpers shared by the estimation packages.
package utils

import (
	"math"

	"github.com/montanaflynn/stats"
)

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// Clamp returns value limited to the closed range [lo, hi].
func Clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// Square returns n*n.
func Square(n float64) float64 {
	return n * n
}

// Median returns the median of values, averaging the two middle elements for even lengths.
// The input slice is not modified. An empty input returns NaN.
func Median(values []float64) float64 {
	m, err := stats.Median(values)
	if err != nil {
		return math.NaN()
	}
	return m
}

// MeanAbsDeviation returns the mean absolute deviation of values from center.
func MeanAbsDeviation(values []float64, center float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += math.Abs(v - center)
	}
	return sum / float64(len(values))
}
