package domain

import (
	"errors"
	"fmt"
	"math"
)

// Gravity is the gravitational acceleration used by the energy proxy, in m/s².
const Gravity = 9.81

// ErrLengthMismatch is returned when parallel height and period series differ in length.
var ErrLengthMismatch = errors.New("height and period series differ in length")

// CalculateEnergy returns the deep-water wave energy proxy
// ceil(0.5 * g * height² * period). Spot thresholds are tuned against this
// formula, not against an SI energy flux.
func CalculateEnergy(waveHeight, wavePeriod float64) int {
	return int(math.Ceil(0.5 * Gravity * waveHeight * waveHeight * wavePeriod))
}

// GenerateEnergySeries applies CalculateEnergy pairwise over equal-length series.
func GenerateEnergySeries(heights, periods []float64) ([]int, error) {
	if len(heights) != len(periods) {
		return nil, fmt.Errorf("energy series (%d heights, %d periods): %w", len(heights), len(periods), ErrLengthMismatch)
	}
	out := make([]int, len(heights))
	for i := range heights {
		out[i] = CalculateEnergy(heights[i], periods[i])
	}
	return out, nil
}

// Speed conversion factors to knots.
const (
	kmhPerKnot = 1.852
	knotsPerMS = 1.94384
)

// KmhToKnots converts km/h to knots, rounded to two decimals.
func KmhToKnots(v float64) float64 {
	return round2(v / kmhPerKnot)
}

// MpsToKnots converts m/s to knots, rounded to two decimals.
func MpsToKnots(v float64) float64 {
	return round2(v * knotsPerMS)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
