package domain

import (
	"math"
	"strings"
)

// WindRelationship describes how the wind blows relative to the incoming swell.
type WindRelationship string

const (
	Offshore WindRelationship = "Offshore"
	CrossOff WindRelationship = "Cross-off"
	Onshore  WindRelationship = "Onshore"
)

// compass16 lists the 16 points clockwise from north, 22.5° apart.
var compass16 = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// AngleToDirection maps a bearing to one of eight octants. Cardinal points
// cover ±10° while the diagonals take the wider bands in between.
func AngleToDirection(angle float64) string {
	a := normalizeAngle(angle)
	switch {
	case a >= 350 || a <= 10:
		return "N"
	case a < 80:
		return "NE"
	case a <= 100:
		return "E"
	case a < 170:
		return "SE"
	case a <= 190:
		return "S"
	case a < 260:
		return "SW"
	case a <= 280:
		return "W"
	default:
		return "NW"
	}
}

// DegreesToPredominant16 maps a bearing to the nearest of 16 evenly spaced
// compass points.
func DegreesToPredominant16(angle float64) string {
	idx := int(normalizeAngle(angle)/22.5+0.5) % 16
	return compass16[idx]
}

func normalizeAngle(angle float64) float64 {
	a := math.Mod(angle, 360)
	if a < 0 {
		a += 360
	}
	return a
}

// NormalizeCompass upper-cases a compass string and rewrites the Spanish
// "O" (oeste) as "W", so "ono" becomes "WNW".
func NormalizeCompass(dir string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case 'O', 'o':
			return 'W'
		case 'n':
			return 'N'
		case 's':
			return 'S'
		case 'e':
			return 'E'
		case 'w':
			return 'W'
		case ' ', '\t', '\n':
			return -1
		}
		return r
	}, dir)
}

func contrary(a, b byte) bool {
	switch a {
	case 'N':
		return b == 'S'
	case 'S':
		return b == 'N'
	case 'E':
		return b == 'W'
	case 'W':
		return b == 'E'
	}
	return false
}

// CountContraries counts opposing letter pairs between two compass strings.
// Equal-length strings are compared position by position. Otherwise each
// letter of the shorter string is checked against every letter of the longer
// one, stopping as soon as the count reaches the shorter length.
func CountContraries(a, b string) int {
	a, b = NormalizeCompass(a), NormalizeCompass(b)

	if len(a) == len(b) {
		count := 0
		for i := 0; i < len(a); i++ {
			if contrary(a[i], b[i]) {
				count++
			}
		}
		return count
	}

	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}

	count := 0
	for i := 0; i < len(short); i++ {
		for j := 0; j < len(long); j++ {
			if contrary(short[i], long[j]) {
				count++
				if count >= len(short) {
					return count
				}
			}
		}
	}
	return count
}

// ClassifyWindWaveRelationship reports Offshore when every letter of the
// shorter direction opposes the other direction, CrossOff when some do, and
// Onshore otherwise.
func ClassifyWindWaveRelationship(windDir, waveDir string) WindRelationship {
	n := min(len(NormalizeCompass(windDir)), len(NormalizeCompass(waveDir)))
	if n == 0 {
		return Onshore
	}

	switch count := CountContraries(windDir, waveDir); {
	case count >= n:
		return Offshore
	case count > 0:
		return CrossOff
	default:
		return Onshore
	}
}

// GetWindStatus is the string form of ClassifyWindWaveRelationship.
func GetWindStatus(windDir, waveDir string) string {
	return string(ClassifyWindWaveRelationship(windDir, waveDir))
}

// WindApproval tags a reading as favorable when the wind is offshore or
// cross-off, or light enough not to matter.
func WindApproval(status string, windSpeed float64) string {
	if status == string(Offshore) || status == string(CrossOff) || windSpeed <= 10 {
		return WindApprovalFavorable
	}
	return WindApprovalUnfavorable
}
