// Package jsonfeed adapts hourly JSON forecast feeds to domain records.
package jsonfeed

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/couchcryptid/surf-forecast-etl/internal/domain"
)

// Wind speed units accepted in a feed's wind_unit.
const (
	UnitKnots = "kn"
	UnitKmh   = "kmh"
	UnitMps   = "mps"
)

// feed is the wire layout of one spot's forecast.
type feed struct {
	Spot     string `json:"spot"`
	WindUnit string `json:"wind_unit"`
	Hours    []hour `json:"hours"`
}

type hour struct {
	Datetime                 string   `json:"datetime"`
	WindSpeed                float64  `json:"wind_speed"`
	WindDirection            string   `json:"wind_direction"`
	WindDirectionPredominant string   `json:"wind_direction_predominant"`
	WindDegrees              *float64 `json:"wind_degrees"`
	WaveHeight               float64  `json:"wave_height"`
	WavePeriod               float64  `json:"wave_period"`
	WaveDirection            string   `json:"wave_direction"`
	WaveDirectionPredominant string   `json:"wave_direction_predominant"`
	WaveDegrees              *float64 `json:"wave_degrees"`
}

// Parse decodes a feed payload. spot names the records when the feed does
// not carry its own spot field. Wind speeds are converted to knots.
func Parse(payload []byte, spot string) ([]domain.ForecastRecord, error) {
	var f feed
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	if f.Spot != "" {
		spot = f.Spot
	}

	convert, err := speedConverter(f.WindUnit)
	if err != nil {
		return nil, err
	}

	records := make([]domain.ForecastRecord, 0, len(f.Hours))
	for i, h := range f.Hours {
		at, err := time.Parse(time.RFC3339, h.Datetime)
		if err != nil {
			return nil, fmt.Errorf("hour %d: parse datetime %q: %w", i, h.Datetime, err)
		}
		records = append(records, domain.ForecastRecord{
			Datetime:                 at,
			SpotName:                 spot,
			WindDirection:            h.WindDirection,
			WindDirectionDegrees:     h.WindDegrees,
			WindDirectionPredominant: h.WindDirectionPredominant,
			WaveDirection:            h.WaveDirection,
			WaveDirectionDegrees:     h.WaveDegrees,
			WaveDirectionPredominant: h.WaveDirectionPredominant,
			WindSpeed:                convert(h.WindSpeed),
			WaveHeight:               h.WaveHeight,
			WavePeriod:               int(math.Round(h.WavePeriod)),
		})
	}
	return records, nil
}

func speedConverter(unit string) (func(float64) float64, error) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "", UnitKnots, "kt", "knots":
		return func(v float64) float64 { return v }, nil
	case UnitKmh, "km/h":
		return domain.KmhToKnots, nil
	case UnitMps, "m/s":
		return domain.MpsToKnots, nil
	default:
		return nil, fmt.Errorf("unknown wind unit %q", unit)
	}
}
