package domain

import (
	"fmt"
	"slices"
	"strings"
)

// SpotConditionSet is the configured alert criteria for one named spot.
// Empty direction sets and zero minimums do not constrain.
type SpotConditionSet struct {
	Name           string
	SpotNames      []string
	WindDirections []string
	WaveDirections []string
	MinWavePeriod  float64
	MinWaveHeight  float64
	MinEnergy      float64

	// ThreeNearDays restricts matches to today and the next two days.
	ThreeNearDays bool
}

// Alert is a forecast row that satisfied a SpotConditionSet.
type Alert struct {
	Spot string
	Row  ForecastRow
}

var nearDays = []string{DateNameToday, DateNameTomorrow, DateNameDayAfter}

// Matches reports whether row satisfies every configured criterion.
func (c SpotConditionSet) Matches(row ForecastRow) bool {
	if !slices.ContainsFunc(c.SpotNames, func(s string) bool { return strings.EqualFold(s, row.SpotName) }) {
		return false
	}
	if c.ThreeNearDays && !slices.Contains(nearDays, row.DateName) {
		return false
	}
	if !directionAllowed(c.WindDirections, row.WindDirection, row.WindDirectionPredominant) {
		return false
	}
	if !directionAllowed(c.WaveDirections, row.WaveDirection, row.WaveDirectionPredominant) {
		return false
	}
	return float64(row.WavePeriod) >= c.MinWavePeriod &&
		row.WaveHeight >= c.MinWaveHeight &&
		float64(row.Energy) >= c.MinEnergy
}

func directionAllowed(allowed []string, inst, pred string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, d := range allowed {
		d = NormalizeCompass(d)
		if d == inst || d == pred {
			return true
		}
	}
	return false
}

// MatchAlerts evaluates every condition set against the table, in condition
// order and then table order.
func MatchAlerts(conditions []SpotConditionSet, table ForecastTable) []Alert {
	var alerts []Alert
	for _, c := range conditions {
		for _, row := range table.Rows {
			if c.Matches(row) {
				alerts = append(alerts, Alert{Spot: c.Name, Row: row})
			}
		}
	}
	return alerts
}

// Message renders the alert as a chat message.
func (a Alert) Message() string {
	r := a.Row
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**: %s, día %s a las %s, una altura de %.2f m, un periodo de %d s, energía %d, "+
		"dirección del viento %s, dirección de la ola %s, velocidad del viento %.1f nudos",
		strings.ToUpper(a.Spot), r.DateName, r.Date, r.Time, r.WaveHeight, r.WavePeriod, r.Energy,
		r.WindDirection, r.WaveDirection, r.WindSpeed)
	if r.Tide != "" {
		fmt.Fprintf(&b, ", y la marea estará %s", strings.ToLower(r.Tide))
	}
	return b.String()
}
