package domain

import "time"

// ForecastRecord is one hourly forecast reading for a spot, as produced by a
// source adapter and then enriched by the Normalizer.
type ForecastRecord struct {
	Datetime time.Time `json:"datetime"`
	SpotName string    `json:"spot_name"`

	WindDirection            string   `json:"wind_direction"`
	WindDirectionDegrees     *float64 `json:"wind_direction_degrees,omitempty"`
	WindDirectionPredominant string   `json:"wind_direction_predominant,omitempty"`
	WaveDirection            string   `json:"wave_direction"`
	WaveDirectionDegrees     *float64 `json:"wave_direction_degrees,omitempty"`
	WaveDirectionPredominant string   `json:"wave_direction_predominant,omitempty"`

	WindSpeed  float64 `json:"wind_speed"` // knots
	WaveHeight float64 `json:"wave_height"`
	WavePeriod int     `json:"wave_period"`

	// Derived fields.
	Energy         int    `json:"energy"`
	Tide           string `json:"tide"`
	NearestTide    string `json:"nearest_tide"`
	TidePercentage int    `json:"tide_percentage"`
	DateName       string `json:"date_name"`
	WindStatus     string `json:"wind_status"`
	WindApproval   string `json:"wind_approval"`
}

// FetchTask is one unit of upstream work, usually a single spot page of a source.
type FetchTask struct {
	Source string `json:"source"`
	Spot   string `json:"spot"`
	URL    string `json:"url"`
}

// Relative day labels attached as date_name.
const (
	DateNameToday     = "Today"
	DateNameTomorrow  = "Tomorrow"
	DateNameDayAfter  = "Day After Tomorrow"
	DateNameYesterday = "Yesterday"
	DateNameOtherDay  = "Other Day"
)

// Wind approval tags.
const (
	WindApprovalFavorable   = "Viento Favorable"
	WindApprovalUnfavorable = "Viento No Favorable"
)

// CanonicalColumns is the stable column set of every ForecastTable.
var CanonicalColumns = []string{
	"date",
	"time",
	"date_name",
	"spot_name",
	"wind_direction",
	"wind_direction_predominant",
	"wave_direction",
	"wave_direction_predominant",
	"wind_speed",
	"wave_height",
	"wave_period",
	"energy",
	"wind_status",
	"tide",
	"nearest_tide",
	"tide_percentage",
	"wind_approval",
}

// ForecastRow is a ForecastRecord projected onto CanonicalColumns.
type ForecastRow struct {
	Date                     string  `json:"date"`
	Time                     string  `json:"time"`
	DateName                 string  `json:"date_name"`
	SpotName                 string  `json:"spot_name"`
	WindDirection            string  `json:"wind_direction"`
	WindDirectionPredominant string  `json:"wind_direction_predominant"`
	WaveDirection            string  `json:"wave_direction"`
	WaveDirectionPredominant string  `json:"wave_direction_predominant"`
	WindSpeed                float64 `json:"wind_speed"`
	WaveHeight               float64 `json:"wave_height"`
	WavePeriod               int     `json:"wave_period"`
	Energy                   int     `json:"energy"`
	WindStatus               string  `json:"wind_status"`
	Tide                     string  `json:"tide"`
	NearestTide              string  `json:"nearest_tide"`
	TidePercentage           int     `json:"tide_percentage"`
	WindApproval             string  `json:"wind_approval"`
}

// ForecastTable is the canonical output handed to presentation and alerting.
type ForecastTable struct {
	Columns []string      `json:"columns"`
	Rows    []ForecastRow `json:"rows"`
}

// NewForecastTable returns an empty table carrying the canonical columns.
func NewForecastTable() ForecastTable {
	cols := make([]string, len(CanonicalColumns))
	copy(cols, CanonicalColumns)
	return ForecastTable{Columns: cols, Rows: []ForecastRow{}}
}

// Len returns the number of rows.
func (t ForecastTable) Len() int { return len(t.Rows) }
