package domain

import (
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Default display window, inclusive, as wall-clock offsets from midnight.
const (
	defaultWindowStart = 6 * time.Hour
	defaultWindowEnd   = 19 * time.Hour
)

// Normalizer turns merged source records into the canonical forecast table.
type Normalizer struct {
	loc         *time.Location
	clock       clockwork.Clock
	tides       *TideTimeline
	classifier  *Classifier
	ascending   bool
	windowStart time.Duration
	windowEnd   time.Duration
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithLocation sets the zone used for the display window, date_name and the
// rendered date and time columns.
func WithLocation(loc *time.Location) NormalizerOption {
	return func(n *Normalizer) {
		if loc != nil {
			n.loc = loc
		}
	}
}

// WithClock overrides the time source that defines "today".
func WithClock(c clockwork.Clock) NormalizerOption {
	return func(n *Normalizer) {
		if c != nil {
			n.clock = c
		}
	}
}

// WithTides attaches a tide timeline; without one the tide columns stay empty.
func WithTides(tl *TideTimeline) NormalizerOption {
	return func(n *Normalizer) { n.tides = tl }
}

// WithClassifier replaces the default spot classifier.
func WithClassifier(c *Classifier) NormalizerOption {
	return func(n *Normalizer) {
		if c != nil {
			n.classifier = c
		}
	}
}

// WithDisplayWindow keeps only records whose local time of day lies within
// [start, end], both measured from midnight.
func WithDisplayWindow(start, end time.Duration) NormalizerOption {
	return func(n *Normalizer) {
		n.windowStart = start
		n.windowEnd = end
	}
}

// SortAscending orders the table oldest first instead of newest first.
func SortAscending() NormalizerOption {
	return func(n *Normalizer) { n.ascending = true }
}

// NewNormalizer returns a Normalizer using UTC, the package clock, no tides and
// the default classifier unless overridden.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		loc:         time.UTC,
		clock:       clock,
		classifier:  NewClassifier(),
		windowStart: defaultWindowStart,
		windowEnd:   defaultWindowEnd,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize merges the batches, drops readings outside the display window,
// attaches the derived fields, classifies every record and returns the sorted
// canonical table. Empty input yields an empty table with its columns set.
func (n *Normalizer) Normalize(batches ...[]ForecastRecord) ForecastTable {
	table := NewForecastTable()
	today := n.clock.Now().In(n.loc)

	for _, rec := range MergeRecords(batches...) {
		local := rec.Datetime.In(n.loc)
		if !n.inWindow(local) {
			continue
		}
		rec.DateName = DateName(local, today)
		n.enrich(&rec, local)
		n.classifier.Apply(&rec)
		table.Rows = append(table.Rows, project(rec, local))
	}

	sortRows(table.Rows, n.ascending)
	return table
}

func (n *Normalizer) inWindow(local time.Time) bool {
	wall := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second +
		time.Duration(local.Nanosecond())
	return wall >= n.windowStart && wall <= n.windowEnd
}

func (n *Normalizer) enrich(rec *ForecastRecord, local time.Time) {
	rec.Energy = CalculateEnergy(rec.WaveHeight, float64(rec.WavePeriod))

	if n.tides != nil && n.tides.Len() > 0 {
		rec.Tide = n.tides.Status(local)
		rec.NearestTide = n.tides.NearestLabel(local)
		rec.TidePercentage = n.tides.Percentage(local)
	}

	rec.WindDirection, rec.WindDirectionPredominant = directions(rec.WindDirection, rec.WindDirectionPredominant, rec.WindDirectionDegrees)
	rec.WaveDirection, rec.WaveDirectionPredominant = directions(rec.WaveDirection, rec.WaveDirectionPredominant, rec.WaveDirectionDegrees)

	rec.WindStatus = GetWindStatus(rec.WindDirection, rec.WaveDirection)
	rec.WindApproval = WindApproval(rec.WindStatus, rec.WindSpeed)
}

// directions resolves the instantaneous and predominant compass readings.
// Degrees win for the predominant bucket; the instantaneous string is only
// derived from degrees when the source left it blank.
func directions(inst, pred string, degrees *float64) (string, string) {
	inst = NormalizeCompass(inst)
	if inst == "" && degrees != nil {
		inst = AngleToDirection(*degrees)
	}
	switch {
	case degrees != nil:
		pred = DegreesToPredominant16(*degrees)
	case pred != "":
		pred = NormalizeCompass(pred)
	default:
		pred = inst
	}
	return inst, pred
}

// MergeRecords concatenates batches in order, keeping only the first record
// seen for each (spot_name, datetime) pair.
func MergeRecords(batches ...[]ForecastRecord) []ForecastRecord {
	type key struct {
		spot string
		at   int64
	}
	seen := make(map[key]struct{})
	var out []ForecastRecord
	for _, batch := range batches {
		for _, rec := range batch {
			k := key{spot: rec.SpotName, at: rec.Datetime.UnixNano()}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, rec)
		}
	}
	return out
}

// DateName labels t relative to today's calendar date in today's location.
func DateName(t, today time.Time) string {
	t = t.In(today.Location())
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	ref := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	switch int(day.Sub(ref).Hours() / 24) {
	case 0:
		return DateNameToday
	case 1:
		return DateNameTomorrow
	case 2:
		return DateNameDayAfter
	case -1:
		return DateNameYesterday
	default:
		return DateNameOtherDay
	}
}

func project(rec ForecastRecord, local time.Time) ForecastRow {
	return ForecastRow{
		Date:                     local.Format(dateLayout),
		Time:                     local.Format(timeLayout),
		DateName:                 rec.DateName,
		SpotName:                 rec.SpotName,
		WindDirection:            rec.WindDirection,
		WindDirectionPredominant: rec.WindDirectionPredominant,
		WaveDirection:            rec.WaveDirection,
		WaveDirectionPredominant: rec.WaveDirectionPredominant,
		WindSpeed:                rec.WindSpeed,
		WaveHeight:               rec.WaveHeight,
		WavePeriod:               rec.WavePeriod,
		Energy:                   rec.Energy,
		WindStatus:               rec.WindStatus,
		Tide:                     rec.Tide,
		NearestTide:              rec.NearestTide,
		TidePercentage:           rec.TidePercentage,
		WindApproval:             rec.WindApproval,
	}
}

// sortRows orders by (date, time, spot_name), newest first unless ascending.
func sortRows(rows []ForecastRow, ascending bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Date != b.Date {
			return (a.Date < b.Date) == ascending
		}
		if a.Time != b.Time {
			return (a.Time < b.Time) == ascending
		}
		if a.SpotName != b.SpotName {
			return (a.SpotName < b.SpotName) == ascending
		}
		return false
	})
}
