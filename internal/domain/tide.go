package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// TideKind is either high or low water.
type TideKind string

const (
	TideHigh TideKind = "high"
	TideLow  TideKind = "low"
)

// TideInterval is the semidiurnal spacing used to extend a tide series.
const TideInterval = 6*time.Hour + 12*time.Minute + 30*time.Second

// Label returns the display name of the kind: "Llena" for high water and
// "Vacía" for low water.
func (k TideKind) Label() string {
	if k == TideHigh {
		return "Llena"
	}
	return "Vacía"
}

// Opposite returns the other kind.
func (k TideKind) Opposite() TideKind {
	if k == TideHigh {
		return TideLow
	}
	return TideHigh
}

// TideEvent is a single high or low water mark.
type TideEvent struct {
	Datetime time.Time `json:"datetime"`
	Kind     TideKind  `json:"kind"`
	Height   *float64  `json:"height,omitempty"`
}

// SortTideEvents returns a time-ordered copy of events with repeated
// timestamps dropped, keeping the first one seen.
func SortTideEvents(events []TideEvent) []TideEvent {
	sorted := make([]TideEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Datetime.Before(sorted[j].Datetime)
	})

	out := sorted[:0]
	for _, e := range sorted {
		if len(out) > 0 && out[len(out)-1].Datetime.Equal(e.Datetime) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// ReconstructTideTimeline orders and deduplicates the seed events, then
// appends synthetic events every TideInterval after the last one, alternating
// kind, until horizon has elapsed past the last seed.
func ReconstructTideTimeline(events []TideEvent, horizon time.Duration) []TideEvent {
	out := SortTideEvents(events)
	if len(out) == 0 || horizon <= 0 {
		return out
	}

	last := out[len(out)-1]
	end := last.Datetime.Add(horizon)
	kind := last.Kind
	for next := last.Datetime.Add(TideInterval); !next.After(end); next = next.Add(TideInterval) {
		kind = kind.Opposite()
		out = append(out, TideEvent{Datetime: next, Kind: kind})
	}
	return out
}

// TideTimeline answers point-in-time tide questions over a sorted event series.
type TideTimeline struct {
	events []TideEvent
}

// NewTideTimeline sorts and deduplicates events before indexing them.
func NewTideTimeline(events []TideEvent) *TideTimeline {
	return &TideTimeline{events: SortTideEvents(events)}
}

// Events returns the ordered events.
func (tl *TideTimeline) Events() []TideEvent { return tl.events }

// Len returns the number of events.
func (tl *TideTimeline) Len() int { return len(tl.events) }

// search returns the index of the first event at or after t.
func (tl *TideTimeline) search(t time.Time) int {
	return sort.Search(len(tl.events), func(i int) bool {
		return !tl.events[i].Datetime.Before(t)
	})
}

// nearest returns the index of the event closest to t; ties go to the earlier event.
func (tl *TideTimeline) nearest(t time.Time) (int, bool) {
	n := len(tl.events)
	if n == 0 {
		return 0, false
	}
	idx := tl.search(t)
	switch {
	case idx == 0:
		return 0, true
	case idx == n:
		return n - 1, true
	}
	before := t.Sub(tl.events[idx-1].Datetime)
	after := tl.events[idx].Datetime.Sub(t)
	if after < before {
		return idx, true
	}
	return idx - 1, true
}

// NearestLabel returns "Llena" or "Vacía" for the event closest to t, or ""
// when the timeline is empty.
func (tl *TideTimeline) NearestLabel(t time.Time) string {
	i, ok := tl.nearest(t)
	if !ok {
		return ""
	}
	return tl.events[i].Kind.Label()
}

// Percentage interpolates the water level at t between the bracketing low
// (0) and high (100) events. Outside the series the two closest events are
// used and the result is clamped.
func (tl *TideTimeline) Percentage(t time.Time) int {
	n := len(tl.events)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return kindPercentage(tl.events[0].Kind)
	}

	var a, b TideEvent
	switch idx := tl.search(t); {
	case idx == 0:
		a, b = tl.events[0], tl.events[1]
	case idx == n:
		a, b = tl.events[n-2], tl.events[n-1]
	default:
		a, b = tl.events[idx-1], tl.events[idx]
	}

	if a.Kind == b.Kind {
		i, _ := tl.nearest(t)
		return kindPercentage(tl.events[i].Kind)
	}

	high, low := a, b
	if high.Kind != TideHigh {
		high, low = low, high
	}

	span := absDuration(high.Datetime.Sub(low.Datetime))
	if span == 0 {
		return kindPercentage(high.Kind)
	}
	fraction := float64(absDuration(t.Sub(high.Datetime))) / float64(span)
	pct := 100 - int(math.Ceil(fraction*100-1e-9))
	return max(0, min(100, pct))
}

// Status describes the tide at t, e.g. "Subiendo hasta las 14:30" or
// "Llena a las 08:12". Times are rendered in t's location.
func (tl *TideTimeline) Status(t time.Time) string {
	i, ok := tl.nearest(t)
	if !ok {
		return ""
	}
	e := tl.events[i]
	loc := t.Location()

	switch {
	case t.Equal(e.Datetime):
		return fmt.Sprintf("%s a las %s", e.Kind.Label(), e.Datetime.In(loc).Format("15:04"))
	case t.Before(e.Datetime):
		return fmt.Sprintf("%s hasta las %s", movement(e.Kind), e.Datetime.In(loc).Format("15:04"))
	}

	next := e.Datetime.Add(TideInterval)
	if i+1 < len(tl.events) {
		next = tl.events[i+1].Datetime
	}
	return fmt.Sprintf("%s hasta las %s", movement(e.Kind.Opposite()), next.In(loc).Format("15:04"))
}

// movement is the water movement heading towards an event of kind k.
func movement(k TideKind) string {
	if k == TideHigh {
		return "Subiendo"
	}
	return "Bajando"
}

func kindPercentage(k TideKind) int {
	if k == TideHigh {
		return 100
	}
	return 0
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// NearestTideLabel is a one-shot form of TideTimeline.NearestLabel.
func NearestTideLabel(events []TideEvent, t time.Time) string {
	return NewTideTimeline(events).NearestLabel(t)
}

// TidePercentage is a one-shot form of TideTimeline.Percentage.
func TidePercentage(events []TideEvent, t time.Time) int {
	return NewTideTimeline(events).Percentage(t)
}

// TideStatusText is a one-shot form of TideTimeline.Status.
func TideStatusText(events []TideEvent, t time.Time) string {
	return NewTideTimeline(events).Status(t)
}

// TideColumns is the stable column set of every TideTable.
var TideColumns = []string{"date", "time", "tide", "height"}

// TideRow is one tide event rendered for presentation.
type TideRow struct {
	Date   string   `json:"date"`
	Time   string   `json:"time"`
	Tide   string   `json:"tide"`
	Height *float64 `json:"height,omitempty"`
}

// TideTable is the canonical tide output.
type TideTable struct {
	Columns []string  `json:"columns"`
	Rows    []TideRow `json:"rows"`
}

// BuildTideTable renders events in loc, preserving their order.
func BuildTideTable(events []TideEvent, loc *time.Location) TideTable {
	cols := make([]string, len(TideColumns))
	copy(cols, TideColumns)
	table := TideTable{Columns: cols, Rows: make([]TideRow, 0, len(events))}
	for _, e := range events {
		local := e.Datetime.In(loc)
		table.Rows = append(table.Rows, TideRow{
			Date:   local.Format(dateLayout),
			Time:   local.Format(timeLayout),
			Tide:   e.Kind.Label(),
			Height: e.Height,
		})
	}
	return table
}
