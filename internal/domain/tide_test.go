package domain

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tideBase = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return tideBase.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

// seedTides is a realistic scraped day: low 03:00, high 09:10, low 15:20, high 21:30.
func seedTides() []TideEvent {
	return []TideEvent{
		{Datetime: at(3, 0), Kind: TideLow},
		{Datetime: at(9, 10), Kind: TideHigh},
		{Datetime: at(15, 20), Kind: TideLow},
		{Datetime: at(21, 30), Kind: TideHigh},
	}
}

func TestSortTideEvents(t *testing.T) {
	height := 2.1
	events := []TideEvent{
		{Datetime: at(15, 20), Kind: TideLow},
		{Datetime: at(9, 10), Kind: TideHigh, Height: &height},
		{Datetime: at(9, 10), Kind: TideLow},
		{Datetime: at(3, 0), Kind: TideLow},
	}

	got := SortTideEvents(events)

	require.Len(t, got, 3)
	assert.Equal(t, at(3, 0), got[0].Datetime)
	assert.Equal(t, TideHigh, got[1].Kind, "first event seen wins on duplicate timestamps")
	assert.Equal(t, &height, got[1].Height)
	assert.Equal(t, at(15, 20), got[2].Datetime)
	assert.Equal(t, at(15, 20), events[0].Datetime, "input is not mutated")
}

func TestReconstructTideTimeline(t *testing.T) {
	seeds := seedTides()
	horizon := 15 * 24 * time.Hour

	got := ReconstructTideTimeline(seeds, horizon)

	require.Greater(t, len(got), len(seeds))
	assert.Equal(t, seeds, got[:len(seeds)])

	last := seeds[len(seeds)-1]
	for i := len(seeds); i < len(got); i++ {
		assert.NotEqual(t, got[i-1].Kind, got[i].Kind, "kinds alternate at %d", i)
		assert.Equal(t, TideInterval, got[i].Datetime.Sub(got[i-1].Datetime), "spacing at %d", i)
		assert.False(t, got[i].Datetime.After(last.Datetime.Add(horizon)))
	}
	assert.True(t, got[len(got)-1].Datetime.Add(TideInterval).After(last.Datetime.Add(horizon)))
}

func TestReconstructTideTimeline_Deterministic(t *testing.T) {
	seeds := seedTides()
	first := ReconstructTideTimeline(seeds, 48*time.Hour)
	second := ReconstructTideTimeline(seeds, 48*time.Hour)
	assert.Equal(t, first, second)
}

func TestReconstructTideTimeline_Empty(t *testing.T) {
	assert.Empty(t, ReconstructTideTimeline(nil, 48*time.Hour))
}

func TestReconstructTideTimeline_UnorderedSeeds(t *testing.T) {
	seeds := seedTides()
	shuffled := []TideEvent{seeds[2], seeds[0], seeds[3], seeds[1]}

	got := ReconstructTideTimeline(shuffled, 24*time.Hour)

	assert.Equal(t, ReconstructTideTimeline(seeds, 24*time.Hour), got)
}

func TestNearestTideLabel(t *testing.T) {
	events := seedTides()

	assert.Equal(t, "Vacía", NearestTideLabel(events, at(1, 0)))
	assert.Equal(t, "Llena", NearestTideLabel(events, at(8, 0)))
	assert.Equal(t, "Llena", NearestTideLabel(events, at(9, 10)))
	assert.Equal(t, "Vacía", NearestTideLabel(events, at(13, 0)))
	assert.Equal(t, "Llena", NearestTideLabel(events, at(23, 59)))
	assert.Equal(t, "", NearestTideLabel(nil, at(8, 0)))
}

func TestTidePercentage(t *testing.T) {
	events := seedTides()

	t.Run("exact high is 100", func(t *testing.T) {
		assert.Equal(t, 100, TidePercentage(events, at(9, 10)))
		assert.Equal(t, 100, TidePercentage(events, at(21, 30)))
	})

	t.Run("exact low is 0", func(t *testing.T) {
		assert.Equal(t, 0, TidePercentage(events, at(3, 0)))
		assert.Equal(t, 0, TidePercentage(events, at(15, 20)))
	})

	t.Run("half way is 50", func(t *testing.T) {
		assert.Equal(t, 50, TidePercentage(events, at(6, 5)))
		assert.Equal(t, 50, TidePercentage(events, at(12, 15)))
	})

	t.Run("rising then falling", func(t *testing.T) {
		rising := TidePercentage(events, at(7, 0))
		falling := TidePercentage(events, at(11, 0))
		assert.Greater(t, rising, 50)
		assert.Greater(t, falling, 50)
		assert.Less(t, TidePercentage(events, at(14, 0)), falling)
	})

	t.Run("clamped outside the series", func(t *testing.T) {
		for _, ts := range []time.Time{tideBase.Add(-12 * time.Hour), at(30, 0)} {
			p := TidePercentage(events, ts)
			assert.GreaterOrEqual(t, p, 0)
			assert.LessOrEqual(t, p, 100)
		}
	})

	t.Run("no events", func(t *testing.T) {
		assert.Equal(t, 0, TidePercentage(nil, at(9, 0)))
	})

	t.Run("single event", func(t *testing.T) {
		assert.Equal(t, 100, TidePercentage([]TideEvent{{Datetime: at(9, 0), Kind: TideHigh}}, at(12, 0)))
	})

	t.Run("neighbours of the same kind", func(t *testing.T) {
		broken := []TideEvent{
			{Datetime: at(3, 0), Kind: TideLow},
			{Datetime: at(9, 0), Kind: TideLow},
		}
		assert.Equal(t, 0, TidePercentage(broken, at(5, 0)))
	})
}

func TestTidePercentage_WithinBounds(t *testing.T) {
	tl := NewTideTimeline(ReconstructTideTimeline(seedTides(), 72*time.Hour))
	for ts := tideBase; ts.Before(tideBase.Add(72 * time.Hour)); ts = ts.Add(17 * time.Minute) {
		p := tl.Percentage(ts)
		require.GreaterOrEqual(t, p, 0, ts)
		require.LessOrEqual(t, p, 100, ts)
	}
}

func TestTideStatusText(t *testing.T) {
	events := seedTides()

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"exactly at high", at(9, 10), "Llena a las 09:10"},
		{"exactly at low", at(15, 20), "Vacía a las 15:20"},
		{"before high", at(8, 0), "Subiendo hasta las 09:10"},
		{"after high", at(10, 0), "Bajando hasta las 15:20"},
		{"before low", at(14, 0), "Bajando hasta las 15:20"},
		{"after low", at(16, 0), "Subiendo hasta las 21:30"},
		{"after last high", at(22, 0), "Bajando hasta las 03:42"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TideStatusText(events, tc.at))
		})
	}
}

func TestTideStatusText_RendersInCallerLocation(t *testing.T) {
	canary, err := time.LoadLocation("Atlantic/Canary")
	require.NoError(t, err)

	// 19 Oct 2026 Canary is on WEST (UTC+1).
	got := TideStatusText(seedTides(), at(8, 0).In(canary))
	assert.Equal(t, "Subiendo hasta las 10:10", got)
}

func TestBuildTideTable(t *testing.T) {
	height := 2.4
	events := []TideEvent{{Datetime: at(9, 10), Kind: TideHigh, Height: &height}, {Datetime: at(15, 20), Kind: TideLow}}

	table := BuildTideTable(events, time.UTC)

	assert.Equal(t, TideColumns, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, TideRow{Date: "2026-10-19", Time: "09:10", Tide: "Llena", Height: &height}, table.Rows[0])
	assert.Equal(t, "Vacía", table.Rows[1].Tide)
	assert.Nil(t, table.Rows[1].Height)
}
