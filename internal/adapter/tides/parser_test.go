package tides

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/couchcryptid/surf-forecast-etl/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tidePage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Mareas Arrecife</title></head>
<body>
<table class="table table-bordered">
  <thead><tr><th>Marea</th><th>Hora</th><th>Altura</th></tr></thead>
  <tbody>
    <tr><td>bajamar</td><td>03:41</td><td>0.62 m</td></tr>
    <tr><td>pleamar</td><td>09:55</td><td>2.31 m</td></tr>
    <tr><td>bajamar</td><td>16:02</td><td>0,70 m</td></tr>
    <tr><td>pleamar</td><td>22:14</td><td></td></tr>
  </tbody>
</table>
<table class="table">
  <tbody><tr><td>pleamar</td><td>01:00</td></tr></tbody>
</table>
<table class="table table-bordered">
  <tbody>
    <tr><td>bajamar</td><td>04:20h</td></tr>
    <tr><td> Pleamar </td><td>10:33h</td></tr>
  </tbody>
</table>
</body>
</html>`

func canary(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Atlantic/Canary")
	require.NoError(t, err)
	return loc
}

func TestParse(t *testing.T) {
	loc := canary(t)
	today := time.Date(2024, time.June, 1, 7, 30, 0, 0, loc)

	events, err := Parse([]byte(tidePage), today)
	require.NoError(t, err)
	require.Len(t, events, 6)

	type want struct {
		at     time.Time
		kind   domain.TideKind
		height *float64
	}
	h := func(v float64) *float64 { return &v }
	wants := []want{
		{time.Date(2024, time.June, 1, 3, 41, 0, 0, loc), domain.TideLow, h(0.62)},
		{time.Date(2024, time.June, 1, 9, 55, 0, 0, loc), domain.TideHigh, h(2.31)},
		{time.Date(2024, time.June, 1, 16, 2, 0, 0, loc), domain.TideLow, h(0.70)},
		{time.Date(2024, time.June, 1, 22, 14, 0, 0, loc), domain.TideHigh, nil},
		{time.Date(2024, time.June, 2, 4, 20, 0, 0, loc), domain.TideLow, nil},
		{time.Date(2024, time.June, 2, 10, 33, 0, 0, loc), domain.TideHigh, nil},
	}
	for i, w := range wants {
		assert.True(t, w.at.Equal(events[i].Datetime), "event %d: want %s, got %s", i, w.at, events[i].Datetime)
		assert.Equal(t, w.kind, events[i].Kind, "event %d", i)
		if w.height == nil {
			assert.Nil(t, events[i].Height, "event %d", i)
		} else {
			require.NotNil(t, events[i].Height, "event %d", i)
			assert.InDelta(t, *w.height, *events[i].Height, 1e-9, "event %d", i)
		}
	}
}

func TestParse_Latin1Page(t *testing.T) {
	// "Vacía" in ISO-8859-1 in an ignored header, declared through a meta tag.
	page := "<html><head><meta http-equiv=\"Content-Type\" content=\"text/html; charset=iso-8859-1\"></head><body>" +
		"<table class=\"table-bordered\"><tr><th>Vac\xeda</th></tr><tr><td>bajamar</td><td>05:00</td></tr></table>" +
		"</body></html>"

	events, err := Parse([]byte(page), time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.TideLow, events[0].Kind)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name, page, wantErr string
	}{
		{
			"kind without time",
			`<table class="table-bordered"><tr><td>pleamar</td><td>--</td></tr></table>`,
			"no time",
		},
		{
			"impossible time",
			`<table class="table-bordered"><tr><td>pleamar</td><td>25:10</td></tr></table>`,
			"invalid time",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.page), time.Now())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestParse_NoTables(t *testing.T) {
	events, err := Parse([]byte(`<html><body><p>mantenimiento</p></body></html>`), time.Now())
	require.NoError(t, err)
	assert.Empty(t, events)
}

// --- Source ---

type stubFetcher struct {
	payload string
	err     error
	url     string
}

func (f *stubFetcher) FetchPayload(_ context.Context, url string) ([]byte, error) {
	f.url = url
	return []byte(f.payload), f.err
}

func TestSource_FetchTides(t *testing.T) {
	loc := canary(t)
	// 23:30 UTC on May 31 is already June 1 in the Canaries during summer time.
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.May, 31, 23, 30, 0, 0, time.UTC))
	f := &stubFetcher{payload: tidePage}

	events, err := NewSource(f, "https://tides.example/arrecife", loc, clock).FetchTides(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "https://tides.example/arrecife", f.url)
	require.NotEmpty(t, events)
	assert.True(t, time.Date(2024, time.June, 1, 3, 41, 0, 0, loc).Equal(events[0].Datetime))
}

type invalidatingFetcher struct {
	stubFetcher
	invalidated []string
}

func (f *invalidatingFetcher) Invalidate(_ context.Context, url string) {
	f.invalidated = append(f.invalidated, url)
}

func TestSource_FetchTides_InvalidatesUnusablePage(t *testing.T) {
	tests := []struct {
		name, payload   string
		wantInvalidated bool
	}{
		{"valid", tidePage, false},
		{"maintenance page", "<html><body>mantenimiento</body></html>", true},
		{"bad row", `<table class="table-bordered"><tr><td>pleamar</td><td>25:10</td></tr></table>`, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := &invalidatingFetcher{stubFetcher: stubFetcher{payload: tc.payload}}
			_, _ = NewSource(f, "https://tides.example/arrecife", time.UTC, clockwork.NewFakeClock()).FetchTides(context.Background())

			if tc.wantInvalidated {
				assert.Equal(t, []string{"https://tides.example/arrecife"}, f.invalidated)
			} else {
				assert.Empty(t, f.invalidated)
			}
		})
	}
}

func TestSource_FetchTides_Errors(t *testing.T) {
	tests := []struct {
		name    string
		fetcher *stubFetcher
		wantErr string
	}{
		{"fetch", &stubFetcher{err: errors.New("upstream error: status 502")}, "502"},
		{"empty page", &stubFetcher{payload: "<html></html>"}, "no events"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSource(tc.fetcher, "u", time.UTC, clockwork.NewFakeClock()).FetchTides(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
