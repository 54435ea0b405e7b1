// Command classify runs the forecast normalization offline. It reads a JSON
// array of forecast records, classifies each one with a fixed "today" and
// prints the canonical table as JSON.
//
// Usage:
//
//	go run ./cmd/classify \
//	  -in records.json \
//	  -tides tide_events.json \
//	  -today 2024-06-01T08:00:00Z \
//	  -tz Atlantic/Canary \
//	  -tide-horizon 360h
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/couchcryptid/surf-forecast-etl/internal/domain"
	"github.com/jonboulle/clockwork"
)

type options struct {
	today       time.Time
	loc         *time.Location
	tides       []domain.TideEvent
	tideHorizon time.Duration
	ascending   bool
}

func main() {
	in := flag.String("in", "-", "forecast records JSON file, - for stdin")
	tidesPath := flag.String("tides", "", "optional tide events JSON file")
	today := flag.String("today", "", "reference instant (RFC3339), defaults to now")
	tz := flag.String("tz", "Atlantic/Canary", "IANA zone for date and time columns")
	asc := flag.Bool("asc", false, "sort ascending instead of newest first")
	tideHorizon := flag.Duration("tide-horizon", 360*time.Hour, "extend the tide events this far past the last one")
	flag.Parse()

	opts, err := parseOptions(*today, *tz, *tidesPath, *asc)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}
	opts.tideHorizon = *tideHorizon

	r := os.Stdin
	if *in != "-" {
		f, err := os.Open(*in)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		r = f
	}

	if err := run(r, os.Stdout, opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseOptions(today, tz, tidesPath string, ascending bool) (options, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return options{}, fmt.Errorf("invalid -tz %q: %w", tz, err)
	}
	opts := options{today: time.Now(), loc: loc, ascending: ascending}
	if today != "" {
		t, err := time.Parse(time.RFC3339, today)
		if err != nil {
			return options{}, fmt.Errorf("invalid -today %q: %w", today, err)
		}
		opts.today = t
	}
	if tidesPath != "" {
		data, err := os.ReadFile(tidesPath)
		if err != nil {
			return options{}, err
		}
		if err := json.Unmarshal(data, &opts.tides); err != nil {
			return options{}, fmt.Errorf("decode tide events: %w", err)
		}
	}
	return opts, nil
}

func run(r io.Reader, w io.Writer, opts options) error {
	var records []domain.ForecastRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return fmt.Errorf("decode records: %w", err)
	}

	normOpts := []domain.NormalizerOption{
		domain.WithLocation(opts.loc),
		domain.WithClock(clockwork.NewFakeClockAt(opts.today)),
	}
	if len(opts.tides) > 0 {
		events := domain.ReconstructTideTimeline(opts.tides, opts.tideHorizon)
		normOpts = append(normOpts, domain.WithTides(domain.NewTideTimeline(events)))
	}
	if opts.ascending {
		normOpts = append(normOpts, domain.SortAscending())
	}

	table := domain.NewNormalizer(normOpts...).Normalize(records)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(table)
}
