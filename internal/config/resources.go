package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/couchcryptid/surf-forecast-etl/internal/domain"
	"github.com/spf13/viper"
)

// Source fetch modes.
const (
	ModeParallel = "parallel"
	ModeSession  = "session"
)

// Source is one upstream site and the pages to fetch from it. LandingURL is
// visited once when a session opens.
type Source struct {
	Name       string       `mapstructure:"name"`
	Mode       string       `mapstructure:"mode"`
	LandingURL string       `mapstructure:"landing_url"`
	Tasks      []SourceTask `mapstructure:"tasks"`
}

// SourceTask is a single page of a source.
type SourceTask struct {
	Spot string `mapstructure:"spot"`
	URL  string `mapstructure:"url"`
}

// FetchTasks returns the source's pages as domain fetch tasks.
func (s Source) FetchTasks() []domain.FetchTask {
	tasks := make([]domain.FetchTask, len(s.Tasks))
	for i, t := range s.Tasks {
		tasks[i] = domain.FetchTask{Source: s.Name, Spot: t.Spot, URL: t.URL}
	}
	return tasks
}

// spotEntry mirrors one entry of the spots file.
type spotEntry struct {
	SpotName      []string `mapstructure:"spot_name"`
	WindDirection []string `mapstructure:"wind_direction"`
	WaveDirection []string `mapstructure:"wave_direction"`
	WavePeriod    float64  `mapstructure:"wave_period"`
	WaveHeight    float64  `mapstructure:"wave_height"`
	Energy        float64  `mapstructure:"energy"`
	ThreeNearDays bool     `mapstructure:"three_near_days"`
}

func readFile(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return v, nil
}

// LoadSpotConditions reads the alert conditions file, an object keyed by spot
// name. Conditions are returned sorted by name.
func LoadSpotConditions(path string) ([]domain.SpotConditionSet, error) {
	v, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var entries map[string]spotEntry
	if err := v.Unmarshal(&entries); err != nil {
		return nil, fmt.Errorf("decode spot conditions: %w", err)
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]domain.SpotConditionSet, 0, len(names))
	for _, name := range names {
		e := entries[name]
		aliases := e.SpotName
		if len(aliases) == 0 {
			aliases = []string{name}
		}
		out = append(out, domain.SpotConditionSet{
			Name:           name,
			SpotNames:      aliases,
			WindDirections: e.WindDirection,
			WaveDirections: e.WaveDirection,
			MinWavePeriod:  e.WavePeriod,
			MinWaveHeight:  e.WaveHeight,
			MinEnergy:      e.Energy,
			ThreeNearDays:  e.ThreeNearDays,
		})
	}
	return out, nil
}

// LoadSources reads the source catalogue, a "sources" list of
// {name, mode, tasks}.
func LoadSources(path string) ([]Source, error) {
	v, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var sources []Source
	if err := v.UnmarshalKey("sources", &sources); err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}
	if len(sources) == 0 {
		return nil, errors.New("no sources configured")
	}

	for i := range sources {
		s := &sources[i]
		if s.Name == "" {
			return nil, fmt.Errorf("source %d: name is required", i)
		}
		if s.Mode == "" {
			s.Mode = ModeParallel
		}
		if s.Mode != ModeParallel && s.Mode != ModeSession {
			return nil, fmt.Errorf("source %s: invalid mode %q", s.Name, s.Mode)
		}
		for j, t := range s.Tasks {
			if t.URL == "" {
				return nil, fmt.Errorf("source %s: task %d has no url", s.Name, j)
			}
		}
	}
	return sources, nil
}
