package heatalert

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/climate-backend/internal/weather"
)

const defaultConcurrency = 4

// CitySource is the best-effort per-city temperature lookup.
type CitySource interface {
	GetCityTemperature(ctx context.Context, lat, lon float64) (float64, bool)
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	Source CitySource

	// Concurrency bounds in-flight city lookups (default: 4).
	Concurrency int

	Logger zerolog.Logger
}

// Engine computes the heat alert leaderboard.
type Engine struct {
	source      CitySource
	concurrency int
	logger      zerolog.Logger
}

// NewEngine creates a new Engine.
func NewEngine(cfg EngineConfig) *Engine {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Engine{
		source:      cfg.Source,
		concurrency: concurrency,
		logger:      cfg.Logger,
	}
}

// ComputeTopAlerts fetches every location, drops those without a finite
// reading, and returns at most TopN alerts ordered by descending temperature.
// Ties keep the order of locations. All alerts share the rendering of now.
func (e *Engine) ComputeTopAlerts(ctx context.Context, locations []weather.Location, now time.Time) []HeatAlert {
	readings := e.fetchAll(ctx, locations, now)

	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Value > readings[j].Value
	})

	if len(readings) > TopN {
		readings = readings[:TopN]
	}

	stamp := FormatTimestamp(now)
	alerts := make([]HeatAlert, 0, len(readings))
	for _, r := range readings {
		alerts = append(alerts, HeatAlert{
			City:        r.Location.Name,
			Temperature: r.Value,
			Severity:    Classify(r.Value),
			TimeAgo:     stamp,
		})
	}

	return alerts
}

// fetchAll returns the usable readings in location order.
func (e *Engine) fetchAll(ctx context.Context, locations []weather.Location, now time.Time) []weather.TemperatureReading {
	type slot struct {
		value float64
		ok    bool
	}
	slots := make([]slot, len(locations))

	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for i, loc := range locations {
		g.Go(func() error {
			temp, ok := e.source.GetCityTemperature(ctx, loc.Lat, loc.Lon)
			slots[i] = slot{value: temp, ok: ok}
			return nil
		})
	}
	_ = g.Wait()

	readings := make([]weather.TemperatureReading, 0, len(locations))
	for i, s := range slots {
		if !s.ok {
			continue
		}
		if math.IsNaN(s.value) || math.IsInf(s.value, 0) {
			e.logger.Warn().
				Str("city", locations[i].Name).
				Msg("dropping non-finite temperature")
			continue
		}
		readings = append(readings, weather.TemperatureReading{
			Location:   locations[i],
			Value:      s.value,
			ObservedAt: now,
		})
	}

	return readings
}
