package weather

import (
	"context"
)

// Provider abstracts a current-temperature source (e.g. Open-Meteo, OpenWeatherMap).
type Provider interface {
	Name() string
	CurrentTemperature(ctx context.Context, lat, lon float64) (float64, error)
}
