package weather

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

// ServiceConfig holds the providers backing the weather service.
type ServiceConfig struct {
	// Point answers single-location lookups from the API.
	Point Provider

	// City answers the per-city lookups used by heat alert ranking.
	City Provider

	Logger zerolog.Logger
}

// Service wraps the two temperature providers. It holds no state.
type Service struct {
	point  Provider
	city   Provider
	logger zerolog.Logger
}

// NewService creates a new Service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		point:  cfg.Point,
		city:   cfg.City,
		logger: cfg.Logger,
	}
}

// GetPointTemperature returns the current temperature in °C at lat/lon.
// Coordinates are validated before any request is made. A single attempt is
// made; failures wrap ErrUpstream.
func (s *Service) GetPointTemperature(ctx context.Context, lat, lon float64) (float64, error) {
	if err := ValidateCoordinates(lat, lon); err != nil {
		return 0, err
	}

	temp, err := s.point.CurrentTemperature(ctx, lat, lon)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrUpstream, s.point.Name(), err)
	}
	if math.IsNaN(temp) || math.IsInf(temp, 0) {
		return 0, fmt.Errorf("%w: %s returned non-finite temperature", ErrUpstream, s.point.Name())
	}
	return temp, nil
}

// GetCityTemperature is the best-effort lookup used for ranking. Any failure
// is logged and reported as ok=false so one city cannot abort a batch.
func (s *Service) GetCityTemperature(ctx context.Context, lat, lon float64) (float64, bool) {
	temp, err := s.city.CurrentTemperature(ctx, lat, lon)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("provider", s.city.Name()).
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("city temperature unavailable")
		return 0, false
	}
	if math.IsNaN(temp) || math.IsInf(temp, 0) {
		s.logger.Warn().
			Str("provider", s.city.Name()).
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("city temperature not finite")
		return 0, false
	}
	return temp, true
}
