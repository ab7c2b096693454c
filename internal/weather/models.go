package weather

import (
	"errors"
	"time"
)

var (
	// ErrInvalidCoordinates is returned when latitude or longitude is out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")

	// ErrUpstream is returned when a temperature provider is unreachable,
	// answers with a non-success status, or sends an unusable payload.
	ErrUpstream = errors.New("upstream temperature provider failed")
)

// Location is a monitored place. Coordinates are in decimal degrees.
type Location struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// TemperatureReading is a single current-temperature observation in °C.
type TemperatureReading struct {
	Location   Location  `json:"location"`
	Value      float64   `json:"value"`
	ObservedAt time.Time `json:"observedAt"`
}

// ValidateCoordinates checks lat ∈ [-90,90] and lon ∈ [-180,180]. NaN is
// outside every range.
func ValidateCoordinates(lat, lon float64) error {
	if !(lat >= -90 && lat <= 90) || !(lon >= -180 && lon <= 180) {
		return ErrInvalidCoordinates
	}
	return nil
}
