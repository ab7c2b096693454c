package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/climate-backend/internal/weather"
)

type AppConfig struct {
	Port              string
	CORSAllowedOrigin string

	// Upstream weather providers.
	OpenMeteoBaseURL   string
	OpenWeatherBaseURL string
	OpenWeatherAPIKey  string

	// HTTPTimeout bounds every outbound HTTP call.
	HTTPTimeout time.Duration

	// ImageryServiceURL is the root of the LST tile service.
	ImageryServiceURL string
	// ImageryTimeout bounds a single tile request.
	ImageryTimeout time.Duration

	// Tile configs live under {TileConfigBasePath}/tiles.
	TileConfigBasePath   string
	TileGeneratorCommand string
	TileGeneratorScript  string
	TileGenerateTimeout  time.Duration
	TileLoadAttempts     int
	TileLoadRetryDelay   time.Duration

	// Heat alert refresh.
	HeatAlertInterval     time.Duration
	HeatAlertFetchTimeout time.Duration
	HeatAlertLocations    []weather.Location

	LogLevel  string
	LogFormat string
}

// Load reads configuration from a .env file (if present) and the environment,
// applying defaults where unset.
func Load() (*AppConfig, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg := &AppConfig{
		Port:                 getenvDefault("PORT", "3000"),
		CORSAllowedOrigin:    getenvDefault("CORS_ALLOWED_ORIGIN", "http://localhost:8080"),
		OpenMeteoBaseURL:     os.Getenv("OPENMETEO_BASE_URL"),
		OpenWeatherBaseURL:   os.Getenv("OPENWEATHER_BASE_URL"),
		OpenWeatherAPIKey:    os.Getenv("OPENWEATHER_API_KEY"),
		ImageryServiceURL:    getenvDefault("IMAGERY_SERVICE_URL", "http://localhost:8080"),
		TileConfigBasePath:   getenvDefault("TILE_CONFIG_BASE_PATH", "."),
		TileGeneratorCommand: getenvDefault("TILE_GENERATOR_COMMAND", "python"),
		TileGeneratorScript:  getenvDefault("TILE_GENERATOR_SCRIPT", "scripts/gee_rust.py"),
		TileLoadAttempts:     getenvInt("TILE_LOAD_ATTEMPTS", 3),
		LogLevel:             getenvDefault("LOG_LEVEL", "info"),
		LogFormat:            getenvDefault("LOG_FORMAT", "json"),
	}

	durations := []struct {
		key  string
		def  string
		dest *time.Duration
	}{
		{"HTTP_TIMEOUT", "10s", &cfg.HTTPTimeout},
		{"IMAGERY_TIMEOUT", "60s", &cfg.ImageryTimeout},
		{"TILE_GENERATE_TIMEOUT", "10m", &cfg.TileGenerateTimeout},
		{"TILE_LOAD_RETRY_DELAY", "500ms", &cfg.TileLoadRetryDelay},
		{"HEAT_ALERT_INTERVAL", "6h", &cfg.HeatAlertInterval},
		{"HEAT_ALERT_FETCH_TIMEOUT", "30s", &cfg.HeatAlertFetchTimeout},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getenvDefault(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("invalid %s: must be positive", d.key)
		}
		*d.dest = v
	}

	if cfg.TileLoadAttempts <= 0 {
		return nil, fmt.Errorf("invalid TILE_LOAD_ATTEMPTS: must be positive")
	}

	locs, err := parseLocations(os.Getenv("HEAT_ALERT_CITIES"))
	if err != nil {
		return nil, err
	}
	cfg.HeatAlertLocations = locs

	return cfg, nil
}

// parseLocations reads "Name|lat|lon;Name|lat|lon". An empty value yields the
// default monitored cities.
func parseLocations(raw string) ([]weather.Location, error) {
	if strings.TrimSpace(raw) == "" {
		locs := make([]weather.Location, len(weather.DefaultLocations))
		copy(locs, weather.DefaultLocations)
		return locs, nil
	}

	var locs []weather.Location
	for _, item := range strings.Split(raw, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, "|")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid HEAT_ALERT_CITIES entry %q: want name|lat|lon", item)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude in HEAT_ALERT_CITIES entry %q: %w", item, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude in HEAT_ALERT_CITIES entry %q: %w", item, err)
		}
		if err := weather.ValidateCoordinates(lat, lon); err != nil {
			return nil, fmt.Errorf("HEAT_ALERT_CITIES entry %q: %w", item, err)
		}
		locs = append(locs, weather.Location{Name: strings.TrimSpace(parts[0]), Lat: lat, Lon: lon})
	}

	if len(locs) == 0 {
		return nil, fmt.Errorf("HEAT_ALERT_CITIES contains no locations")
	}
	return locs, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
