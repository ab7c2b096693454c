// Package tiles keeps per-year LST tile configurations, loaded from the JSON
// files written by the external tile generator.
package tiles

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrConfigIO is returned when a year's config file cannot be read.
	ErrConfigIO = errors.New("tile config file unreadable")

	// ErrConfigParse is returned when a year's config file is not a valid tile config.
	ErrConfigParse = errors.New("tile config file malformed")

	// ErrGenerationFailed is returned when the generator could not be run or exited non-zero.
	ErrGenerationFailed = errors.New("tile generation failed")

	// ErrGenerationSucceededButConfigMissing is returned when generation exited
	// cleanly but no loadable config appeared within the retry budget.
	ErrGenerationSucceededButConfigMissing = errors.New("tiles generated but config not found")
)

var validate = validator.New()

// TileConfig is one year's tile configuration. Only the URLs are interpreted;
// the remaining fields are held and returned as-is.
type TileConfig struct {
	LSTTileURL             string `json:"lst_tile_url" validate:"required"`
	AnomalyTileURL         string `json:"anomaly_tile_url" validate:"required"`
	AbsoluteAnomalyTileURL string `json:"absolute_anomaly_tile_url" validate:"required"`

	GeneratedAt       string `json:"generated_at,omitempty"`
	TargetPeriod      string `json:"target_period,omitempty"`
	ClimatologyPeriod string `json:"climatology_period,omitempty"`
	DataSource        string `json:"data_source,omitempty"`
	Description       string `json:"description,omitempty"`
}

// TileURLs is the URL triple served to clients.
type TileURLs struct {
	LSTTileURL             string `json:"lst_tile_url"`
	AnomalyTileURL         string `json:"anomaly_tile_url"`
	AbsoluteAnomalyTileURL string `json:"absolute_anomaly_tile_url"`
}

// URLs returns the config's URL triple.
func (c TileConfig) URLs() TileURLs {
	return TileURLs{
		LSTTileURL:             c.LSTTileURL,
		AnomalyTileURL:         c.AnomalyTileURL,
		AbsoluteAnomalyTileURL: c.AbsoluteAnomalyTileURL,
	}
}

// ParseConfig decodes and validates a config file body.
func ParseConfig(data []byte) (TileConfig, error) {
	var cfg TileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return TileConfig{}, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	if err := validate.Struct(cfg); err != nil {
		return TileConfig{}, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	return cfg, nil
}

const (
	configDir    = "tiles"
	configPrefix = "tile_config_"
	configSuffix = ".json"
)

// ConfigPath returns {base}/tiles/tile_config_{year}.json.
func ConfigPath(base string, year int) string {
	return filepath.Join(base, configDir, configPrefix+strconv.Itoa(year)+configSuffix)
}

// yearFromFileName extracts the year from a tile_config_{year}.json file name.
func yearFromFileName(name string) (int, bool) {
	if !strings.HasPrefix(name, configPrefix) || !strings.HasSuffix(name, configSuffix) {
		return 0, false
	}
	year, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, configPrefix), configSuffix))
	if err != nil {
		return 0, false
	}
	return year, true
}
