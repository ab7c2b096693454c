package tiles

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/i474232898/climate-backend/internal/common"
	"github.com/i474232898/climate-backend/internal/observability"
	"github.com/i474232898/climate-backend/internal/store"
)

const maxDiagnosticBytes = 2048

// StoreConfig configures a Store.
type StoreConfig struct {
	// BasePath is the directory holding tiles/tile_config_{year}.json.
	BasePath string

	// Generator produces missing config files on demand (optional).
	Generator Generator

	// LoadAttempts is how many times a config is looked for after a
	// successful generation (default: 3).
	LoadAttempts int

	// RetryDelay is the pause between those attempts (default: 500ms).
	RetryDelay time.Duration

	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

// Store is a read-through cache of tile configs keyed by year. The in-memory
// map is a projection of the files on disk; entries are never evicted and a
// failed load never overwrites an existing entry.
type Store struct {
	basePath     string
	configs      *store.Map[int, TileConfig]
	loads        singleflight.Group
	generator    Generator
	loadAttempts int
	retryDelay   time.Duration
	metrics      *observability.Metrics
	logger       zerolog.Logger
}

// NewStore creates a new Store.
func NewStore(cfg StoreConfig) *Store {
	attempts := cfg.LoadAttempts
	if attempts <= 0 {
		attempts = 3
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return &Store{
		basePath:     cfg.BasePath,
		configs:      store.NewMap[int, TileConfig](),
		generator:    cfg.Generator,
		loadAttempts: attempts,
		retryDelay:   delay,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}
}

// Get returns the config for year, loading it from disk on a miss. A year
// whose file is missing or malformed is reported as absent.
func (s *Store) Get(ctx context.Context, year int) (TileConfig, bool) {
	if cfg, err := s.configs.Get(year); err == nil {
		s.countLookup("hit")
		return cfg, true
	}

	if err := s.Load(ctx, year); err != nil {
		s.countLookup("unavailable")
		s.logger.Debug().Err(err).Int("year", year).Msg("tile config not available")
		return TileConfig{}, false
	}

	cfg, err := s.configs.Get(year)
	if err != nil {
		s.countLookup("unavailable")
		return TileConfig{}, false
	}
	s.countLookup("miss")
	return cfg, true
}

// Load reads and parses the config file for year and stores it. Concurrent
// loads of the same year share one read.
func (s *Store) Load(ctx context.Context, year int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err, _ := s.loads.Do(strconv.Itoa(year), func() (interface{}, error) {
		path := ConfigPath(s.basePath, year)
		s.logger.Debug().Str("path", path).Msg("loading tile config")

		data, err := os.ReadFile(path)
		if err != nil {
			s.countLoad("io_error")
			return nil, fmt.Errorf("%w: %v", ErrConfigIO, err)
		}

		cfg, err := ParseConfig(data)
		if err != nil {
			s.countLoad("parse_error")
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		s.configs.Put(year, cfg)
		s.countLoad("success")
		return nil, nil
	})
	return err
}

// LoadedYears lists the years currently held in memory, ascending.
func (s *Store) LoadedYears() []int {
	return s.configs.Keys()
}

// Preload loads every tile_config_{year}.json found under the base path and
// returns the years that loaded. A missing directory is not an error.
func (s *Store) Preload(ctx context.Context) ([]int, error) {
	dir := filepath.Join(s.basePath, configDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Info().Str("dir", dir).Msg("no tile config directory; nothing to preload")
			return nil, nil
		}
		return nil, fmt.Errorf("reading tile config directory: %w", err)
	}

	var loaded []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		year, ok := yearFromFileName(entry.Name())
		if !ok {
			continue
		}
		if err := s.Load(ctx, year); err != nil {
			s.logger.Warn().Err(err).Str("file", entry.Name()).Msg("failed to preload tile config")
			continue
		}
		s.logger.Info().Int("year", year).Msg("preloaded tile config")
		loaded = append(loaded, year)
	}
	s.logger.Info().Int("loaded", len(loaded)).Int("held", s.configs.Len()).Msg("tile config preload finished")
	return loaded, nil
}

// TriggerGenerationAndLoad runs the generator for year and then looks for the
// resulting config, retrying with a fixed delay because the file may land
// shortly after the generator exits. Nothing is loaded if generation fails.
func (s *Store) TriggerGenerationAndLoad(ctx context.Context, year int) (TileConfig, error) {
	if s.generator == nil {
		s.countGeneration("failed")
		return TileConfig{}, &GenerationError{Year: year, Err: errors.New("no generator configured")}
	}

	res, err := s.generator.Generate(ctx, year)
	if err != nil {
		s.countGeneration("failed")
		genErr := &GenerationError{
			Year:   year,
			Output: common.TrimOutput(common.FirstNonEmpty(res.Stderr, res.Stdout), maxDiagnosticBytes),
			Err:    err,
		}
		s.logger.Error().Err(genErr).Int("year", year).Msg("tile generation failed")
		return TileConfig{}, genErr
	}

	var cfg TileConfig
	operation := func() error {
		if err := s.Load(ctx, year); err != nil {
			return err
		}
		c, err := s.configs.Get(year)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.retryDelay), uint64(s.loadAttempts-1)),
		ctx,
	)
	notify := func(err error, next time.Duration) {
		s.logger.Debug().Err(err).Int("year", year).Dur("retry_in", next).Msg("generated tile config not loadable yet")
	}

	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.countGeneration("cancelled")
			return TileConfig{}, ctxErr
		}
		s.countGeneration("config_missing")
		s.logger.Warn().Err(err).Int("year", year).Msg("tiles generated but config could not be loaded")
		return TileConfig{}, fmt.Errorf("%w for year %d: %v", ErrGenerationSucceededButConfigMissing, year, err)
	}

	s.countGeneration("success")
	s.logger.Info().Int("year", year).Msg("tiles generated and config loaded")
	return cfg, nil
}

func (s *Store) countLookup(result string) {
	if s.metrics != nil {
		s.metrics.TileConfigLookups.WithLabelValues(result).Inc()
	}
}

func (s *Store) countLoad(outcome string) {
	if s.metrics != nil {
		s.metrics.TileConfigLoads.WithLabelValues(outcome).Inc()
	}
}

func (s *Store) countGeneration(outcome string) {
	if s.metrics != nil {
		s.metrics.TileGenerations.WithLabelValues(outcome).Inc()
	}
}
