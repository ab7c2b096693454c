package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	httpapi "github.com/i474232898/climate-backend/internal/api/http"
	"github.com/i474232898/climate-backend/internal/common"
	"github.com/i474232898/climate-backend/internal/config"
	"github.com/i474232898/climate-backend/internal/heatalert"
	"github.com/i474232898/climate-backend/internal/imagery"
	"github.com/i474232898/climate-backend/internal/observability"
	"github.com/i474232898/climate-backend/internal/scheduler"
	"github.com/i474232898/climate-backend/internal/tiles"
	"github.com/i474232898/climate-backend/internal/weather"
	"github.com/i474232898/climate-backend/internal/weather/providers"
)

const serviceName = "climate-backend"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger := common.NewLogger(serviceName, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	if cfg.OpenWeatherAPIKey == "" {
		logger.Warn().Msg("OPENWEATHER_API_KEY is not set; heat alert lookups will fail")
	}

	service := weather.NewService(weather.ServiceConfig{
		Point:  providers.NewOpenMeteoProvider(httpClient, cfg.OpenMeteoBaseURL),
		City:   providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherBaseURL, cfg.OpenWeatherAPIKey),
		Logger: logger.With().Str("component", "weather").Logger(),
	})

	// Heat alert leaderboard, refreshed in the background.
	cache := heatalert.NewCache()
	engine := heatalert.NewEngine(heatalert.EngineConfig{
		Source: service,
		Logger: logger.With().Str("component", "heatalert").Logger(),
	})
	sched := scheduler.New(scheduler.Config{
		Locations:    cfg.HeatAlertLocations,
		Interval:     cfg.HeatAlertInterval,
		FetchTimeout: cfg.HeatAlertFetchTimeout,
		Ranker:       engine,
		Cache:        cache,
		Clock:        clock,
		Metrics:      metrics,
		Logger:       logger.With().Str("component", "scheduler").Logger(),
	})
	if err := sched.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	// Tile configs, preloaded from disk and generated on demand.
	tileStore := tiles.NewStore(tiles.StoreConfig{
		BasePath: cfg.TileConfigBasePath,
		Generator: tiles.NewScriptGenerator(tiles.ScriptGeneratorConfig{
			Command: cfg.TileGeneratorCommand,
			Script:  cfg.TileGeneratorScript,
			Dir:     cfg.TileConfigBasePath,
			Timeout: cfg.TileGenerateTimeout,
			Logger:  logger.With().Str("component", "tilegen").Logger(),
		}),
		LoadAttempts: cfg.TileLoadAttempts,
		RetryDelay:   cfg.TileLoadRetryDelay,
		Metrics:      metrics,
		Logger:       logger.With().Str("component", "tiles").Logger(),
	})
	years, err := tileStore.Preload(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("tile config preload failed")
	}
	logger.Info().Ints("years", years).Msg("tile configs preloaded")

	imageryClient := imagery.NewClient(imagery.ClientConfig{
		BaseURL:    cfg.ImageryServiceURL,
		HTTPClient: &http.Client{Timeout: cfg.ImageryTimeout},
		Metrics:    metrics,
		Logger:     logger.With().Str("component", "imagery").Logger(),
	})

	app := httpapi.NewApp(httpapi.AppConfig{
		Name:              serviceName,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		ReadTimeout:       10 * time.Second,
		Logger:            logger.With().Str("component", "http").Logger(),
	})
	httpapi.RegisterRoutes(app, httpapi.Dependencies{
		ServiceName: serviceName,
		Weather:     service,
		Imagery:     imageryClient,
		HeatAlerts:  cache,
		Tiles:       tileStore,
		Clock:       clock,
	})

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server listening")
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error().Err(err).Msg("fiber server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
	}
}
