package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/climate-backend/internal/heatalert"
	"github.com/i474232898/climate-backend/internal/imagery"
	"github.com/i474232898/climate-backend/internal/tiles"
	"github.com/i474232898/climate-backend/internal/weather"
)

var validate = validator.New()

// TemperatureService answers point temperature lookups.
type TemperatureService interface {
	GetPointTemperature(ctx context.Context, lat, lon float64) (float64, error)
}

// TileRequester fetches LST imagery tiles.
type TileRequester interface {
	RequestTile(ctx context.Context, bbox imagery.BoundingBox, width, height int) (imagery.TileResponse, error)
}

// AlertSource serves the current heat alert leaderboard.
type AlertSource interface {
	Snapshot() []heatalert.HeatAlert
}

// TileStore serves per-year tile configs.
type TileStore interface {
	Get(ctx context.Context, year int) (tiles.TileConfig, bool)
	LoadedYears() []int
	TriggerGenerationAndLoad(ctx context.Context, year int) (tiles.TileConfig, error)
}

// Dependencies are the components the routes delegate to.
type Dependencies struct {
	ServiceName string
	Weather     TemperatureService
	Imagery     TileRequester
	HeatAlerts  AlertSource
	Tiles       TileStore

	// Clock stamps temperature responses (optional).
	Clock clockwork.Clock
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Dependencies) {
	h := &handlers{deps: deps}
	if h.deps.Clock == nil {
		h.deps.Clock = clockwork.NewRealClock()
	}

	app.Get("/health", h.health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	climate := app.Group("/climate")
	climate.Get("/current", h.currentTemperature)
	climate.Get("/lst", h.lst)

	heat := app.Group("/heat_alert")
	heat.Get("/", h.heatAlerts)
	heat.Get("/api/heat_alert", h.heatAlerts)

	tileRoutes := app.Group("/tiles")
	tileRoutes.Get("/urls", h.tileURLs)
	tileRoutes.Get("/health", h.tileHealth)
	tileRoutes.Post("/generate", h.generateTiles)
}

type handlers struct {
	deps Dependencies
}

func (h *handlers) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": h.deps.ServiceName,
	})
}

// coordinateQuery holds the lat/lng query parameters.
type coordinateQuery struct {
	Lat float64 `validate:"gte=-90,lte=90"`
	Lng float64 `validate:"gte=-180,lte=180"`
}

func parseCoordinateQuery(c *fiber.Ctx) (coordinateQuery, error) {
	var q coordinateQuery

	lat, err := parseFloatQuery(c, "lat")
	if err != nil {
		return q, err
	}
	lng, err := parseFloatQuery(c, "lng")
	if err != nil {
		return q, err
	}
	q.Lat, q.Lng = lat, lng

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

func parseFloatQuery(c *fiber.Ctx, name string) (float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, fmt.Errorf("%s query parameter is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return v, nil
}

type temperatureResponse struct {
	Temperature float64   `json:"temperature"`
	Unit        string    `json:"unit"`
	Timestamp   time.Time `json:"timestamp"`
}

func (h *handlers) currentTemperature(c *fiber.Ctx) error {
	q, err := parseCoordinateQuery(c)
	if err != nil {
		return newAPIError(fiber.StatusBadRequest, "Invalid coordinates", err)
	}

	temp, err := h.deps.Weather.GetPointTemperature(c.UserContext(), q.Lat, q.Lng)
	if err != nil {
		if errors.Is(err, weather.ErrInvalidCoordinates) {
			return newAPIError(fiber.StatusBadRequest, "Invalid coordinates", err)
		}
		return newAPIError(fiber.StatusInternalServerError, "Failed to fetch temperature", err)
	}

	return c.JSON(temperatureResponse{
		Temperature: temp,
		Unit:        "C",
		Timestamp:   h.deps.Clock.Now().UTC(),
	})
}

func (h *handlers) lst(c *fiber.Ctx) error {
	q, err := parseCoordinateQuery(c)
	if err != nil {
		return newAPIError(fiber.StatusBadRequest, "Invalid coordinates", err)
	}

	bbox := imagery.BoxAround(q.Lat, q.Lng, imagery.DefaultMargin)
	resp, err := h.deps.Imagery.RequestTile(c.UserContext(), bbox, imagery.DefaultTileSize, imagery.DefaultTileSize)
	if err != nil {
		return newAPIError(fiber.StatusInternalServerError, "Failed to fetch LST data", err)
	}
	return c.JSON(resp)
}

func (h *handlers) heatAlerts(c *fiber.Ctx) error {
	return c.JSON(h.deps.HeatAlerts.Snapshot())
}

// tileEnvelope is the status/message/data shape shared by the tile routes.
type tileEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    *tiles.TileURLs `json:"data,omitempty"`
}

func tileSuccess(message string, cfg tiles.TileConfig) tileEnvelope {
	urls := cfg.URLs()
	return tileEnvelope{Status: "success", Message: message, Data: &urls}
}

func tileFailure(message string) tileEnvelope {
	return tileEnvelope{Status: "error", Message: message}
}

func (h *handlers) tileURLs(c *fiber.Ctx) error {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(tileFailure("year query parameter must be an integer"))
	}

	cfg, ok := h.deps.Tiles.Get(c.UserContext(), year)
	if !ok {
		return c.JSON(tileFailure(fmt.Sprintf("Tile config not available yet for year %d", year)))
	}
	return c.JSON(tileSuccess("", cfg))
}

func (h *handlers) tileHealth(c *fiber.Ctx) error {
	years := h.deps.Tiles.LoadedYears()
	if years == nil {
		years = []int{}
	}
	return c.JSON(fiber.Map{
		"status":                   "ok",
		"tile_config_loaded_years": years,
		"endpoints": fiber.Map{
			"get_urls": "/tiles/urls?year={year}",
			"generate": "/tiles/generate",
			"health":   "/tiles/health",
		},
	})
}

type generateRequest struct {
	Year int `json:"year" validate:"required,gt=0"`
}

func (h *handlers) generateTiles(c *fiber.Ctx) error {
	var req generateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(tileFailure("invalid request body: " + err.Error()))
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(tileFailure("invalid request body: " + err.Error()))
	}

	cfg, err := h.deps.Tiles.TriggerGenerationAndLoad(c.UserContext(), req.Year)
	if err != nil {
		if errors.Is(err, tiles.ErrGenerationSucceededButConfigMissing) {
			return c.JSON(tileFailure(fmt.Sprintf("Tiles generated but URLs not found for year %d", req.Year)))
		}
		return c.JSON(tileFailure("Tile generation failed: " + generationDiagnostics(err)))
	}

	return c.JSON(tileSuccess(fmt.Sprintf("Tiles generated for year %d", req.Year), cfg))
}

// generationDiagnostics prefers the generator's own output over the wrapped error.
func generationDiagnostics(err error) string {
	var genErr *tiles.GenerationError
	if errors.As(err, &genErr) {
		if genErr.Output != "" {
			return genErr.Output
		}
		if genErr.Err != nil {
			return genErr.Err.Error()
		}
	}
	return err.Error()
}
