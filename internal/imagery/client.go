// Package imagery proxies LST tile requests to the external imagery service.
package imagery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/i474232898/climate-backend/internal/observability"
)

const (
	// DefaultMargin is the half-width in degrees of the box built around a point.
	DefaultMargin = 0.1

	// DefaultTileSize is the width and height requested for a point lookup.
	DefaultTileSize = 256

	tilePath     = "/get-lst-tile"
	maxErrorBody = 4096
)

// ErrUpstream is returned when the imagery service cannot be reached or
// answers with a non-success status.
var ErrUpstream = errors.New("imagery service failed")

// BoundingBox is a lon/lat rectangle. It encodes as [west, south, east, north].
type BoundingBox struct {
	West  float64
	South float64
	East  float64
	North float64
}

// BoxAround builds the box of ±margin degrees around lat/lng.
func BoxAround(lat, lng, margin float64) BoundingBox {
	return BoundingBox{
		West:  lng - margin,
		South: lat - margin,
		East:  lng + margin,
		North: lat + margin,
	}
}

func (b BoundingBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.West, b.South, b.East, b.North})
}

// TileResponse is the imagery service's answer.
type TileResponse struct {
	URL       string `json:"url"`
	DateRange string `json:"date_range"`
	Units     string `json:"units"`
}

type tileRequest struct {
	BBox   BoundingBox `json:"bbox"`
	Width  int         `json:"width"`
	Height int         `json:"height"`
}

// ClientConfig holds configuration for the imagery client.
type ClientConfig struct {
	// BaseURL is the imagery service root (required).
	BaseURL string

	// HTTPClient is used for requests; its Timeout bounds each call (optional).
	HTTPClient *http.Client

	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

// Client talks to the imagery service. Each request is a single attempt.
type Client struct {
	baseURL    string
	httpClient *http.Client
	circuit    *gobreaker.CircuitBreaker
	metrics    *observability.Metrics
	logger     zerolog.Logger
}

// NewClient creates a new imagery client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "imagery",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
}

// RequestTile asks the imagery service for a tile covering bbox.
func (c *Client) RequestTile(ctx context.Context, bbox BoundingBox, width, height int) (TileResponse, error) {
	resp, err := c.requestTile(ctx, bbox, width, height)
	if err != nil {
		c.count("error")
		c.logger.Warn().Err(err).Msg("imagery request failed")
		return TileResponse{}, err
	}
	c.count("success")
	return resp, nil
}

func (c *Client) requestTile(ctx context.Context, bbox BoundingBox, width, height int) (TileResponse, error) {
	body, err := json.Marshal(tileRequest{BBox: bbox, Width: width, Height: height})
	if err != nil {
		return TileResponse{}, fmt.Errorf("encoding request: %w", err)
	}

	result, err := c.circuit.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tilePath, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: sending request: %v", ErrUpstream, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(detail)))
		}

		var out TileResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("%w: decoding response: %v", ErrUpstream, err)
		}
		return out, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return TileResponse{}, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		return TileResponse{}, err
	}

	return result.(TileResponse), nil
}

func (c *Client) count(outcome string) {
	if c.metrics != nil {
		c.metrics.ImageryRequests.WithLabelValues(outcome).Inc()
	}
}
