package imagery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/climate-backend/internal/observability"
)

func TestBoxAround(t *testing.T) {
	b := BoxAround(33.3, 44.4, DefaultMargin)

	assert.InDelta(t, 44.3, b.West, 1e-9)
	assert.InDelta(t, 33.2, b.South, 1e-9)
	assert.InDelta(t, 44.5, b.East, 1e-9)
	assert.InDelta(t, 33.4, b.North, 1e-9)
}

func TestBoundingBox_MarshalsAsArray(t *testing.T) {
	data, err := json.Marshal(BoundingBox{West: 1, South: 2, East: 3, North: 4})
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2,3,4]`, string(data))
}

func TestRequestTile_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/get-lst-tile", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req struct {
			BBox   []float64 `json:"bbox"`
			Width  int       `json:"width"`
			Height int       `json:"height"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []float64{-0.1, 9.9, 0.1, 10.1}, req.BBox)
		assert.Equal(t, 256, req.Width)
		assert.Equal(t, 256, req.Height)

		_, _ = w.Write([]byte(`{"url":"https://tiles.example/lst.png","date_range":"2025-06-01 to 2025-06-30","units":"°C"}`))
	}))
	defer server.Close()

	m := observability.NewMetricsForTesting()
	c := NewClient(ClientConfig{BaseURL: server.URL + "/", Metrics: m, Logger: zerolog.Nop()})

	resp, err := c.RequestTile(context.Background(), BoundingBox{West: -0.1, South: 9.9, East: 0.1, North: 10.1}, DefaultTileSize, DefaultTileSize)
	require.NoError(t, err)
	assert.Equal(t, TileResponse{URL: "https://tiles.example/lst.png", DateRange: "2025-06-01 to 2025-06-30", Units: "°C"}, resp)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImageryRequests.WithLabelValues("success")))
}

func TestRequestTile_ErrorStatusSurfacesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Earth Engine not initialized"}`))
	}))
	defer server.Close()

	c := NewClient(ClientConfig{BaseURL: server.URL, Logger: zerolog.Nop()})

	_, err := c.RequestTile(context.Background(), BoxAround(0, 0, DefaultMargin), 256, 256)
	require.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "Earth Engine not initialized")
	assert.Contains(t, err.Error(), "500")
}

func TestRequestTile_Unreachable(t *testing.T) {
	c := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1", Logger: zerolog.Nop()})

	_, err := c.RequestTile(context.Background(), BoxAround(0, 0, DefaultMargin), 256, 256)
	require.ErrorIs(t, err, ErrUpstream)
}

func TestRequestTile_BadPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer server.Close()

	c := NewClient(ClientConfig{BaseURL: server.URL, Logger: zerolog.Nop()})

	_, err := c.RequestTile(context.Background(), BoxAround(0, 0, DefaultMargin), 256, 256)
	require.ErrorIs(t, err, ErrUpstream)
}
