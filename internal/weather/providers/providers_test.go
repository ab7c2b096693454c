package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() *http.Client {
	return &http.Client{Timeout: 2 * time.Second}
}

func TestOpenMeteo_CurrentTemperature(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "33.4484", r.URL.Query().Get("latitude"))
		assert.Equal(t, "-112.074", r.URL.Query().Get("longitude"))
		assert.Equal(t, "true", r.URL.Query().Get("current_weather"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current_weather":{"temperature":41.3,"windspeed":3.2}}`))
	}))
	defer server.Close()

	p := NewOpenMeteoProvider(newTestClient(), server.URL)

	temp, err := p.CurrentTemperature(context.Background(), 33.4484, -112.0740)
	require.NoError(t, err)
	assert.Equal(t, 41.3, temp)
	assert.Equal(t, "openmeteo", p.Name())
}

func TestOpenMeteo_MissingTemperature(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"current_weather":{}}`))
	}))
	defer server.Close()

	p := NewOpenMeteoProvider(newTestClient(), server.URL)

	_, err := p.CurrentTemperature(context.Background(), 1, 1)
	require.Error(t, err)
}

func TestOpenMeteo_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	p := NewOpenMeteoProvider(newTestClient(), server.URL)

	_, err := p.CurrentTemperature(context.Background(), 1, 1)
	require.Error(t, err)
}

func TestOpenWeather_CurrentTemperature(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "31.5204", r.URL.Query().Get("lat"))
		assert.Equal(t, "74.3587", r.URL.Query().Get("lon"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		assert.Equal(t, "****", r.URL.Query().Get("appid"))

		_, _ = w.Write([]byte(`{"main":{"temp":46.1,"humidity":12},"name":"Lahore"}`))
	}))
	defer server.Close()

	p := NewOpenWeatherProvider(newTestClient(), server.URL, "****")

	temp, err := p.CurrentTemperature(context.Background(), 31.5204, 74.3587)
	require.NoError(t, err)
	assert.Equal(t, 46.1, temp)
}

func TestOpenWeather_RequiresAPIKey(t *testing.T) {
	p := NewOpenWeatherProvider(newTestClient(), "http://127.0.0.1:1", "")

	_, err := p.CurrentTemperature(context.Background(), 1, 1)
	require.Error(t, err)
}

func TestOpenWeather_StatusErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, errUnexpected},
		{"rate limited", http.StatusTooManyRequests, errRateLimited},
		{"server error", http.StatusBadGateway, errServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			p := NewOpenWeatherProvider(newTestClient(), server.URL, "****")

			_, err := p.CurrentTemperature(context.Background(), 1, 1)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCircuitBreakerOpensAfterRepeatedFailures(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewOpenMeteoProvider(newTestClient(), server.URL)

	for i := 0; i < 5; i++ {
		_, err := p.CurrentTemperature(context.Background(), 1, 1)
		require.ErrorIs(t, err, errServerError)
	}

	_, err := p.CurrentTemperature(context.Background(), 1, 1)
	require.ErrorIs(t, err, errCircuitOpen)
	assert.Equal(t, 5, calls)
}

func TestDoRequest_NoClient(t *testing.T) {
	p := NewOpenMeteoProvider(nil, "http://example.invalid")

	_, err := p.CurrentTemperature(context.Background(), 1, 1)
	require.ErrorIs(t, err, errNoHTTPClient)
}
