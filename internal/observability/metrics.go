package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the heat alert refresh loop,
// the tile config store, and outbound upstream calls.
type Metrics struct {
	// Heat alert refresh.
	HeatAlertRuns         *prometheus.CounterVec // labels: outcome={success,empty,panic,skipped}
	HeatAlertRunDuration  prometheus.Histogram
	HeatAlertCitiesPolled prometheus.Gauge
	HeatAlertCitiesRanked prometheus.Gauge

	// Tile config store.
	TileConfigLookups *prometheus.CounterVec // labels: result={hit,miss,unavailable}
	TileConfigLoads   *prometheus.CounterVec // labels: outcome={success,io_error,parse_error}
	TileGenerations   *prometheus.CounterVec // labels: outcome={success,failed,config_missing,cancelled}

	// Imagery proxy.
	ImageryRequests *prometheus.CounterVec // labels: outcome={success,error}
}

func newMetrics() *Metrics {
	return &Metrics{
		HeatAlertRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climate",
			Name:      "heat_alert_runs_total",
			Help:      "Heat alert refresh runs by outcome.",
		}, []string{"outcome"}),
		HeatAlertRunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "climate",
			Name:      "heat_alert_run_duration_seconds",
			Help:      "Duration of a complete heat alert refresh.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		HeatAlertCitiesPolled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "climate",
			Name:      "heat_alert_cities_polled",
			Help:      "Monitored cities polled in the last refresh.",
		}),
		HeatAlertCitiesRanked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "climate",
			Name:      "heat_alert_cities_ranked",
			Help:      "Alerts held in the cache after the last refresh.",
		}),
		TileConfigLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climate",
			Name:      "tile_config_lookups_total",
			Help:      "Tile config lookups by result.",
		}, []string{"result"}),
		TileConfigLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climate",
			Name:      "tile_config_loads_total",
			Help:      "Tile config file loads by outcome.",
		}, []string{"outcome"}),
		TileGenerations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climate",
			Name:      "tile_generations_total",
			Help:      "Tile generation runs by outcome.",
		}, []string{"outcome"}),
		ImageryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climate",
			Name:      "imagery_requests_total",
			Help:      "Imagery service requests by outcome.",
		}, []string{"outcome"}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.HeatAlertRuns,
		m.HeatAlertRunDuration,
		m.HeatAlertCitiesPolled,
		m.HeatAlertCitiesRanked,
		m.TileConfigLookups,
		m.TileConfigLoads,
		m.TileGenerations,
		m.ImageryRequests,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
