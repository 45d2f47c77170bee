package pipeline

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the run counters scraped from /metrics.
type Metrics struct {
	SensorsFetched  prometheus.Counter
	SensorsFailed   prometheus.Counter
	SamplesBuilt    prometheus.Counter
	SeriesPublished prometheus.Gauge
	FetchLatency    prometheus.Histogram
}

// NewMetrics creates and registers the pipeline metrics. Pass
// prometheus.DefaultRegisterer in production; tests use their own
// registry so repeated registration never collides.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SensorsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentiflow_sensors_fetched_total",
			Help: "Sensors fetched successfully across all runs.",
		}),
		SensorsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentiflow_sensors_failed_total",
			Help: "Sensors whose fetch or build failed across all runs.",
		}),
		SamplesBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentiflow_samples_built_total",
			Help: "Validated samples produced across all runs.",
		}),
		SeriesPublished: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentiflow_series_published",
			Help: "Series included in the catalogue by the last run.",
		}),
		FetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentiflow_fetch_duration_seconds",
			Help:    "Latency of individual Sentilo fetches.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.SensorsFetched, m.SensorsFailed, m.SamplesBuilt, m.SeriesPublished, m.FetchLatency)
	return m
}
