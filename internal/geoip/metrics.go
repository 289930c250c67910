// Package geoip provides Prometheus metrics for the database reader.
package geoip

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ReaderMetrics contains Prometheus metrics for the GeoIP reader.
type ReaderMetrics struct {
	lookupsTotal   *prometheus.CounterVec
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheEntries   prometheus.Gauge
	decodeDuration prometheus.Histogram
}

// NewReaderMetrics creates a new ReaderMetrics instance.
func NewReaderMetrics(namespace string) *ReaderMetrics {
	if namespace == "" {
		namespace = "geopipe"
	}

	return &ReaderMetrics{
		lookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "geoip",
				Name:      "lookups_total",
				Help:      "Total lookups by outcome",
			},
			[]string{"status"},
		),
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "geoip",
				Name:      "cache_hits_total",
				Help:      "Total decode cache hits",
			},
		),
		cacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "geoip",
				Name:      "cache_misses_total",
				Help:      "Total decode cache misses",
			},
		),
		cacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "geoip",
				Name:      "cache_entries",
				Help:      "Current decode cache entries",
			},
		),
		decodeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "geoip",
				Name:      "decode_duration_seconds",
				Help:      "Binary decode duration in seconds",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
			},
		),
	}
}

// RecordLookup records one lookup outcome.
func (m *ReaderMetrics) RecordLookup(status string, cacheHit bool, seconds float64) {
	m.lookupsTotal.WithLabelValues(status).Inc()
	if cacheHit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
	m.decodeDuration.Observe(seconds)
}

// SetCacheEntries sets the current cache entry count.
func (m *ReaderMetrics) SetCacheEntries(n float64) {
	m.cacheEntries.Set(n)
}

// Register registers all metrics with the given registerer.
func (m *ReaderMetrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.lookupsTotal,
		m.cacheHits,
		m.cacheMisses,
		m.cacheEntries,
		m.decodeDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
