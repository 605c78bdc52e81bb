package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "raboard"

// Metrics holds the collectors of the leaderboard pipeline. A nil *Metrics records nothing.
type Metrics struct {
	fetchAttempts       *prometheus.CounterVec
	fetchResults        *prometheus.CounterVec
	cacheLookups        *prometheus.CounterVec
	computations        *prometheus.CounterVec
	computationDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them to reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetchAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_attempts_total",
				Help:      "Number of requests sent to the achievement API, by outcome.",
			},
			[]string{"outcome"},
		),
		fetchResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_results_total",
				Help:      "Number of per-user fetch results after retries, by status.",
			},
			[]string{"status"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Number of leaderboard cache lookups, by result.",
			},
			[]string{"result"},
		),
		computations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "computations_total",
				Help:      "Number of leaderboard computations, by outcome.",
			},
			[]string{"outcome"},
		),
		computationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "computation_duration_seconds",
				Help:      "Duration of leaderboard computations.",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
			},
		),
	}

	reg.MustRegister(
		m.fetchAttempts,
		m.fetchResults,
		m.cacheLookups,
		m.computations,
		m.computationDuration,
	)

	return m
}

func (m *Metrics) FetchAttempt(outcome string) {
	if m == nil {
		return
	}
	m.fetchAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) FetchResult(status string) {
	if m == nil {
		return
	}
	m.fetchResults.WithLabelValues(status).Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) Computation(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.computations.WithLabelValues(outcome).Inc()
	m.computationDuration.Observe(d.Seconds())
}
