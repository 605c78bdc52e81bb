package telemetry_test

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/victornm/raboard/internal/telemetry"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)

	m.FetchAttempt("transient")
	m.FetchAttempt("ok")
	m.FetchResult("ok")
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)
	m.Computation("ok", time.Second)

	n, err := testutil.GatherAndCount(reg,
		"raboard_fetch_attempts_total",
		"raboard_cache_lookups_total",
	)
	require.NoError(t, err)
	require.Equal(t, 4, n, "2 label values for each counter")

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP raboard_cache_lookups_total Number of leaderboard cache lookups, by result.
# TYPE raboard_cache_lookups_total counter
raboard_cache_lookups_total{result="hit"} 1
raboard_cache_lookups_total{result="miss"} 2
`), "raboard_cache_lookups_total"))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *telemetry.Metrics

	require.NotPanics(t, func() {
		m.FetchAttempt("ok")
		m.FetchResult("ok")
		m.CacheLookup(true)
		m.Computation("ok", time.Second)
	})
}
