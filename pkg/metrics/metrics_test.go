package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { RegisterCollectors(reg) })
	require.Panics(t, func() { RegisterCollectors(reg) }, "double registration must fail")
}

func TestObserveRateLimit(t *testing.T) {
	allowed := testutil.ToFloat64(RateLimitAllowed.WithLabelValues("metrics-test", "memory"))
	rejected := testutil.ToFloat64(RateLimitRejected.WithLabelValues("metrics-test", "memory"))

	ObserveRateLimit("metrics-test", "memory", true)
	ObserveRateLimit("metrics-test", "memory", true)
	ObserveRateLimit("metrics-test", "memory", false)

	require.Equal(t, allowed+2, testutil.ToFloat64(RateLimitAllowed.WithLabelValues("metrics-test", "memory")))
	require.Equal(t, rejected+1, testutil.ToFloat64(RateLimitRejected.WithLabelValues("metrics-test", "memory")))
}
