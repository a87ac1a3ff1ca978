package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.JobsDispatched.WithLabelValues("fetch_diff").Inc()
	m.JobsFailed.WithLabelValues("fetch_diff", "retry").Add(2)
	m.QueueDepth.WithLabelValues("pending").Set(4)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.JobsDispatched.WithLabelValues("fetch_diff")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.JobsFailed.WithLabelValues("fetch_diff", "retry")))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.QueueDepth.WithLabelValues("pending")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNew_IndependentInstances(t *testing.T) {
	assert.NotPanics(t, func() {
		New(nil)
		New(nil)
	})
}
