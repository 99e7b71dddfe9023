package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/faultline/internal/metrics"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.RecordIncident("auth-service")
	m.RecordIncident("auth-service")
	m.RecordUpsert(true)
	m.RecordUpsert(false)
	m.RecordUpsert(false)
	m.RecordLookup(false)
	m.RecordValidationFailure("record_incident")
	m.RecordStorageError("upsert_known_error")
	m.ObserveDuration("record_incident", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.IncidentsRecorded.WithLabelValues("auth-service")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KnownErrorUpserts.WithLabelValues("created")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.KnownErrorUpserts.WithLabelValues("incremented")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KnownErrorLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationFailures.WithLabelValues("record_incident")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StorageErrors.WithLabelValues("upsert_known_error")))

	n, err := testutil.GatherAndCount(reg, "faultline_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetrics_BreakerState(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.SetBreakerState("open")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState))
	m.SetBreakerState("half-open")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakerState))
	m.SetBreakerState("closed")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BreakerState))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.RecordIncident("x")
		m.RecordUpsert(true)
		m.RecordLookup(true)
		m.RecordValidationFailure("x")
		m.RecordStorageError("x")
		m.ObserveDuration("x", time.Now())
		m.SetBreakerState("open")
	})
}

func TestMetrics_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg)
	assert.Panics(t, func() { metrics.New(reg) })
}
