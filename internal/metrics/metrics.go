// Package metrics provides the Prometheus collectors for triage operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "faultline"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	IncidentsRecorded  *prometheus.CounterVec
	KnownErrorUpserts  *prometheus.CounterVec
	KnownErrorLookups  *prometheus.CounterVec
	ValidationFailures *prometheus.CounterVec
	StorageErrors      *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	BreakerState       prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IncidentsRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "incidents_recorded_total",
				Help:      "Total number of incidents appended to the incident log",
			},
			[]string{"service"},
		),
		KnownErrorUpserts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "known_error_upserts_total",
				Help:      "Total number of known-error upserts by outcome (created, incremented)",
			},
			[]string{"result"},
		),
		KnownErrorLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "known_error_lookups_total",
				Help:      "Total number of known-error lookups by outcome (hit, miss)",
			},
			[]string{"result"},
		),
		ValidationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_failures_total",
				Help:      "Total number of requests rejected by validation",
			},
			[]string{"operation"},
		),
		StorageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_errors_total",
				Help:      "Total number of storage failures",
			},
			[]string{"operation"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of triage operations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		BreakerState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "storage_breaker_state",
				Help:      "Storage circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
		),
	}

	reg.MustRegister(
		m.IncidentsRecorded,
		m.KnownErrorUpserts,
		m.KnownErrorLookups,
		m.ValidationFailures,
		m.StorageErrors,
		m.OperationDuration,
		m.BreakerState,
	)
	return m
}

// ObserveDuration records how long operation took since start.
func (m *Metrics) ObserveDuration(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// RecordIncident counts an appended incident.
func (m *Metrics) RecordIncident(service string) {
	if m == nil {
		return
	}
	m.IncidentsRecorded.WithLabelValues(service).Inc()
}

// RecordUpsert counts an upsert; created is true when a new row was inserted.
func (m *Metrics) RecordUpsert(created bool) {
	if m == nil {
		return
	}
	result := "incremented"
	if created {
		result = "created"
	}
	m.KnownErrorUpserts.WithLabelValues(result).Inc()
}

// RecordLookup counts a lookup by whether it found a row.
func (m *Metrics) RecordLookup(found bool) {
	if m == nil {
		return
	}
	result := "miss"
	if found {
		result = "hit"
	}
	m.KnownErrorLookups.WithLabelValues(result).Inc()
}

// RecordValidationFailure counts a rejected request.
func (m *Metrics) RecordValidationFailure(operation string) {
	if m == nil {
		return
	}
	m.ValidationFailures.WithLabelValues(operation).Inc()
}

// RecordStorageError counts a backend failure.
func (m *Metrics) RecordStorageError(operation string) {
	if m == nil {
		return
	}
	m.StorageErrors.WithLabelValues(operation).Inc()
}

// SetBreakerState mirrors a breaker transition into the gauge.
func (m *Metrics) SetBreakerState(state string) {
	if m == nil {
		return
	}
	switch state {
	case "closed":
		m.BreakerState.Set(0)
	case "half-open":
		m.BreakerState.Set(1)
	case "open":
		m.BreakerState.Set(2)
	}
}
