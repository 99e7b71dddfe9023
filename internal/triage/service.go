// Package triage composes the normalizer, the known-error ledger and the
// incident log into the operations exposed to agents and dashboards.
package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/scrypster/faultline/internal/fingerprint"
	"github.com/scrypster/faultline/internal/metrics"
	"github.com/scrypster/faultline/internal/notify"
	"github.com/scrypster/faultline/internal/storage"
	"github.com/scrypster/faultline/pkg/types"
)

// Service is safe for concurrent use.
type Service struct {
	ledger     storage.KnownErrorStore
	incidents  storage.IncidentStore
	normalizer *fingerprint.Normalizer
	notifier   notify.Notifier
	metrics    *metrics.Metrics
	now        func() time.Time
	logger     *log.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier publishes incident_recorded and known_error_saved events.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMetrics records Prometheus metrics for every operation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithStrictValidation selects strict (true) or lenient (false) event
// validation. Strict is the default.
func WithStrictValidation(strict bool) Option {
	return func(s *Service) { s.normalizer = fingerprint.New(strict) }
}

// WithClock overrides the clock used for defaulted timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger. Defaults to the standard logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service over the given ledger and incident log, which
// are usually the same storage.Store.
func NewService(ledger storage.KnownErrorStore, incidents storage.IncidentStore, opts ...Option) *Service {
	s := &Service{
		ledger:     ledger,
		incidents:  incidents,
		normalizer: fingerprint.New(true),
		now:        time.Now,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Strict reports whether events are validated before fingerprinting.
func (s *Service) Strict() bool {
	return s.normalizer.Strict()
}

// Normalize turns an event into its canonical record. It performs no I/O.
func (s *Service) Normalize(ev types.RawErrorEvent) (types.CanonicalRecord, error) {
	rec, err := s.normalizer.Normalize(ev)
	if err != nil {
		s.metrics.RecordValidationFailure("normalize")
		return types.CanonicalRecord{}, err
	}
	return rec, nil
}

// LookupKnownError returns the known error for fingerprint. A miss is
// (nil, false, nil), not an error.
func (s *Service) LookupKnownError(ctx context.Context, fp string) (*types.KnownError, bool, error) {
	defer s.metrics.ObserveDuration("lookup_known_error", time.Now())

	if fp == "" {
		s.metrics.RecordValidationFailure("lookup_known_error")
		ve := &types.ValidationError{}
		ve.Add("fingerprint", "is required")
		return nil, false, ve
	}

	ke, err := s.ledger.GetKnownError(ctx, fp)
	if errors.Is(err, storage.ErrNotFound) {
		s.metrics.RecordLookup(false)
		return nil, false, nil
	}
	if err != nil {
		s.metrics.RecordStorageError("lookup_known_error")
		return nil, false, fmt.Errorf("lookup known error %s: %w", fp, err)
	}
	s.metrics.RecordLookup(true)
	return ke, true, nil
}

// UpsertKnownError creates the ledger row for in.Fingerprint or increments
// it. A zero Timestamp means now.
func (s *Service) UpsertKnownError(ctx context.Context, in types.KnownErrorUpsert) (*types.KnownError, error) {
	defer s.metrics.ObserveDuration("upsert_known_error", time.Now())

	if err := types.ValidateUpsert(in); err != nil {
		s.metrics.RecordValidationFailure("upsert_known_error")
		return nil, err
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = s.now()
	}

	ke, err := s.ledger.UpsertKnownError(ctx, in)
	if err != nil {
		s.metrics.RecordStorageError("upsert_known_error")
		return nil, fmt.Errorf("upsert known error %s: %w", in.Fingerprint, err)
	}

	s.metrics.RecordUpsert(ke.Occurrences == 1)
	s.publish(notify.EventKnownErrorSaved, ke.Fingerprint, ke.Service, ke)
	return ke, nil
}

// RecordIncident normalizes ev and appends it to the incident log. The raw
// event is stored as its JSON serialization.
func (s *Service) RecordIncident(ctx context.Context, ev types.RawErrorEvent) (*types.Incident, error) {
	defer s.metrics.ObserveDuration("record_incident", time.Now())

	rec, err := s.normalizer.Normalize(ev)
	if err != nil {
		s.metrics.RecordValidationFailure("record_incident")
		return nil, err
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("serialize raw event: %w", err)
	}

	inc, err := s.incidents.AppendIncident(ctx, rec, string(raw))
	if err != nil {
		s.metrics.RecordStorageError("record_incident")
		return nil, fmt.Errorf("record incident %s: %w", rec.Fingerprint, err)
	}

	s.metrics.RecordIncident(inc.Service)
	s.publish(notify.EventIncidentRecorded, inc.Fingerprint, inc.Service, inc)
	return inc, nil
}

// ListIncidents returns incidents, newest first.
func (s *Service) ListIncidents(ctx context.Context, filter storage.IncidentFilter) (*storage.PaginatedResult[types.Incident], error) {
	res, err := s.incidents.ListIncidents(ctx, filter)
	if err != nil {
		s.metrics.RecordStorageError("list_incidents")
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	return res, nil
}

// ListKnownErrors returns a page of the ledger.
func (s *Service) ListKnownErrors(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.KnownError], error) {
	res, err := s.ledger.ListKnownErrors(ctx, opts)
	if err != nil {
		s.metrics.RecordStorageError("list_known_errors")
		return nil, fmt.Errorf("list known errors: %w", err)
	}
	return res, nil
}

// CountIncidents returns how many incidents carry fingerprint.
func (s *Service) CountIncidents(ctx context.Context, fp string) (int64, error) {
	n, err := s.incidents.CountIncidents(ctx, fp)
	if err != nil {
		s.metrics.RecordStorageError("count_incidents")
		return 0, fmt.Errorf("count incidents %s: %w", fp, err)
	}
	return n, nil
}

// publish never fails the operation; notification is best effort.
func (s *Service) publish(eventType, fp, service string, payload any) {
	if s.notifier == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Printf("triage: marshal %s payload: %v", eventType, err)
		return
	}
	evt := notify.Event{
		Type:        eventType,
		Fingerprint: fp,
		Service:     service,
		Time:        s.now().UnixNano(),
		Payload:     data,
	}
	if err := s.notifier.Notify(evt); err != nil {
		s.logger.Printf("triage: notify %s: %v", eventType, err)
	}
}
