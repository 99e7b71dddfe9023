// Package breaker wraps a storage.Store in a circuit breaker so that callers
// fail fast while the backend is unhealthy.
package breaker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sony/gobreaker"

	"github.com/scrypster/faultline/internal/storage"
	"github.com/scrypster/faultline/pkg/types"
)

// ErrCircuitOpen is wrapped in a *storage.StorageError when the breaker
// rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config holds the configuration for the circuit breaker.
type Config struct {
	// MaxFailures is the number of consecutive failures required to trip the circuit.
	// Default: 5
	MaxFailures uint32

	// Timeout is the duration the circuit stays open before transitioning to half-open.
	// Default: 30 seconds
	Timeout time.Duration

	// HalfOpenMaxSuccesses is the number of trial requests allowed in half-open state.
	// Default: 1
	HalfOpenMaxSuccesses uint32
}

// StateChangeFunc observes breaker transitions ("closed", "open", "half-open").
type StateChangeFunc func(from, to string)

// Store is a storage.Store decorator guarded by a gobreaker circuit breaker.
type Store struct {
	next storage.Store
	cb   *gobreaker.CircuitBreaker
}

var _ storage.Store = (*Store)(nil)

// New wraps next. onChange may be nil.
func New(next storage.Store, cfg Config, onChange StateChangeFunc) *Store {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxSuccesses == 0 {
		cfg.HalfOpenMaxSuccesses = 1
	}

	settings := gobreaker.Settings{
		Name:        "storage",
		MaxRequests: cfg.HalfOpenMaxSuccesses,
		Interval:    0, // Don't clear counts periodically
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("breaker: %s %s -> %s", name, stateName(from), stateName(to))
			if onChange != nil {
				onChange(stateName(from), stateName(to))
			}
		},
	}

	return &Store{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

// isSuccessful decides which errors count against the backend. Misses,
// invalid input and caller cancellation say nothing about its health.
func isSuccessful(err error) bool {
	return err == nil ||
		errors.Is(err, storage.ErrNotFound) ||
		errors.Is(err, storage.ErrInvalidInput) ||
		errors.Is(err, context.Canceled) ||
		types.IsValidationError(err)
}

// State returns "closed", "open" or "half-open".
func (s *Store) State() string {
	return stateName(s.cb.State())
}

func stateName(st gobreaker.State) string {
	switch st {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func (s *Store) execute(op string, fn func() (interface{}, error)) (interface{}, error) {
	res, err := s.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &storage.StorageError{Op: op, Err: ErrCircuitOpen}
	}
	return res, err
}

func (s *Store) GetKnownError(ctx context.Context, fingerprint string) (*types.KnownError, error) {
	res, err := s.execute("get known error", func() (interface{}, error) {
		return s.next.GetKnownError(ctx, fingerprint)
	})
	if err != nil {
		return nil, err
	}
	return res.(*types.KnownError), nil
}

func (s *Store) UpsertKnownError(ctx context.Context, in types.KnownErrorUpsert) (*types.KnownError, error) {
	res, err := s.execute("upsert known error", func() (interface{}, error) {
		return s.next.UpsertKnownError(ctx, in)
	})
	if err != nil {
		return nil, err
	}
	return res.(*types.KnownError), nil
}

func (s *Store) ListKnownErrors(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.KnownError], error) {
	res, err := s.execute("list known errors", func() (interface{}, error) {
		return s.next.ListKnownErrors(ctx, opts)
	})
	if err != nil {
		return nil, err
	}
	return res.(*storage.PaginatedResult[types.KnownError]), nil
}

func (s *Store) AppendIncident(ctx context.Context, rec types.CanonicalRecord, rawLog string) (*types.Incident, error) {
	res, err := s.execute("append incident", func() (interface{}, error) {
		return s.next.AppendIncident(ctx, rec, rawLog)
	})
	if err != nil {
		return nil, err
	}
	return res.(*types.Incident), nil
}

func (s *Store) ListIncidents(ctx context.Context, filter storage.IncidentFilter) (*storage.PaginatedResult[types.Incident], error) {
	res, err := s.execute("list incidents", func() (interface{}, error) {
		return s.next.ListIncidents(ctx, filter)
	})
	if err != nil {
		return nil, err
	}
	return res.(*storage.PaginatedResult[types.Incident]), nil
}

func (s *Store) CountIncidents(ctx context.Context, fingerprint string) (int64, error) {
	res, err := s.execute("count incidents", func() (interface{}, error) {
		return s.next.CountIncidents(ctx, fingerprint)
	})
	if err != nil {
		return 0, err
	}
	return res.(int64), nil
}

// Ping goes through the breaker so health checks report an open circuit.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.execute("ping", func() (interface{}, error) {
		return nil, s.next.Ping(ctx)
	})
	return err
}

// Close closes the wrapped store directly.
func (s *Store) Close() error {
	return s.next.Close()
}
