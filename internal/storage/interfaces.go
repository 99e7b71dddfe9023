// Package storage defines the persistence contracts for known errors and
// incidents.
//
// The storage layer is split into small interfaces so that the triage service
// can be handed only what it needs, and so that decorators (such as the
// circuit breaker in storage/breaker) can wrap any backend.
package storage

import (
	"context"

	"github.com/scrypster/faultline/pkg/types"
)

// KnownErrorStore is the known-error ledger: one row per fingerprint.
type KnownErrorStore interface {
	// GetKnownError retrieves the known error for a fingerprint.
	// Returns ErrNotFound if no row exists. Never mutates state.
	GetKnownError(ctx context.Context, fingerprint string) (*types.KnownError, error)

	// UpsertKnownError atomically creates the row for in.Fingerprint or, if it
	// exists, increments occurrences and advances last_seen_at. Description and
	// suggested fix are only replaced when in.Overwrite is set.
	UpsertKnownError(ctx context.Context, in types.KnownErrorUpsert) (*types.KnownError, error)

	// ListKnownErrors returns known errors with pagination and filtering.
	ListKnownErrors(ctx context.Context, opts ListOptions) (*PaginatedResult[types.KnownError], error)
}

// IncidentStore is the append-only incident log.
type IncidentStore interface {
	// AppendIncident inserts a new incident for rec. It never deduplicates and
	// never looks up existing rows.
	AppendIncident(ctx context.Context, rec types.CanonicalRecord, rawLog string) (*types.Incident, error)

	// ListIncidents returns incidents, newest first.
	ListIncidents(ctx context.Context, filter IncidentFilter) (*PaginatedResult[types.Incident], error)

	// CountIncidents returns how many incidents carry the fingerprint.
	CountIncidents(ctx context.Context, fingerprint string) (int64, error)
}

// Store is a full backend: ledger, log and lifecycle.
type Store interface {
	KnownErrorStore
	IncidentStore

	// Ping verifies that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
