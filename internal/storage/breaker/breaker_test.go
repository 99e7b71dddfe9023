package breaker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/faultline/internal/storage"
	"github.com/scrypster/faultline/internal/storage/breaker"
	"github.com/scrypster/faultline/pkg/types"
)

// fakeStore returns err from every call and counts how often it was reached.
type fakeStore struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeStore) hit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeStore) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeStore) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeStore) GetKnownError(ctx context.Context, fp string) (*types.KnownError, error) {
	if err := f.hit(); err != nil {
		return nil, err
	}
	return &types.KnownError{Fingerprint: fp, Occurrences: 1}, nil
}

func (f *fakeStore) UpsertKnownError(ctx context.Context, in types.KnownErrorUpsert) (*types.KnownError, error) {
	if err := f.hit(); err != nil {
		return nil, err
	}
	return &types.KnownError{Fingerprint: in.Fingerprint, Occurrences: 1}, nil
}

func (f *fakeStore) ListKnownErrors(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.KnownError], error) {
	if err := f.hit(); err != nil {
		return nil, err
	}
	return storage.NewPaginatedResult[types.KnownError](nil, 0, 1, 10), nil
}

func (f *fakeStore) AppendIncident(ctx context.Context, rec types.CanonicalRecord, rawLog string) (*types.Incident, error) {
	if err := f.hit(); err != nil {
		return nil, err
	}
	return &types.Incident{ID: 1, Fingerprint: rec.Fingerprint, RawLog: rawLog}, nil
}

func (f *fakeStore) ListIncidents(ctx context.Context, filter storage.IncidentFilter) (*storage.PaginatedResult[types.Incident], error) {
	if err := f.hit(); err != nil {
		return nil, err
	}
	return storage.NewPaginatedResult[types.Incident](nil, 0, 1, 10), nil
}

func (f *fakeStore) CountIncidents(ctx context.Context, fp string) (int64, error) {
	if err := f.hit(); err != nil {
		return 0, err
	}
	return 7, nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.hit() }
func (f *fakeStore) Close() error                   { return nil }

func TestBreaker_PassesThrough(t *testing.T) {
	fake := &fakeStore{}
	s := breaker.New(fake, breaker.Config{}, nil)
	ctx := context.Background()

	ke, err := s.UpsertKnownError(ctx, types.KnownErrorUpsert{Fingerprint: "fp"})
	require.NoError(t, err)
	assert.Equal(t, "fp", ke.Fingerprint)

	inc, err := s.AppendIncident(ctx, types.CanonicalRecord{Fingerprint: "fp"}, "{}")
	require.NoError(t, err)
	assert.Equal(t, "{}", inc.RawLog)

	n, err := s.CountIncidents(ctx, "fp")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	_, err = s.ListIncidents(ctx, storage.IncidentFilter{})
	require.NoError(t, err)
	_, err = s.ListKnownErrors(ctx, storage.ListOptions{})
	require.NoError(t, err)
	assert.NoError(t, s.Ping(ctx))
	assert.Equal(t, "closed", s.State())
}

func TestBreaker_TripsOnStorageFailures(t *testing.T) {
	fake := &fakeStore{err: &storage.StorageError{Op: "upsert known error", Err: errors.New("disk I/O error")}}

	var mu sync.Mutex
	var transitions []string
	s := breaker.New(fake, breaker.Config{MaxFailures: 3, Timeout: time.Hour}, func(from, to string) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, from+"->"+to)
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.UpsertKnownError(ctx, types.KnownErrorUpsert{Fingerprint: "fp"})
		require.Error(t, err)
	}
	assert.Equal(t, "open", s.State())
	assert.Equal(t, 3, fake.Calls())

	_, err := s.GetKnownError(ctx, "fp")
	require.Error(t, err)
	assert.True(t, storage.IsStorageError(err))
	assert.ErrorIs(t, err, breaker.ErrCircuitOpen)
	assert.Equal(t, 3, fake.Calls(), "open breaker must not reach the store")

	mu.Lock()
	assert.Equal(t, []string{"closed->open"}, transitions)
	mu.Unlock()
}

func TestBreaker_IgnoresMissesAndBadInput(t *testing.T) {
	fake := &fakeStore{err: storage.ErrNotFound}
	s := breaker.New(fake, breaker.Config{MaxFailures: 2, Timeout: time.Hour}, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.GetKnownError(ctx, "fp")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}
	assert.Equal(t, "closed", s.State())

	fake.setErr(&types.ValidationError{Fields: []types.FieldError{{Field: "fingerprint", Message: "is required"}}})
	for i := 0; i < 5; i++ {
		_, err := s.UpsertKnownError(ctx, types.KnownErrorUpsert{})
		assert.True(t, types.IsValidationError(err))
	}

	fake.setErr(&storage.StorageError{Op: "get known error", Err: context.Canceled})
	for i := 0; i < 5; i++ {
		_, err := s.GetKnownError(ctx, "fp")
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, "closed", s.State())
}

func TestBreaker_RecoversAfterTimeout(t *testing.T) {
	fake := &fakeStore{err: errors.New("connection refused")}
	s := breaker.New(fake, breaker.Config{MaxFailures: 1, Timeout: 20 * time.Millisecond}, nil)
	ctx := context.Background()

	assert.Error(t, s.Ping(ctx))
	assert.Equal(t, "open", s.State())

	fake.setErr(nil)
	require.Eventually(t, func() bool {
		return s.Ping(ctx) == nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "closed", s.State())
}
