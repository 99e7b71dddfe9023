// Package sqlite implements the known-error ledger and incident log on SQLite
// using the CGO-free modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/faultline/internal/storage"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// timeLayout is fixed width so that TEXT comparison orders by time.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements storage.Store using SQLite.
type Store struct {
	db        *sql.DB
	opTimeout time.Duration
	now       func() time.Time
}

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithOpTimeout bounds every storage operation.
func WithOpTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// WithClock overrides the clock used for defaulted timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens (or creates) the database at dsn and applies pending migrations.
// If the initial open fails due to stale WAL files left behind by a crashed
// process, it verifies no other process holds them and retries once after
// removing the stale -shm/-wal files.
func Open(dsn string, opts ...Option) (*Store, error) {
	store, err := open(dsn, opts)
	if err == nil {
		return store, nil
	}

	if !isRecoverableWALError(err) {
		return nil, err
	}

	dbPath := dbPathFromDSN(dsn)
	if dbPath == "" || !isWALStale(dbPath) {
		return nil, err
	}

	removeStaleWAL(dbPath)

	store, retryErr := open(dsn, opts)
	if retryErr != nil {
		return nil, fmt.Errorf("failed after WAL recovery: %w (original: %v)", retryErr, err)
	}

	log.Printf("sqlite: recovered from stale WAL files for %s", dbPath)
	return store, nil
}

func open(dsn string, opts []Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serialises writes and keeps an in-memory database shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	mgr, err := storage.NewMigrationManager(db, migrationFS, "migrations", storage.QuestionPlaceholder)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	if err := mgr.Up(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to run migrations: %w", err)
	}

	s := &Store{
		db:        db,
		opTimeout: storage.DefaultOpTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	opCtx, cancel, err := storage.OpContext(ctx, s.opTimeout)
	if err != nil {
		return storage.Wrap("ping", err)
	}
	defer cancel()
	return storage.Wrap("ping", s.db.PingContext(opCtx))
}

// Close flushes the WAL into the main database file and releases resources.
// The TRUNCATE checkpoint removes the -shm and -wal files so that another
// process can open the database without encountering stale WAL state.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		log.Printf("sqlite: WAL checkpoint on close failed (non-fatal): %v", err)
	}

	return s.db.Close()
}

// DB exposes the underlying handle for tests and maintenance tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}
