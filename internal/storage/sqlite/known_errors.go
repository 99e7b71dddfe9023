package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/scrypster/faultline/internal/storage"
	"github.com/scrypster/faultline/pkg/types"
)

const knownErrorColumns = `id, fingerprint, error_type, service, description, suggested_fix,
	first_seen_at, last_seen_at, occurrences`

// upsertKnownErrorSQL resolves the insert-or-increment in one statement so
// concurrent callers can neither double-insert nor lose an increment.
const upsertKnownErrorSQL = `
	INSERT INTO known_errors (fingerprint, error_type, service, description, suggested_fix,
		first_seen_at, last_seen_at, occurrences)
	VALUES (?, ?, ?, ?, ?, ?, ?, 1)
	ON CONFLICT(fingerprint) DO UPDATE SET
		occurrences   = known_errors.occurrences + 1,
		last_seen_at  = MAX(known_errors.last_seen_at, excluded.last_seen_at),
		description   = CASE WHEN ? THEN excluded.description ELSE known_errors.description END,
		suggested_fix = CASE WHEN ? THEN excluded.suggested_fix ELSE known_errors.suggested_fix END
	RETURNING ` + knownErrorColumns

// GetKnownError retrieves the known error for a fingerprint.
func (s *Store) GetKnownError(ctx context.Context, fingerprint string) (*types.KnownError, error) {
	if fingerprint == "" {
		return nil, fmt.Errorf("%w: fingerprint is required", storage.ErrInvalidInput)
	}

	opCtx, cancel, err := storage.OpContext(ctx, s.opTimeout)
	if err != nil {
		return nil, storage.Wrap("get known error", err)
	}
	defer cancel()

	row := s.db.QueryRowContext(opCtx,
		"SELECT "+knownErrorColumns+" FROM known_errors WHERE fingerprint = ?", fingerprint)
	ke, err := scanKnownError(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, storage.Wrap("get known error", err)
	}
	return ke, nil
}

// UpsertKnownError creates or increments the ledger row for in.Fingerprint.
func (s *Store) UpsertKnownError(ctx context.Context, in types.KnownErrorUpsert) (*types.KnownError, error) {
	if in.Fingerprint == "" {
		return nil, fmt.Errorf("%w: fingerprint is required", storage.ErrInvalidInput)
	}

	seen := in.Timestamp
	if seen.IsZero() {
		seen = s.now()
	}
	seenText := formatTime(seen)

	opCtx, cancel, err := storage.OpContext(ctx, s.opTimeout)
	if err != nil {
		return nil, storage.Wrap("upsert known error", err)
	}
	defer cancel()

	row := s.db.QueryRowContext(opCtx, upsertKnownErrorSQL,
		in.Fingerprint, in.ErrorType, in.Service, in.Description, in.SuggestedFix,
		seenText, seenText,
		in.Overwrite, in.Overwrite,
	)
	ke, err := scanKnownError(row)
	if err != nil {
		return nil, storage.Wrap("upsert known error", err)
	}
	return ke, nil
}

// ListKnownErrors returns known errors with pagination and an optional
// service filter.
func (s *Store) ListKnownErrors(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.KnownError], error) {
	// Normalize before building ORDER BY; SortBy is whitelisted there.
	opts.Normalize()

	opCtx, cancel, err := storage.OpContext(ctx, s.opTimeout)
	if err != nil {
		return nil, storage.Wrap("list known errors", err)
	}
	defer cancel()

	var conditions []string
	var args []any
	if opts.Service != "" {
		conditions = append(conditions, "service = ?")
		args = append(args, opts.Service)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(opCtx, "SELECT COUNT(*) FROM known_errors"+where, args...).Scan(&total); err != nil {
		return nil, storage.Wrap("list known errors", fmt.Errorf("count: %w", err))
	}

	query := fmt.Sprintf("SELECT %s FROM known_errors%s ORDER BY %s %s, id %s LIMIT ? OFFSET ?",
		knownErrorColumns, where, opts.SortBy, strings.ToUpper(opts.SortOrder), strings.ToUpper(opts.SortOrder))
	rows, err := s.db.QueryContext(opCtx, query, append(args, opts.Limit, opts.Offset())...)
	if err != nil {
		return nil, storage.Wrap("list known errors", err)
	}
	defer rows.Close()

	items := make([]types.KnownError, 0, opts.Limit)
	for rows.Next() {
		ke, err := scanKnownError(rows)
		if err != nil {
			return nil, storage.Wrap("list known errors", err)
		}
		items = append(items, *ke)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap("list known errors", err)
	}

	return storage.NewPaginatedResult(items, total, opts.Page, opts.Limit), nil
}

func scanKnownError(row scanner) (*types.KnownError, error) {
	var ke types.KnownError
	var firstSeen, lastSeen string
	err := row.Scan(
		&ke.ID,
		&ke.Fingerprint,
		&ke.ErrorType,
		&ke.Service,
		&ke.Description,
		&ke.SuggestedFix,
		&firstSeen,
		&lastSeen,
		&ke.Occurrences,
	)
	if err != nil {
		return nil, err
	}
	if ke.FirstSeenAt, err = parseTime(firstSeen); err != nil {
		return nil, err
	}
	if ke.LastSeenAt, err = parseTime(lastSeen); err != nil {
		return nil, err
	}
	return &ke, nil
}
