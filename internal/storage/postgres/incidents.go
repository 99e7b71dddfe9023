package postgres

import (
	"context"
	"fmt"

	"github.com/scrypster/faultline/internal/storage"
	"github.com/scrypster/faultline/pkg/types"
)

const incidentColumns = `id, fingerprint, service, environment, error_type, severity, message,
	stack_summary, raw_log, created_at`

// AppendIncident inserts a new incident row. The event timestamp becomes
// created_at; an empty or unparseable timestamp falls back to the clock.
func (s *Store) AppendIncident(ctx context.Context, rec types.CanonicalRecord, rawLog string) (*types.Incident, error) {
	if rec.Fingerprint == "" {
		return nil, fmt.Errorf("%w: fingerprint is required", storage.ErrInvalidInput)
	}

	createdAt, err := types.ParseTimestamp(rec.Timestamp)
	if err != nil {
		createdAt = s.now().UTC()
	}

	opCtx, cancel, err := storage.OpContext(ctx, s.opTimeout)
	if err != nil {
		return nil, storage.Wrap("append incident", err)
	}
	defer cancel()

	row := s.db.QueryRowContext(opCtx, `
		INSERT INTO incidents (fingerprint, service, environment, error_type, severity, message,
			stack_summary, raw_log, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+incidentColumns,
		pgText(rec.Fingerprint), pgText(rec.Service), pgText(rec.Environment), pgText(rec.ErrorType),
		pgText(rec.Severity), pgText(rec.Message), pgText(rec.StackSummary), pgText(rawLog), createdAt,
	)
	inc, err := scanIncident(row)
	if err != nil {
		return nil, storage.Wrap("append incident", err)
	}
	return inc, nil
}

// ListIncidents returns incidents matching filter, newest first.
func (s *Store) ListIncidents(ctx context.Context, filter storage.IncidentFilter) (*storage.PaginatedResult[types.Incident], error) {
	filter.Normalize()

	opCtx, cancel, err := storage.OpContext(ctx, s.opTimeout)
	if err != nil {
		return nil, storage.Wrap("list incidents", err)
	}
	defer cancel()

	where, args := whereClause(map[string]string{
		"fingerprint": filter.Fingerprint,
		"service":     filter.Service,
	})

	var total int
	if err := s.db.QueryRowContext(opCtx, "SELECT COUNT(*) FROM incidents"+where, args...).Scan(&total); err != nil {
		return nil, storage.Wrap("list incidents", fmt.Errorf("count: %w", err))
	}

	query := fmt.Sprintf("SELECT %s FROM incidents%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		incidentColumns, where, len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(opCtx, query, append(args, filter.Limit, filter.Offset())...)
	if err != nil {
		return nil, storage.Wrap("list incidents", err)
	}
	defer rows.Close()

	items := make([]types.Incident, 0, filter.Limit)
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, storage.Wrap("list incidents", err)
		}
		items = append(items, *inc)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap("list incidents", err)
	}

	return storage.NewPaginatedResult(items, total, filter.Page, filter.Limit), nil
}

// CountIncidents returns how many incidents carry fingerprint.
func (s *Store) CountIncidents(ctx context.Context, fingerprint string) (int64, error) {
	opCtx, cancel, err := storage.OpContext(ctx, s.opTimeout)
	if err != nil {
		return 0, storage.Wrap("count incidents", err)
	}
	defer cancel()

	var n int64
	err = s.db.QueryRowContext(opCtx, "SELECT COUNT(*) FROM incidents WHERE fingerprint = $1", pgText(fingerprint)).Scan(&n)
	if err != nil {
		return 0, storage.Wrap("count incidents", err)
	}
	return n, nil
}

func scanIncident(row scanner) (*types.Incident, error) {
	var inc types.Incident
	err := row.Scan(
		&inc.ID,
		&inc.Fingerprint,
		&inc.Service,
		&inc.Environment,
		&inc.ErrorType,
		&inc.Severity,
		&inc.Message,
		&inc.StackSummary,
		&inc.RawLog,
		&inc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	inc.CreatedAt = inc.CreatedAt.UTC()
	return &inc, nil
}
