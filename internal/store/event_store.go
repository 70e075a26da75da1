package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

const eventColumns = `id, connector_id, provider, event_id, provider_event_type, occurred_at,
	payload, normalized, suppressed, applied_rules, created_at`

// InsertEvent stores e keyed on (provider, event_id). A conflicting key
// leaves the existing row untouched and reports inserted=false.
func (s *PostgresStore) InsertEvent(ctx context.Context, e *domain.StoredEvent) (bool, error) {
	row, err := encodeEvent(e)
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO canonical_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (provider, event_id) DO NOTHING
	`, row.id, e.ConnectorID, e.Provider, e.EventID, e.ProviderEventType, e.Timestamp,
		row.payload, row.normalized, e.Suppressed, row.appliedRules, row.createdAt)
	if err != nil {
		return false, fmt.Errorf("inserting event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) CountEvents(ctx context.Context, connectorID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM canonical_events WHERE connector_id = $1",
		connectorID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, f domain.EventFilter) ([]domain.StoredEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM canonical_events WHERE TRUE`
	args := []any{}
	argIdx := 1

	if f.ConnectorID != "" {
		query += fmt.Sprintf(" AND connector_id = $%d", argIdx)
		args = append(args, f.ConnectorID)
		argIdx++
	}
	if f.Provider != "" {
		query += fmt.Sprintf(" AND provider = $%d", argIdx)
		args = append(args, f.Provider)
		argIdx++
	}
	if !f.IncludeSuppressed {
		query += " AND suppressed = FALSE"
	}

	query += " ORDER BY created_at DESC, occurred_at DESC"

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, f.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	events := []domain.StoredEvent{}
	for rows.Next() {
		e, err := scanPgEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanPgEvent(row pgx.Row) (domain.StoredEvent, error) {
	var e domain.StoredEvent
	var payload, normalized, applied []byte
	err := row.Scan(
		&e.ID, &e.ConnectorID, &e.Provider, &e.EventID, &e.ProviderEventType, &e.Timestamp,
		&payload, &normalized, &e.Suppressed, &applied, &e.CreatedAt,
	)
	if err != nil {
		return e, err
	}
	e.Timestamp = e.Timestamp.UTC()
	return e, decodeEventJSON(&e, normalized, payload, applied)
}
