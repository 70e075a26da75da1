package store

import (
	"context"
	"fmt"
)

// PipelineStats holds aggregated ingestion statistics.
type PipelineStats struct {
	TotalConnectors  int            `json:"total_connectors"`
	ActiveConnectors int            `json:"active_connectors"`
	TotalEvents      int            `json:"total_events"`
	SuppressedEvents int            `json:"suppressed_events"`
	EventsByProvider map[string]int `json:"events_by_provider"`
}

// GetPipelineStats returns aggregated connector and event counts.
func (s *PostgresStore) GetPipelineStats(ctx context.Context) (*PipelineStats, error) {
	m := PipelineStats{EventsByProvider: map[string]int{}}

	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'active') AS active
		FROM connectors
	`).Scan(&m.TotalConnectors, &m.ActiveConnectors)
	if err != nil {
		return nil, fmt.Errorf("querying connector counts: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE suppressed) AS suppressed
		FROM canonical_events
	`).Scan(&m.TotalEvents, &m.SuppressedEvents)
	if err != nil {
		return nil, fmt.Errorf("querying event counts: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT provider, COUNT(*) FROM canonical_events GROUP BY provider
	`)
	if err != nil {
		return nil, fmt.Errorf("querying events by provider: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var provider string
		var n int
		if err := rows.Scan(&provider, &n); err != nil {
			return nil, fmt.Errorf("scanning provider count: %w", err)
		}
		m.EventsByProvider[provider] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading provider counts: %w", err)
	}

	return &m, nil
}
