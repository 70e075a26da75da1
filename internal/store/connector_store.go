package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

const connectorColumns = `id, provider, user_id, status, base_url, api_key, poll_interval_seconds, rules,
	supports_webhook, supports_polling, sync_cursor, last_sync_at, last_sync_success, last_sync_error, created_at`

// CreateConnector inserts c unless a connector with the same id exists.
// It reports whether a row was created.
func (s *PostgresStore) CreateConnector(ctx context.Context, c *domain.Connector) (bool, error) {
	applyConnectorDefaults(c)
	rules, err := encodeRules(c.Rules)
	if err != nil {
		return false, err
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO connectors (id, provider, user_id, status, base_url, api_key, poll_interval_seconds,
			rules, supports_webhook, supports_polling, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`, c.ID, c.Provider, c.UserID, string(c.Status), c.BaseURL, c.APIKey, int64(c.PollInterval/time.Second),
		rules, c.SyncConfig.SupportsWebhook, c.SyncConfig.SupportsPolling, c.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("inserting connector: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) GetConnector(ctx context.Context, id string) (*domain.Connector, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+connectorColumns+` FROM connectors WHERE id = $1`, id)
	c, err := scanPgConnector(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying connector: %w", err)
	}
	return c, nil
}

// FindConnectorByUser returns the oldest connector of provider owned by
// userID.
func (s *PostgresStore) FindConnectorByUser(ctx context.Context, provider, userID string) (*domain.Connector, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+connectorColumns+` FROM connectors
		WHERE provider = $1 AND user_id = $2
		ORDER BY created_at ASC
		LIMIT 1
	`, provider, userID)
	c, err := scanPgConnector(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying connector by user: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListConnectors(ctx context.Context) ([]domain.Connector, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+connectorColumns+` FROM connectors ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying connectors: %w", err)
	}
	defer rows.Close()

	connectors := []domain.Connector{}
	for rows.Next() {
		c, err := scanPgConnector(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning connector: %w", err)
		}
		connectors = append(connectors, *c)
	}
	return connectors, rows.Err()
}

// ActivateConnector moves a pending connector to active. It is a no-op for
// connectors that are already active.
func (s *PostgresStore) ActivateConnector(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE connectors SET status = $2 WHERE id = $1 AND status = $3
	`, id, string(domain.ConnectorActive), string(domain.ConnectorPending))
	if err != nil {
		return fmt.Errorf("activating connector: %w", err)
	}
	return nil
}

// RecordSyncAttempt stores the outcome of a sync. The cursor only moves
// when the attempt carries one.
func (s *PostgresStore) RecordSyncAttempt(ctx context.Context, connectorID string, a domain.SyncAttempt) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE connectors
		SET last_sync_at = $2,
			last_sync_success = $3,
			last_sync_error = $4,
			sync_cursor = CASE WHEN $5 = '' THEN sync_cursor ELSE $5 END
		WHERE id = $1
	`, connectorID, a.At, a.Success, a.Error, a.Cursor)
	if err != nil {
		return fmt.Errorf("recording sync attempt: %w", err)
	}
	return nil
}

func scanPgConnector(row pgx.Row) (*domain.Connector, error) {
	var (
		c           domain.Connector
		status      string
		pollSeconds int64
		rules       []byte
		lastSyncAt  *time.Time
		lastSyncOK  bool
		lastSyncErr string
	)
	err := row.Scan(
		&c.ID, &c.Provider, &c.UserID, &status, &c.BaseURL, &c.APIKey, &pollSeconds, &rules,
		&c.SyncConfig.SupportsWebhook, &c.SyncConfig.SupportsPolling, &c.Cursor,
		&lastSyncAt, &lastSyncOK, &lastSyncErr, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = domain.ConnectorStatus(status)
	c.PollInterval = time.Duration(pollSeconds) * time.Second
	c.LastSync = lastSyncAt
	c.LastSyncStatus = domain.SyncOutcome{Success: lastSyncOK, Error: lastSyncErr}
	if c.Rules, err = decodeRules(rules); err != nil {
		return nil, err
	}
	return &c, nil
}
