package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// Fixed-width UTC timestamps so that text ordering is time ordering.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore is the single-node store used for local runs and tests. It
// offers the same operations as PostgresStore.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite creates or opens the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("executing %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, s)
}

func (s *SQLiteStore) CreateConnector(ctx context.Context, c *domain.Connector) (bool, error) {
	applyConnectorDefaults(c)
	rules, err := encodeRules(c.Rules)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO connectors (id, provider, user_id, status, base_url, api_key, poll_interval_seconds,
			rules, supports_webhook, supports_polling, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, c.ID, c.Provider, c.UserID, string(c.Status), c.BaseURL, c.APIKey, int64(c.PollInterval/time.Second),
		string(rules), c.SyncConfig.SupportsWebhook, c.SyncConfig.SupportsPolling, formatTime(c.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("inserting connector: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting connector: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteStore) GetConnector(ctx context.Context, id string) (*domain.Connector, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+connectorColumns+` FROM connectors WHERE id = ?`, id)
	c, err := scanSQLiteConnector(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying connector: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) FindConnectorByUser(ctx context.Context, provider, userID string) (*domain.Connector, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+connectorColumns+` FROM connectors
		WHERE provider = ? AND user_id = ?
		ORDER BY created_at ASC
		LIMIT 1
	`, provider, userID)
	c, err := scanSQLiteConnector(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying connector by user: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) ListConnectors(ctx context.Context) ([]domain.Connector, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+connectorColumns+` FROM connectors ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying connectors: %w", err)
	}
	defer rows.Close()

	connectors := []domain.Connector{}
	for rows.Next() {
		c, err := scanSQLiteConnector(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning connector: %w", err)
		}
		connectors = append(connectors, *c)
	}
	return connectors, rows.Err()
}

func (s *SQLiteStore) ActivateConnector(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE connectors SET status = ? WHERE id = ? AND status = ?`,
		string(domain.ConnectorActive), id, string(domain.ConnectorPending))
	if err != nil {
		return fmt.Errorf("activating connector: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordSyncAttempt(ctx context.Context, connectorID string, a domain.SyncAttempt) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE connectors
		SET last_sync_at = ?,
			last_sync_success = ?,
			last_sync_error = ?,
			sync_cursor = CASE WHEN ? = '' THEN sync_cursor ELSE ? END
		WHERE id = ?
	`, formatTime(a.At), a.Success, a.Error, a.Cursor, a.Cursor, connectorID)
	if err != nil {
		return fmt.Errorf("recording sync attempt: %w", err)
	}
	return nil
}

func (s *SQLiteStore) InsertEvent(ctx context.Context, e *domain.StoredEvent) (bool, error) {
	row, err := encodeEvent(e)
	if err != nil {
		return false, err
	}
	var payload any
	if row.payload != nil {
		payload = string(row.payload)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO canonical_events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider, event_id) DO NOTHING
	`, row.id, e.ConnectorID, e.Provider, e.EventID, e.ProviderEventType, formatTime(e.Timestamp),
		payload, string(row.normalized), e.Suppressed, string(row.appliedRules), formatTime(row.createdAt))
	if err != nil {
		return false, fmt.Errorf("inserting event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting event: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteStore) CountEvents(ctx context.Context, connectorID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM canonical_events WHERE connector_id = ?", connectorID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) ListEvents(ctx context.Context, f domain.EventFilter) ([]domain.StoredEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM canonical_events WHERE 1 = 1`
	var args []any
	if f.ConnectorID != "" {
		query += " AND connector_id = ?"
		args = append(args, f.ConnectorID)
	}
	if f.Provider != "" {
		query += " AND provider = ?"
		args = append(args, f.Provider)
	}
	if !f.IncludeSuppressed {
		query += " AND suppressed = 0"
	}
	query += " ORDER BY created_at DESC, occurred_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	events := []domain.StoredEvent{}
	for rows.Next() {
		var (
			e                   domain.StoredEvent
			occurred, created   string
			payload             sql.NullString
			normalized, applied string
		)
		err := rows.Scan(&e.ID, &e.ConnectorID, &e.Provider, &e.EventID, &e.ProviderEventType, &occurred,
			&payload, &normalized, &e.Suppressed, &applied, &created)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		if e.Timestamp, err = parseTime(occurred); err != nil {
			return nil, fmt.Errorf("parsing occurred_at: %w", err)
		}
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		var raw []byte
		if payload.Valid {
			raw = []byte(payload.String)
		}
		if err := decodeEventJSON(&e, []byte(normalized), raw, []byte(applied)); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) GetPipelineStats(ctx context.Context) (*PipelineStats, error) {
	m := PipelineStats{EventsByProvider: map[string]int{}}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0)
		FROM connectors
	`).Scan(&m.TotalConnectors, &m.ActiveConnectors)
	if err != nil {
		return nil, fmt.Errorf("querying connector counts: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(suppressed), 0) FROM canonical_events
	`).Scan(&m.TotalEvents, &m.SuppressedEvents)
	if err != nil {
		return nil, fmt.Errorf("querying event counts: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT provider, COUNT(*) FROM canonical_events GROUP BY provider`)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteConnector(row rowScanner) (*domain.Connector, error) {
	var (
		c           domain.Connector
		status      string
		pollSeconds int64
		rules       string
		lastSyncAt  sql.NullString
		lastSyncOK  bool
		lastSyncErr string
		createdAt   string
	)
	err := row.Scan(
		&c.ID, &c.Provider, &c.UserID, &status, &c.BaseURL, &c.APIKey, &pollSeconds, &rules,
		&c.SyncConfig.SupportsWebhook, &c.SyncConfig.SupportsPolling, &c.Cursor,
		&lastSyncAt, &lastSyncOK, &lastSyncErr, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = domain.ConnectorStatus(status)
	c.PollInterval = time.Duration(pollSeconds) * time.Second
	c.LastSyncStatus = domain.SyncOutcome{Success: lastSyncOK, Error: lastSyncErr}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if lastSyncAt.Valid {
		t, err := parseTime(lastSyncAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_sync_at: %w", err)
		}
		c.LastSync = &t
	}
	if c.Rules, err = decodeRules([]byte(rules)); err != nil {
		return nil, err
	}
	return &c, nil
}
