package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/quantive/binance-mcp/pkg/schema"
)

// Event types recorded by the vault.
const (
	EventAccountAdded   = "account_added"
	EventAccountUpdated = "account_updated"
	EventAccountRemoved = "account_removed"
	EventKeyRotated     = "key_rotated"
	EventBackupCreated  = "backup_created"
	EventClientBuilt    = "client_built"
	EventResolveFailed  = "resolve_failed"
	EventCacheCleared   = "cache_cleared"
)

// Event is one audit record. Payloads carry operational detail (market type,
// backup path, error code) and never secret material.
type Event struct {
	ID        string         `json:"id"`
	AccountID string         `json:"account_id,omitempty"`
	Type      string         `json:"event_type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Sequence  int64          `json:"sequence"`
}

// Filter narrows audit queries.
type Filter struct {
	AccountID string
	EventType string
	Since     *time.Time
	Limit     int
}

// Log is the append-only audit trail, persisted in a libSQL database next to
// the config store. Audit writes must never block the primary operation;
// callers log and continue on error.
type Log struct {
	db *sql.DB
}

// Open opens (or creates) the audit database at the given path and applies
// pending migrations. The path should be a file URI, e.g. "file:/path/audit.db".
func Open(ctx context.Context, dbPath string) (*Log, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeAudit, "open audit db").WithCause(err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Log{db: db}, nil
}

// Close closes the database.
func (l *Log) Close() error { return l.db.Close() }

// Append records an event with a monotonically increasing per-account
// sequence. A write-intent statement forces immediate lock acquisition so
// concurrent appenders cannot interleave sequence reads and writes.
func (l *Log) Append(ctx context.Context, accountID, eventType string, payload map[string]any) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return schema.NewError(schema.ErrCodeAudit, "begin tx").WithCause(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, name) VALUES (-1, '_lock_noop')`); err != nil {
		return schema.NewError(schema.ErrCodeAudit, "acquire write lock").WithCause(err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schema_version WHERE version = -1`); err != nil {
		return schema.NewError(schema.ErrCodeAudit, "cleanup write lock").WithCause(err)
	}

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM events WHERE account_id IS ?`, nullStr(accountID),
	).Scan(&seq)
	if err != nil {
		return schema.NewError(schema.ErrCodeAudit, "next sequence").WithCause(err)
	}

	var payloadJSON sql.NullString
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return schema.NewError(schema.ErrCodeAudit, "marshal payload").WithCause(err)
		}
		payloadJSON = sql.NullString{String: string(raw), Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (id, account_id, event_type, payload, timestamp, sequence)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), nullStr(accountID), eventType, payloadJSON, time.Now().UTC(), seq,
	)
	if err != nil {
		return schema.NewError(schema.ErrCodeAudit, "insert event").WithCause(err)
	}

	if err := tx.Commit(); err != nil {
		return schema.NewError(schema.ErrCodeAudit, "commit event").WithCause(err)
	}
	return nil
}

// List returns events matching the filter, newest first.
func (l *Log) List(ctx context.Context, filter Filter) ([]*Event, error) {
	query := `SELECT id, account_id, event_type, payload, timestamp, sequence FROM events WHERE 1=1`
	var args []any
	if filter.AccountID != "" {
		query += ` AND account_id = ?`
		args = append(args, filter.AccountID)
	}
	if filter.EventType != "" {
		query += ` AND event_type = ?`
		args = append(args, filter.EventType)
	}
	if filter.Since != nil {
		query += ` AND timestamp >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY timestamp DESC, sequence DESC`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT %d`, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeAudit, "query events").WithCause(err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var acct, payload sql.NullString
		if err := rows.Scan(&e.ID, &acct, &e.Type, &payload, &e.Timestamp, &e.Sequence); err != nil {
			return nil, schema.NewError(schema.ErrCodeAudit, "scan event").WithCause(err)
		}
		e.AccountID = acct.String
		if payload.Valid {
			_ = json.Unmarshal([]byte(payload.String), &e.Payload)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
