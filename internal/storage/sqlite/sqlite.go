package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/michaelbrown/schoolbot/internal/storage"

	_ "modernc.org/sqlite"
)

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02 15:04:05.000000"

const traceColumns = `id, chat_id, user_id, message, response, status, http_status, error, calls, duration_ms, created_at`

// SQLiteStore implements storage.Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and runs migrations.
// Use ":memory:" for an in-memory database (useful for testing).
func Open(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Each connection to ":memory:" is a separate database, and sqlite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveTrace(ctx context.Context, t *storage.Trace) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = storage.StatusOK
	}

	calls := t.Calls
	if calls == nil {
		calls = []storage.TraceCall{}
	}
	data, err := json.Marshal(calls)
	if err != nil {
		return fmt.Errorf("marshaling calls: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO traces (`+traceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, nullInt(t.ChatID), nullInt(t.UserID), t.Message, t.Response,
		string(t.Status), t.HTTPStatus, t.Error, string(data),
		t.Duration.Milliseconds(), t.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting trace: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTrace(ctx context.Context, id string) (*storage.Trace, error) {
	// Try exact match first, then prefix match
	t, err := scanTrace(s.db.QueryRowContext(ctx,
		`SELECT `+traceColumns+` FROM traces WHERE id = ?`, id))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("querying trace: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+traceColumns+` FROM traces WHERE id LIKE ? || '%'`, id)
	if err != nil {
		return nil, fmt.Errorf("querying trace: %w", err)
	}
	defer rows.Close()

	var matches []*storage.Trace
	for rows.Next() {
		t, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous trace prefix %q matches %d traces", id, len(matches))
	}
}

func (s *SQLiteStore) ListTraces(ctx context.Context, opts storage.ListOptions) ([]storage.Trace, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + traceColumns + ` FROM traces WHERE 1=1`
	var args []any

	if opts.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(opts.Status))
	}
	if opts.ChatID != nil {
		query += ` AND chat_id = ?`
		args = append(args, *opts.ChatID)
	}

	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing traces: %w", err)
	}
	defer rows.Close()

	var traces []storage.Trace
	for rows.Next() {
		t, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}
		traces = append(traces, *t)
	}
	return traces, rows.Err()
}

func (s *SQLiteStore) DeleteTrace(ctx context.Context, id string) error {
	// Resolve prefix first
	t, err := s.GetTrace(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM traces WHERE id = ?`, t.ID)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner works with both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanTrace(s scanner) (*storage.Trace, error) {
	var (
		t                storage.Trace
		chatID, userID   sql.NullInt64
		status           string
		calls            string
		createdAt        any
		durationMS       int64
	)
	err := s.Scan(&t.ID, &chatID, &userID, &t.Message, &t.Response, &status,
		&t.HTTPStatus, &t.Error, &calls, &durationMS, &createdAt)
	if err != nil {
		return nil, err
	}

	t.Status = storage.TraceStatus(status)
	t.Duration = time.Duration(durationMS) * time.Millisecond
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("created_at of %s: %w", t.ID, err)
	}
	if chatID.Valid {
		t.ChatID = &chatID.Int64
	}
	if userID.Valid {
		t.UserID = &userID.Int64
	}
	if err := json.Unmarshal([]byte(calls), &t.Calls); err != nil {
		return nil, fmt.Errorf("unmarshaling calls of %s: %w", t.ID, err)
	}
	return &t, nil
}

// parseTime reads a created_at value. The driver returns time.Time for
// DATETIME columns it can parse and the raw text otherwise.
func parseTime(v any) (time.Time, error) {
	var text string
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		text = t
	case []byte:
		text = string(t)
	default:
		return time.Time{}, fmt.Errorf("unsupported type %T", v)
	}
	for _, layout := range []string{timeLayout, time.RFC3339Nano, time.DateTime} {
		if ts, err := time.Parse(layout, text); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", text)
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
