package sinks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"fightarena/server/logging"
)

// SQLite indexes events into an append-only audit table. The table is
// session-scoped; the simulation never reads it back.
type SQLite struct {
	db     *sql.DB
	insert *sql.Stmt
}

// OpenSQLite opens (or creates) the audit database at path.
func OpenSQLite(cfg logging.SQLiteConfig) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, errors.New("empty sqlite path")
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	insert, err := db.Prepare(`INSERT INTO events
		(tick, time, type, severity, category, actor_kind, actor_id, targets, payload, extra, command_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	return &SQLite{db: db, insert: insert}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			time TEXT NOT NULL,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			category TEXT,
			actor_kind TEXT,
			actor_id TEXT,
			targets TEXT,
			payload TEXT,
			extra TEXT,
			command_id TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS events_type_tick ON events(type, tick);`,
		`CREATE INDEX IF NOT EXISTS events_severity ON events(severity);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Write satisfies logging.Sink.
func (s *SQLite) Write(event logging.Event) error {
	targets, err := jsonOrNull(event.Targets)
	if err != nil {
		return err
	}
	payload, err := jsonOrNull(event.Payload)
	if err != nil {
		return err
	}
	extra, err := jsonOrNull(event.Extra)
	if err != nil {
		return err
	}
	_, err = s.insert.Exec(
		int64(event.Tick),
		event.Time.UTC().Format(time.RFC3339Nano),
		string(event.Type),
		event.Severity.String(),
		event.Category,
		string(event.Actor.Kind),
		event.Actor.ID,
		targets,
		payload,
		extra,
		event.CommandID,
	)
	return err
}

// CountByType returns how many rows of the given type were recorded.
func (s *SQLite) CountByType(ctx context.Context, eventType logging.EventType) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE type = ?`, string(eventType)).Scan(&n)
	return n, err
}

// Close releases the database handle.
func (s *SQLite) Close(context.Context) error {
	if s.insert != nil {
		_ = s.insert.Close()
	}
	return s.db.Close()
}

func jsonOrNull(v any) (any, error) {
	switch typed := v.(type) {
	case nil:
		return nil, nil
	case []logging.EntityRef:
		if len(typed) == 0 {
			return nil, nil
		}
	case map[string]any:
		if len(typed) == 0 {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
