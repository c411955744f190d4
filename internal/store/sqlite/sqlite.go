// Package sqlite implements the gateway datastore on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store holds the roles, subscriptions, usage, context, vault and analytics
// tables the gateway reads and writes.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at the given path and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serialises writers so concurrent usage upserts
	// never hit SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS user_roles (
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, role)
	);

	CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		tier TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_subscriptions_user ON subscriptions(user_id, status, created_at);

	CREATE TABLE IF NOT EXISTS usage_records (
		user_id TEXT NOT NULL,
		week_start TEXT NOT NULL,
		minutes INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, week_start)
	);

	CREATE TABLE IF NOT EXISTS domains (
		user_id TEXT NOT NULL,
		domain TEXT NOT NULL,
		authority_score INTEGER NOT NULL DEFAULT 0,
		traffic_estimate INTEGER NOT NULL DEFAULT 0,
		backlink_count INTEGER NOT NULL DEFAULT 0,
		audited_at DATETIME,
		PRIMARY KEY (user_id, domain)
	);

	CREATE TABLE IF NOT EXISTS domain_contexts (
		user_id TEXT NOT NULL,
		domain TEXT NOT NULL,
		business_name TEXT NOT NULL DEFAULT '',
		primary_keyword TEXT NOT NULL DEFAULT '',
		services TEXT NOT NULL DEFAULT '[]',
		service_areas TEXT NOT NULL DEFAULT '[]',
		competitors TEXT NOT NULL DEFAULT '[]',
		tone TEXT NOT NULL DEFAULT '',
		research TEXT NOT NULL DEFAULT '{}',
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, domain)
	);

	CREATE TABLE IF NOT EXISTS vault_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		domain TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		report_type TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '{}',
		summary TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		is_favorite INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_vault_user ON vault_entries(user_id, created_at);

	CREATE TABLE IF NOT EXISTS visitor_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		domain TEXT NOT NULL,
		visitor_id TEXT NOT NULL,
		page TEXT NOT NULL DEFAULT '',
		referrer TEXT NOT NULL DEFAULT '',
		company TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_visitor_domain ON visitor_events(user_id, domain, created_at);

	CREATE TABLE IF NOT EXISTS generated_content (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		domain TEXT NOT NULL,
		content_type TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_generated_domain ON generated_content(user_id, domain, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func marshalList(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// decodeList is unmarshalList for columns that are merged and written
// back, where a corrupt value must not be silently replaced.
func decodeList(column, s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", column, err)
	}
	return out, nil
}

func unmarshalList(s string) []string {
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
