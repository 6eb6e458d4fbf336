// Package sqlite provides a SQLite-backed store.Store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/cognicore/reason/pkg/reason/fact"
	"github.com/cognicore/reason/pkg/reason/internalerr"
	"github.com/cognicore/reason/pkg/reason/rule"
	"github.com/cognicore/reason/pkg/reason/store"
)

// sqliteStore implements store.Store using SQLite.
type sqliteStore struct {
	db *sql.DB
}

// Open opens a SQLite database with WAL mode enabled and initializes
// the schema.
func Open(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL gives readers a consistent view while a writer is active
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist. Nested structures
// (condition, action, value, constraints) are stored as JSON documents;
// the scalar columns exist for ordering and ad-hoc inspection.
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS rules (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	priority INTEGER NOT NULL DEFAULT 0,
	enabled INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	doc TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS facts (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	source TEXT NOT NULL,
	confidence REAL NOT NULL,
	created_at TEXT NOT NULL,
	doc TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rules_priority ON rules(priority DESC);
CREATE INDEX IF NOT EXISTS idx_facts_name ON facts(name);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// ListRules returns all rules ordered by creation time.
func (s *sqliteStore) ListRules(ctx context.Context) ([]*rule.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM rules ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*rule.Rule
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		r, err := rule.FromJSON([]byte(doc))
		if err != nil {
			return nil, fmt.Errorf("decode rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveRule inserts or replaces a rule by id.
func (s *sqliteStore) SaveRule(ctx context.Context, r *rule.Rule) error {
	if r == nil || r.ID == "" {
		return internalerr.ErrInvalidInput
	}
	doc, err := json.Marshal(r)
	if err != nil {
		return err
	}
	enabled := 0
	if r.Enabled {
		enabled = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rules (id, name, priority, enabled, created_at, doc)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			priority = excluded.priority,
			enabled = excluded.enabled,
			doc = excluded.doc
	`, r.ID, r.Name, r.Priority, enabled, r.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"), string(doc))
	return err
}

// DeleteRule removes a rule by id.
func (s *sqliteStore) DeleteRule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return internalerr.ErrNotFound
	}
	return nil
}

// ListFacts returns all facts ordered by creation time.
func (s *sqliteStore) ListFacts(ctx context.Context) ([]*fact.Fact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM facts ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*fact.Fact
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		f, err := fact.FromJSON([]byte(doc))
		if err != nil {
			return nil, fmt.Errorf("decode fact: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// SaveFact inserts or replaces a fact by id.
func (s *sqliteStore) SaveFact(ctx context.Context, f *fact.Fact) error {
	if f == nil || f.ID == "" {
		return internalerr.ErrInvalidInput
	}
	doc, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO facts (id, name, source, confidence, created_at, doc)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			source = excluded.source,
			confidence = excluded.confidence,
			doc = excluded.doc
	`, f.ID, f.Name, string(f.Source), f.Confidence, f.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"), string(doc))
	return err
}

// DeleteFact removes a fact by id.
func (s *sqliteStore) DeleteFact(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM facts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return internalerr.ErrNotFound
	}
	return nil
}
