//go:build sqlite
// +build sqlite

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"mcwatch/pkg/logx"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    key        TEXT NOT NULL,
    doc        TEXT NOT NULL,
    PRIMARY KEY (collection, key)
);`

// sqliteStore keeps one row per (collection, scope key). The whole-document
// replace contract is preserved: Write/Transaction swap the full collection
// inside one SQL transaction.
type sqliteStore struct {
	log logx.Logger
	db  *sql.DB

	// mu serializes Transaction read-modify-write cycles; SQLite itself
	// only sees one writer (MaxOpenConns=1).
	mu sync.Mutex
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{log: log, db: db}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Read(ctx context.Context, collection string) (Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, doc FROM documents WHERE collection = ?`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	doc := Document{}
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		doc[key] = json.RawMessage(raw)
	}
	return doc, rows.Err()
}

func (s *sqliteStore) Write(ctx context.Context, collection string, doc Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ?`, collection); err != nil {
		return err
	}
	for key, raw := range doc {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents(collection, key, doc) VALUES(?,?,?)`,
			collection, key, string(raw),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) GetScoped(ctx context.Context, collection, key string) (json.RawMessage, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE collection = ? AND key = ?`,
		collection, key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

func (s *sqliteStore) SaveScoped(ctx context.Context, collection, key string, sub json.RawMessage) error {
	if len(sub) == 0 {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM documents WHERE collection = ? AND key = ?`, collection, key)
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents(collection, key, doc) VALUES(?,?,?)
		 ON CONFLICT(collection, key) DO UPDATE SET doc=excluded.doc`,
		collection, key, string(sub),
	)
	return err
}

func (s *sqliteStore) Transaction(ctx context.Context, collection string, fn func(doc Document) (Document, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.Read(ctx, collection)
	if err != nil {
		return err
	}
	next, err := fn(doc)
	if err != nil {
		return err
	}
	if next == nil {
		next = Document{}
	}
	return s.Write(ctx, collection, next)
}
