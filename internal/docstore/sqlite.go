package docstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"benchbook/pkg/domain"
)

// SQLite implements Store on a single embedded database file with one
// documents table. Payload semantics are identical to the directory driver:
// every write replaces the whole JSON document.
type SQLite struct {
	db   *sql.DB
	path string
}

// NewSQLite opens (or creates) the database file and ensures the documents
// table exists.
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = "benchbook.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		kind TEXT NOT NULL,
		id TEXT NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (kind, id)
	)`); err != nil {
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &SQLite{db: db, path: path}, nil
}

func (s *SQLite) Driver() Driver { return DriverSQLite }

// Path returns the configured database path.
func (s *SQLite) Path() string { return s.path }

// DB exposes the underlying handle for integration testing hooks.
func (s *SQLite) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Read(kind domain.Kind, id string, v any) error {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM documents WHERE kind=? AND id=?`, string(kind), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotExists
	}
	if err != nil {
		return fmt.Errorf("select %s/%s: %w", kind, id, err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode %s/%s: %w", kind, id, err)
	}
	return nil
}

func (s *SQLite) Write(kind domain.Kind, id string, v any) error {
	if err := sanitizeID(id); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if _, err := s.db.Exec(
		`INSERT INTO documents(kind,id,payload) VALUES(?,?,?)
		 ON CONFLICT(kind,id) DO UPDATE SET payload=excluded.payload`,
		string(kind), id, payload); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", kind, id, err)
	}
	return nil
}

func (s *SQLite) WriteNew(kind domain.Kind, id string, v any) error {
	exists, err := s.Exists(kind, id)
	if err != nil {
		return err
	}
	if exists {
		return ErrExists
	}
	return s.Write(kind, id, v)
}

func (s *SQLite) Exists(kind domain.Kind, id string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM documents WHERE kind=? AND id=?`, string(kind), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probe %s/%s: %w", kind, id, err)
	}
	return true, nil
}

func (s *SQLite) List(kind domain.Kind) ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM documents WHERE kind=? ORDER BY id`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer func() { _ = rows.Close() }()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLite) Delete(kind domain.Kind, id string) error {
	if _, err := s.db.Exec(`DELETE FROM documents WHERE kind=? AND id=?`, string(kind), id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", kind, id, err)
	}
	return nil
}
