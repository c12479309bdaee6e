package docstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"benchbook/pkg/domain"
)

const (
	postgresDriver = "pgx"
	// Default DSN keeps parity with OpenFromEnv defaults while allowing overrides.
	defaultPostgresDSN = "postgres://localhost/benchbook?sslmode=disable"
)

// Postgres implements Store on a PostgreSQL documents table, mirroring the
// sqlite driver's wholesale-rewrite semantics.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a connection with the provided DSN (falling back to the
// default) and ensures the documents table exists.
func NewPostgres(dsn string) (*Postgres, error) {
	if dsn == "" {
		dsn = defaultPostgresDSN
	}
	db, err := sql.Open(postgresDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		kind TEXT NOT NULL,
		id TEXT NOT NULL,
		payload JSONB NOT NULL,
		PRIMARY KEY (kind, id)
	)`); err != nil {
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Driver() Driver { return DriverPostgres }

// DB exposes the underlying handle for integration testing hooks.
func (p *Postgres) DB() *sql.DB { return p.db }

// Close releases the database handle.
func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Read(kind domain.Kind, id string, v any) error {
	var payload []byte
	err := p.db.QueryRow(`SELECT payload FROM documents WHERE kind=$1 AND id=$2`, string(kind), id).Scan(&payload)
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

func (p *Postgres) Write(kind domain.Kind, id string, v any) error {
	if err := sanitizeID(id); err != nil {
		return err
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if _, err := p.db.Exec(
		`INSERT INTO documents(kind,id,payload) VALUES($1,$2,$3)
		 ON CONFLICT (kind,id) DO UPDATE SET payload=excluded.payload`,
		string(kind), id, payload); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", kind, id, err)
	}
	return nil
}

func (p *Postgres) WriteNew(kind domain.Kind, id string, v any) error {
	exists, err := p.Exists(kind, id)
	if err != nil {
		return err
	}
	if exists {
		return ErrExists
	}
	return p.Write(kind, id, v)
}

func (p *Postgres) Exists(kind domain.Kind, id string) (bool, error) {
	var one int
	err := p.db.QueryRow(`SELECT 1 FROM documents WHERE kind=$1 AND id=$2`, string(kind), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probe %s/%s: %w", kind, id, err)
	}
	return true, nil
}

func (p *Postgres) List(kind domain.Kind) ([]string, error) {
	rows, err := p.db.Query(`SELECT id FROM documents WHERE kind=$1 ORDER BY id`, string(kind))
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

func (p *Postgres) Delete(kind domain.Kind, id string) error {
	if _, err := p.db.Exec(`DELETE FROM documents WHERE kind=$1 AND id=$2`, string(kind), id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", kind, id, err)
	}
	return nil
}
