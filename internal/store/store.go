// Package store persists accepted clients in PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/ClientImport/internal/config"
	"github.com/JonMunkholm/ClientImport/internal/core"
)

// ErrNotConfigured is returned by callers that need a database when none is
// configured.
var ErrNotConfigured = errors.New("database not configured")

// uniqueViolation is the SQLSTATE of a unique constraint failure.
const uniqueViolation = "23505"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS client_import_runs (
	id          uuid PRIMARY KEY,
	template    text NOT NULL,
	file_name   text NOT NULL,
	committed   integer NOT NULL,
	created_at  timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS clients (
	id              uuid PRIMARY KEY,
	tax_key         text NOT NULL UNIQUE,
	tax_identifier  text NOT NULL,
	name            text NOT NULL,
	email           text,
	phone           text,
	address         text,
	city            text,
	postal_code     text,
	country         text,
	client_since    date,
	credit_limit    numeric,
	import_run_id   uuid NOT NULL REFERENCES client_import_runs(id),
	source_row      integer NOT NULL,
	created_at      timestamptz NOT NULL DEFAULT now()
);
`

// clientColumns is the COPY column order; clientRow builds values in it.
var clientColumns = []string{
	"id", "tax_key", "tax_identifier", "name", "email", "phone", "address",
	"city", "postal_code", "country", "client_since", "credit_limit",
	"import_run_id", "source_row",
}

// Connect opens a connection pool using the database settings and verifies
// it with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if !cfg.HasDatabase() {
		return nil, ErrNotConfigured
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Store reads and writes clients.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an open pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// ExistingKeys loads the normalized tax identifiers of all stored clients.
func (s *Store) ExistingKeys(ctx context.Context) (core.KeySet, error) {
	rows, err := s.pool.Query(ctx, `SELECT tax_key FROM clients`)
	if err != nil {
		return nil, fmt.Errorf("query client keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("read client keys: %w", err)
	}
	return core.NewKeySet(keys...), nil
}

// SaveClients records the run and copies records into clients in one
// transaction. Either every record is stored or none is.
func (s *Store) SaveClients(ctx context.Context, run Run, records []core.CandidateRecord) (int64, error) {
	runID, err := uuid.Parse(run.ID)
	if err != nil {
		return 0, fmt.Errorf("invalid run id %q: %w", run.ID, err)
	}

	rows := make([][]any, len(records))
	for i, rec := range records {
		rows[i] = clientRow(rec, runID, uuid.New())
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO client_import_runs (id, template, file_name, committed)
		 VALUES ($1, $2, $3, $4)`,
		runID, run.Template, run.File, len(records),
	)
	if err != nil {
		return 0, fmt.Errorf("record import run: %w", err)
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"clients"}, clientColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy clients: %w", keyConflict(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", keyConflict(err))
	}
	return n, nil
}

// keyConflict marks unique violations on the clients table with
// core.ErrKeyConflict. Other errors are returned unchanged.
func keyConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %w", core.ErrKeyConflict, err)
	}
	return err
}

// Run describes one committed import.
type Run struct {
	ID        string    `json:"id"`
	Template  string    `json:"template"`
	File      string    `json:"file"`
	Committed int       `json:"committed"`
	CreatedAt time.Time `json:"createdAt"`
}

// RecentRuns returns the latest import runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, template, file_name, committed, created_at
		 FROM client_import_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query import runs: %w", err)
	}
	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Run, error) {
		var r Run
		err := row.Scan(&r.ID, &r.Template, &r.File, &r.Committed, &r.CreatedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("read import runs: %w", err)
	}
	return runs, nil
}

// Committer returns a core.CommitFunc that saves records under the given
// template and file name.
func (s *Store) Committer(template, file string) core.CommitFunc {
	return func(ctx context.Context, runID string, records []core.CandidateRecord) (int64, error) {
		return s.SaveClients(ctx, Run{ID: runID, Template: template, File: file}, records)
	}
}
