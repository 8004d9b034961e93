package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS dataset_publications (
	id          UUID PRIMARY KEY,
	repo_id     TEXT NOT NULL,
	input_path  TEXT NOT NULL,
	rows_loaded INTEGER NOT NULL,
	records     INTEGER NOT NULL,
	status      TEXT NOT NULL,
	commit_url  TEXT,
	commit_oid  TEXT,
	error       TEXT,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
)`

// EnsureSchema creates the publication ledger table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create dataset_publications: %w", err)
	}
	return nil
}
