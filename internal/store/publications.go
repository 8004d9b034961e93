package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Publication statuses.
const (
	StatusPublished = "published"
	StatusFailed    = "failed"
)

// Publication is one row of the publish ledger.
type Publication struct {
	ID         uuid.UUID
	RepoID     string
	InputPath  string
	RowsLoaded int
	Records    int
	Status     string
	CommitURL  string
	CommitOID  string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// RecordPublication inserts a ledger entry for a finished run.
func (s *Store) RecordPublication(ctx context.Context, p Publication) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO dataset_publications (id, repo_id, input_path, rows_loaded, records, status, commit_url, commit_oid, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), $10, $11)`,
		p.ID, p.RepoID, p.InputPath, p.RowsLoaded, p.Records, p.Status,
		p.CommitURL, p.CommitOID, p.Error, p.StartedAt, p.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert dataset_publication: %w", err)
	}
	return nil
}

// LatestPublication returns the most recent ledger entry for a repository,
// or nil if none exists.
func (s *Store) LatestPublication(ctx context.Context, repoID string) (*Publication, error) {
	var p Publication
	var commitURL, commitOID, errText *string
	err := s.pool.QueryRow(ctx, `
		SELECT id, repo_id, input_path, rows_loaded, records, status, commit_url, commit_oid, error, started_at, finished_at
		FROM dataset_publications
		WHERE repo_id = $1
		ORDER BY finished_at DESC
		LIMIT 1`, repoID,
	).Scan(&p.ID, &p.RepoID, &p.InputPath, &p.RowsLoaded, &p.Records, &p.Status,
		&commitURL, &commitOID, &errText, &p.StartedAt, &p.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query dataset_publications: %w", err)
	}
	if commitURL != nil {
		p.CommitURL = *commitURL
	}
	if commitOID != nil {
		p.CommitOID = *commitOID
	}
	if errText != nil {
		p.Error = *errText
	}
	return &p, nil
}
