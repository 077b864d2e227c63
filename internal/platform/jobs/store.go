package jobs

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PGRunStore struct {
	DB *pgxpool.Pool
}

func NewPGRunStore(db *pgxpool.Pool) *PGRunStore {
	return &PGRunStore{DB: db}
}

func (s *PGRunStore) StartRun(ctx context.Context, tenantID, jobType string) (string, error) {
	var runID string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (tenant_id, job_type, status)
    VALUES ($1,$2,$3)
    RETURNING id::text
  `, tenantID, jobType, StatusRunning).Scan(&runID)
	return runID, err
}

func (s *PGRunStore) FinishRun(ctx context.Context, runID, status string, details []byte) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id::text = $3
  `, status, details, runID)
	return err
}
