package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/shorts-autopilot/internal/types"
)

const jobColumns = `id, type, status, niche_id, video_id, error_message, retry_count, retry_of,
	created_at, started_at, completed_at`

// CreateJob inserts a job and assigns its ID and creation time
func (db *DB) CreateJob(ctx context.Context, job *types.WorkflowJob) error {
	retryOf, err := optionalID(job.RetryOf)
	if err != nil {
		return err
	}

	var id uuid.UUID
	err = db.pool.QueryRow(ctx,
		`INSERT INTO workflow_jobs (type, status, niche_id, video_id, retry_count, retry_of, started_at, completed_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
		 RETURNING id, created_at`,
		job.Type, job.Status, job.NicheID, job.VideoID, job.RetryCount, retryOf, job.StartedAt, job.CompletedAt,
	).Scan(&id, &job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	job.ID = id.String()
	return nil
}

// UpdateJob persists the mutable fields of a job (last write wins).
// started_at and completed_at are only filled once; later writes never move them.
func (db *DB) UpdateJob(ctx context.Context, job *types.WorkflowJob) error {
	id, err := parseID(job.ID)
	if err != nil {
		return err
	}

	var errMsg *string
	if job.Error != "" {
		errMsg = &job.Error
	}

	result, err := db.pool.Exec(ctx,
		`UPDATE workflow_jobs
		 SET status = $1, video_id = NULLIF($2, ''), error_message = $3,
		     started_at = COALESCE(started_at, $4), completed_at = COALESCE(completed_at, $5)
		 WHERE id = $6`,
		job.Status, job.VideoID, errMsg, job.StartedAt, job.CompletedAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("job not found: %s", job.ID)
	}
	return nil
}

// GetJob retrieves a job by ID. Returns nil, nil when it does not exist.
func (db *DB) GetJob(ctx context.Context, jobID string) (*types.WorkflowJob, error) {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return nil, nil
	}

	row := db.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM workflow_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListJobs retrieves jobs with optional filters, newest first
func (db *DB) ListJobs(ctx context.Context, filters types.JobFilters) ([]types.WorkflowJob, error) {
	if filters.Limit == 0 {
		filters.Limit = 50
	}

	query := `SELECT ` + jobColumns + ` FROM workflow_jobs WHERE 1=1`
	args := []any{}
	argNum := 1

	if filters.NicheID != "" {
		query += fmt.Sprintf(" AND niche_id = $%d", argNum)
		args = append(args, filters.NicheID)
		argNum++
	}
	if filters.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", argNum)
		args = append(args, filters.Type)
		argNum++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, filters.Status)
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argNum)
	args = append(args, filters.Limit)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []types.WorkflowJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*types.WorkflowJob, error) {
	var j types.WorkflowJob
	var id uuid.UUID
	var retryOf *uuid.UUID
	var videoID, errMsg *string
	if err := row.Scan(&id, &j.Type, &j.Status, &j.NicheID, &videoID, &errMsg, &j.RetryCount, &retryOf,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt); err != nil {
		return nil, err
	}
	j.ID = id.String()
	j.VideoID = derefString(videoID)
	j.Error = derefString(errMsg)
	j.RetryOf = idString(retryOf)
	return &j, nil
}
