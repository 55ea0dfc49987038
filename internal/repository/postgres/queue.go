package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/novadesk/triage/internal/domain"
)

// JobRepo is the pipeline work queue backed by the pipeline_jobs table.
// Claiming uses FOR UPDATE SKIP LOCKED so multiple workers never pick up
// the same job.
type JobRepo struct{ db *sql.DB }

// NewJobRepo creates a Postgres-backed job queue.
func NewJobRepo(db *sql.DB) *JobRepo { return &JobRepo{db: db} }

// Enqueue queues a pipeline run for a ticket.
func (r *JobRepo) Enqueue(ctx context.Context, ticketID uuid.UUID, opts domain.ProcessOptions) (*domain.Job, error) {
	job := &domain.Job{
		ID:       uuid.New(),
		TicketID: ticketID,
		Options:  opts,
		Status:   domain.JobPending,
	}
	optsJSON, _ := json.Marshal(opts)

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO pipeline_jobs (id, ticket_id, options, status, created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', NOW(), NOW())
		RETURNING created_at, updated_at`,
		job.ID, job.TicketID, optsJSON).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	return job, nil
}

// Claim atomically takes up to limit pending jobs for a worker. Jobs
// that exceeded maxAttempts are not handed out again.
func (r *JobRepo) Claim(ctx context.Context, workerID string, limit, maxAttempts int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 1
	}
	rows, err := r.db.QueryContext(ctx, `
		UPDATE pipeline_jobs
		SET status = 'processing',
		    attempts = attempts + 1,
		    claimed_by = $1,
		    claimed_at = NOW(),
		    updated_at = NOW()
		WHERE id IN (
			SELECT id FROM pipeline_jobs
			WHERE status = 'pending' AND attempts < $3
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, ticket_id, options, status, attempts, COALESCE(last_error, ''),
		          COALESCE(claimed_by, ''), claimed_at, created_at, updated_at`,
		workerID, limit, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		var (
			job       domain.Job
			optsJSON  []byte
			claimedAt sql.NullTime
		)
		if err := rows.Scan(
			&job.ID, &job.TicketID, &optsJSON, &job.Status, &job.Attempts, &job.LastError,
			&job.ClaimedBy, &claimedAt, &job.CreatedAt, &job.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job.ClaimedAt = timePtr(claimedAt)
		if len(optsJSON) > 0 {
			_ = json.Unmarshal(optsJSON, &job.Options)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Complete marks a job done.
func (r *JobRepo) Complete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE pipeline_jobs
		SET status = 'completed', completed_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// Fail records a failed attempt. Jobs with attempts left go back to
// pending; exhausted jobs are parked as failed.
func (r *JobRepo) Fail(ctx context.Context, id uuid.UUID, cause string, maxAttempts int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE pipeline_jobs
		SET status = CASE WHEN attempts >= $3 THEN 'failed' ELSE 'pending' END,
		    last_error = $2,
		    claimed_by = NULL,
		    claimed_at = NULL,
		    updated_at = NOW()
		WHERE id = $1`, id, cause, maxAttempts)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// ReleaseStale requeues jobs whose worker went quiet. Returns how many
// jobs were released.
func (r *JobRepo) ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pipeline_jobs
		SET status = 'pending', claimed_by = NULL, claimed_at = NULL, updated_at = NOW()
		WHERE status = 'processing' AND claimed_at < NOW() - $1::interval`,
		fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("release stale jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// PendingCount reports how many jobs are waiting.
func (r *JobRepo) PendingCount(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pipeline_jobs WHERE status = 'pending'`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending jobs: %w", err)
	}
	return n, nil
}
