package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
	"github.com/JakeFAU/ai-readiness-scorer/internal/store"
)

const jobColumns = `id, project_id, status, pages_found, pages_crawled, pages_scored, pages_errored,
	created_at, started_at, completed_at, config, error_message, summary`

// CreateJob inserts a job row.
func (r *Repository) CreateJob(ctx context.Context, job crawler.Job) error {
	cfg, err := jsonb(job.Config)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
INSERT INTO jobs (id, project_id, status, created_at, config, error_message)
VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID, job.ProjectID, string(job.Status), job.CreatedAt, cfg, job.ErrorMessage)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob loads one job.
func (r *Repository) GetJob(ctx context.Context, jobID string) (crawler.Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID)
	job, err := scanJob(row)
	if err != nil {
		return crawler.Job{}, notFound(err, "get job")
	}
	return job, nil
}

// ListJobs returns a project's jobs, newest first.
func (r *Repository) ListJobs(ctx context.Context, projectID string, limit, offset int) ([]crawler.Job, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+jobColumns+` FROM jobs
WHERE project_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`, projectID, limit, max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []crawler.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// TransitionJob updates the status only when it still equals t.From.
func (r *Repository) TransitionJob(ctx context.Context, t store.JobTransition) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE jobs SET
	status = $1,
	started_at = CASE WHEN $1 = 'crawling' AND started_at IS NULL THEN $2 ELSE started_at END,
	completed_at = CASE WHEN $3 THEN $2 ELSE completed_at END,
	error_message = CASE WHEN $4 = '' THEN error_message ELSE $4 END
WHERE id = $5 AND status = $6`,
		string(t.To), t.At, t.To.IsTerminal(), t.ErrorMessage, t.JobID, string(t.From))
	if err != nil {
		return fmt.Errorf("transition job: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current string
	if err := r.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, t.JobID).Scan(&current); err != nil {
		return notFound(err, "read job status")
	}
	return fmt.Errorf("%w: expected %s, found %s", store.ErrStatusConflict, t.From, current)
}

// IncrementCounters adds delta in a single UPDATE.
func (r *Repository) IncrementCounters(ctx context.Context, jobID string, delta crawler.JobCounters) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE jobs SET
	pages_found = pages_found + $1,
	pages_crawled = pages_crawled + $2,
	pages_scored = pages_scored + $3,
	pages_errored = pages_errored + $4
WHERE id = $5`,
		delta.PagesFound, delta.PagesCrawled, delta.PagesScored, delta.PagesErrored, jobID)
	if err != nil {
		return fmt.Errorf("increment counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SaveSummary stores the job-level aggregate.
func (r *Repository) SaveSummary(ctx context.Context, jobID string, summary crawler.JobSummary) error {
	raw, err := jsonb(summary)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE jobs SET summary = $1 WHERE id = $2`, raw, jobID)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (crawler.Job, error) {
	var (
		job        crawler.Job
		status     string
		cfg        []byte
		rawSummary []byte
	)
	err := row.Scan(
		&job.ID,
		&job.ProjectID,
		&status,
		&job.PagesFound,
		&job.PagesCrawled,
		&job.PagesScored,
		&job.PagesErrored,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
		&cfg,
		&job.ErrorMessage,
		&rawSummary,
	)
	if err != nil {
		return crawler.Job{}, err
	}
	job.Status = crawler.JobStatus(status)
	if job.Config, err = decodeMap(cfg); err != nil {
		return crawler.Job{}, err
	}
	if len(rawSummary) > 0 {
		var summary crawler.JobSummary
		if err := json.Unmarshal(rawSummary, &summary); err != nil {
			return crawler.Job{}, fmt.Errorf("decode summary: %w", err)
		}
		job.Summary = &summary
	}
	return job, nil
}
