// Package store declares interfaces for persisting crawl and competitor data.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrStatusConflict signals that a job was no longer in the expected status
// when a transition was applied.
var ErrStatusConflict = errors.New("job status changed concurrently")

// JobTransition is a compare-and-set status change.
type JobTransition struct {
	JobID        string
	From         crawler.JobStatus
	To           crawler.JobStatus
	At           time.Time
	ErrorMessage string
}

// JobRepository persists crawl jobs.
type JobRepository interface {
	// CreateJob inserts a new job; the caller sets status pending.
	CreateJob(ctx context.Context, job crawler.Job) error
	// GetJob loads a job or returns ErrNotFound.
	GetJob(ctx context.Context, jobID string) (crawler.Job, error)
	// ListJobs returns a project's jobs, newest first.
	ListJobs(ctx context.Context, projectID string, limit, offset int) ([]crawler.Job, error)
	// TransitionJob applies t only if the job is still in t.From. It stamps
	// started_at on entering crawling and completed_at on terminal states.
	// Returns ErrStatusConflict when the stored status differs.
	TransitionJob(ctx context.Context, t JobTransition) error
	// IncrementCounters applies deltas atomically (no read-modify-write).
	IncrementCounters(ctx context.Context, jobID string, delta crawler.JobCounters) error
	// SaveSummary stores job-level aggregate scores.
	SaveSummary(ctx context.Context, jobID string, summary crawler.JobSummary) error
}

// PageRepository persists crawled pages.
type PageRepository interface {
	// InsertPages writes all pages in one batch operation.
	InsertPages(ctx context.Context, pages []crawler.Page) error
	GetPage(ctx context.Context, pageID string) (crawler.Page, error)
}

// ScoreRepository persists page scores.
type ScoreRepository interface {
	// InsertScores writes all scores in one batch operation.
	InsertScores(ctx context.Context, scores []crawler.PageScore) error
	ListScores(ctx context.Context, jobID string) ([]crawler.PageScore, error)
	GetScoreByPage(ctx context.Context, pageID string) (crawler.PageScore, error)
	// UpdateScore rewrites category scores, detail, and LLM scores of one row.
	UpdateScore(ctx context.Context, score crawler.PageScore) error
	// FindLLMScoresByHash returns cached LLM scores for identical content, or ErrNotFound.
	FindLLMScoresByHash(ctx context.Context, contentHash string) (crawler.LLMScores, error)
}

// IssueRepository persists issue instances. Rows are append-only.
type IssueRepository interface {
	// InsertIssues writes all issues in one batch operation.
	InsertIssues(ctx context.Context, issues []crawler.Issue) error
	ListIssues(ctx context.Context, jobID string, filter crawler.IssueFilter) ([]crawler.Issue, error)
	// IssueCodes returns the distinct issue codes raised for a job.
	IssueCodes(ctx context.Context, jobID string) ([]string, error)
}

// CompetitorRepository persists competitors, benchmarks, and events.
type CompetitorRepository interface {
	CreateCompetitor(ctx context.Context, c crawler.Competitor) error
	ListCompetitors(ctx context.Context, projectID string) ([]crawler.Competitor, error)
	// ListDueCompetitors returns monitored competitors whose next benchmark is at or before now.
	ListDueCompetitors(ctx context.Context, now time.Time, limit int) ([]crawler.Competitor, error)
	// LatestBenchmark returns the most recent benchmark or ErrNotFound.
	LatestBenchmark(ctx context.Context, competitorID string) (crawler.Benchmark, error)
	// SaveBenchmark stores a benchmark together with the events diffed
	// against it; either both persist or neither does.
	SaveBenchmark(ctx context.Context, b crawler.Benchmark, events []crawler.CompetitorEvent) error
	InsertEvents(ctx context.Context, events []crawler.CompetitorEvent) error
	ListEvents(ctx context.Context, competitorID string, limit int) ([]crawler.CompetitorEvent, error)
	UpdateMonitoring(ctx context.Context, competitorID string, update crawler.MonitoringUpdate) error
}

// Repository bundles every repository; both storage backends implement it.
type Repository interface {
	JobRepository
	PageRepository
	ScoreRepository
	IssueRepository
	CompetitorRepository
}
