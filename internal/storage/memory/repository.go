package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
	"github.com/JakeFAU/ai-readiness-scorer/internal/store"
)

var errDuplicate = errors.New("record already exists")

// Repository implements store.Repository with maps guarded by one mutex.
type Repository struct {
	mu          sync.RWMutex
	jobs        map[string]crawler.Job
	pages       map[string]crawler.Page
	scores      map[string]crawler.PageScore // keyed by page id
	scoreOrder  []string
	issues      []crawler.Issue
	competitors map[string]crawler.Competitor
	benchmarks  map[string][]crawler.Benchmark
	events      []crawler.CompetitorEvent
}

var _ store.Repository = (*Repository)(nil)

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		jobs:        make(map[string]crawler.Job),
		pages:       make(map[string]crawler.Page),
		scores:      make(map[string]crawler.PageScore),
		competitors: make(map[string]crawler.Competitor),
		benchmarks:  make(map[string][]crawler.Benchmark),
	}
}

// CreateJob stores a new job.
func (r *Repository) CreateJob(_ context.Context, job crawler.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("job %s: %w", job.ID, errDuplicate)
	}
	r.jobs[job.ID] = job
	return nil
}

// GetJob fetches a job by ID.
func (r *Repository) GetJob(_ context.Context, jobID string) (crawler.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return crawler.Job{}, store.ErrNotFound
	}
	return job, nil
}

// ListJobs returns a project's jobs, newest first.
func (r *Repository) ListJobs(_ context.Context, projectID string, limit, offset int) ([]crawler.Job, error) {
	r.mu.RLock()
	var out []crawler.Job
	for _, job := range r.jobs {
		if job.ProjectID == projectID {
			out = append(out, job)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, limit, offset), nil
}

// TransitionJob applies a compare-and-set status change.
func (r *Repository) TransitionJob(_ context.Context, t store.JobTransition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[t.JobID]
	if !ok {
		return store.ErrNotFound
	}
	if job.Status != t.From {
		return fmt.Errorf("%w: expected %s, found %s", store.ErrStatusConflict, t.From, job.Status)
	}
	job.Status = t.To
	at := t.At
	if t.To == crawler.JobStatusCrawling && job.StartedAt == nil {
		job.StartedAt = &at
	}
	if t.To.IsTerminal() {
		job.CompletedAt = &at
	}
	if t.ErrorMessage != "" {
		job.ErrorMessage = t.ErrorMessage
	}
	r.jobs[t.JobID] = job
	return nil
}

// IncrementCounters adds delta to the job counters.
func (r *Repository) IncrementCounters(_ context.Context, jobID string, delta crawler.JobCounters) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return store.ErrNotFound
	}
	job.PagesFound += delta.PagesFound
	job.PagesCrawled += delta.PagesCrawled
	job.PagesScored += delta.PagesScored
	job.PagesErrored += delta.PagesErrored
	r.jobs[jobID] = job
	return nil
}

// SaveSummary stores job-level scores.
func (r *Repository) SaveSummary(_ context.Context, jobID string, summary crawler.JobSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return store.ErrNotFound
	}
	job.Summary = &summary
	r.jobs[jobID] = job
	return nil
}

// InsertPages stores all pages or none.
func (r *Repository) InsertPages(_ context.Context, pages []crawler.Page) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pages {
		if _, exists := r.pages[p.ID]; exists {
			return fmt.Errorf("page %s: %w", p.ID, errDuplicate)
		}
	}
	for _, p := range pages {
		r.pages[p.ID] = p
	}
	return nil
}

// GetPage fetches a page by ID.
func (r *Repository) GetPage(_ context.Context, pageID string) (crawler.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	page, ok := r.pages[pageID]
	if !ok {
		return crawler.Page{}, store.ErrNotFound
	}
	return page, nil
}

// InsertScores stores all scores or none.
func (r *Repository) InsertScores(_ context.Context, scores []crawler.PageScore) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range scores {
		if _, exists := r.scores[s.PageID]; exists {
			return fmt.Errorf("score for page %s: %w", s.PageID, errDuplicate)
		}
	}
	for _, s := range scores {
		r.scores[s.PageID] = s
		r.scoreOrder = append(r.scoreOrder, s.PageID)
	}
	return nil
}

// ListScores returns a job's scores in insertion order.
func (r *Repository) ListScores(_ context.Context, jobID string) ([]crawler.PageScore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []crawler.PageScore
	for _, pageID := range r.scoreOrder {
		if s := r.scores[pageID]; s.JobID == jobID {
			out = append(out, s)
		}
	}
	return out, nil
}

// GetScoreByPage fetches the score of one page.
func (r *Repository) GetScoreByPage(_ context.Context, pageID string) (crawler.PageScore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scores[pageID]
	if !ok {
		return crawler.PageScore{}, store.ErrNotFound
	}
	return s, nil
}

// UpdateScore replaces the mutable columns of an existing score.
func (r *Repository) UpdateScore(_ context.Context, score crawler.PageScore) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.scores[score.PageID]
	if !ok {
		return store.ErrNotFound
	}
	existing.Overall = score.Overall
	existing.Technical = score.Technical
	existing.Content = score.Content
	existing.AIReadiness = score.AIReadiness
	existing.Performance = score.Performance
	existing.LetterGrade = score.LetterGrade
	existing.Detail = score.Detail
	existing.LLMContentScores = score.LLMContentScores
	r.scores[score.PageID] = existing
	return nil
}

// FindLLMScoresByHash returns LLM scores already computed for identical content.
func (r *Repository) FindLLMScoresByHash(_ context.Context, contentHash string) (crawler.LLMScores, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, pageID := range r.scoreOrder {
		s := r.scores[pageID]
		if s.LLMContentScores != nil && s.LLMContentScores.ContentHash == contentHash {
			return *s.LLMContentScores, nil
		}
	}
	return crawler.LLMScores{}, store.ErrNotFound
}

// InsertIssues appends issues.
func (r *Repository) InsertIssues(_ context.Context, issues []crawler.Issue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issues = append(r.issues, issues...)
	return nil
}

// ListIssues returns a job's issues matching filter.
func (r *Repository) ListIssues(_ context.Context, jobID string, filter crawler.IssueFilter) ([]crawler.Issue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []crawler.Issue
	for _, is := range r.issues {
		if is.JobID != jobID {
			continue
		}
		if filter.Severity != "" && is.Severity != filter.Severity {
			continue
		}
		if filter.Category != "" && is.Category != filter.Category {
			continue
		}
		out = append(out, is)
	}
	return out, nil
}

// IssueCodes returns the sorted distinct codes raised for a job.
func (r *Repository) IssueCodes(_ context.Context, jobID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[string]struct{}{}
	for _, is := range r.issues {
		if is.JobID == jobID {
			seen[is.Code] = struct{}{}
		}
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, nil
}

// CreateCompetitor registers a competitor.
func (r *Repository) CreateCompetitor(_ context.Context, c crawler.Competitor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.competitors[c.ID]; exists {
		return fmt.Errorf("competitor %s: %w", c.ID, errDuplicate)
	}
	r.competitors[c.ID] = c
	return nil
}

// ListCompetitors returns a project's competitors ordered by domain.
func (r *Repository) ListCompetitors(_ context.Context, projectID string) ([]crawler.Competitor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []crawler.Competitor
	for _, c := range r.competitors {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out, nil
}

// ListDueCompetitors returns monitored competitors due at now, oldest first.
// A competitor never benchmarked is always due.
func (r *Repository) ListDueCompetitors(_ context.Context, now time.Time, limit int) ([]crawler.Competitor, error) {
	r.mu.RLock()
	var out []crawler.Competitor
	for _, c := range r.competitors {
		if c.MonitoringEnabled && (c.NextBenchmarkAt == nil || !c.NextBenchmarkAt.After(now)) {
			out = append(out, c)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := dueAt(out[i]), dueAt(out[j])
		if a.Equal(b) {
			return out[i].ID < out[j].ID
		}
		return a.Before(b)
	})
	return paginate(out, limit, 0), nil
}

func dueAt(c crawler.Competitor) time.Time {
	if c.NextBenchmarkAt == nil {
		return time.Time{}
	}
	return *c.NextBenchmarkAt
}

// LatestBenchmark returns the newest benchmark of a competitor.
func (r *Repository) LatestBenchmark(_ context.Context, competitorID string) (crawler.Benchmark, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.benchmarks[competitorID]
	if len(list) == 0 {
		return crawler.Benchmark{}, store.ErrNotFound
	}
	return list[len(list)-1], nil
}

// SaveBenchmark appends a benchmark snapshot and its events.
func (r *Repository) SaveBenchmark(_ context.Context, b crawler.Benchmark, events []crawler.CompetitorEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.benchmarks[b.CompetitorID] = append(r.benchmarks[b.CompetitorID], b)
	r.events = append(r.events, events...)
	return nil
}

// InsertEvents appends competitor events.
func (r *Repository) InsertEvents(_ context.Context, events []crawler.CompetitorEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

// ListEvents returns a competitor's events, newest first.
func (r *Repository) ListEvents(_ context.Context, competitorID string, limit int) ([]crawler.CompetitorEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []crawler.CompetitorEvent
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].CompetitorID == competitorID {
			out = append(out, r.events[i])
		}
	}
	return paginate(out, limit, 0), nil
}

// UpdateMonitoring records the outcome of a benchmark attempt.
func (r *Repository) UpdateMonitoring(_ context.Context, competitorID string, update crawler.MonitoringUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.competitors[competitorID]
	if !ok {
		return store.ErrNotFound
	}
	next := update.NextBenchmarkAt
	c.NextBenchmarkAt = &next
	if update.LastBenchmarkAt != nil {
		last := *update.LastBenchmarkAt
		c.LastBenchmarkAt = &last
	}
	r.competitors[competitorID] = c
	return nil
}

func paginate[T any](items []T, limit, offset int) []T {
	offset = max(offset, 0)
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
