package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
	"github.com/JakeFAU/ai-readiness-scorer/internal/metrics"
	"github.com/JakeFAU/ai-readiness-scorer/internal/scoring"
	"github.com/JakeFAU/ai-readiness-scorer/internal/store"
)

var (
	// ErrJobNotFound is returned when the batch references an unknown job.
	ErrJobNotFound = errors.New("crawl job not found")
	// ErrJobTerminal is returned when the job no longer accepts batches.
	ErrJobTerminal = errors.New("crawl job is no longer accepting batches")
)

const (
	// DefaultMinWordCount gates enrichment on page length.
	DefaultMinWordCount = 200
	// DefaultBlobPrefix is the object prefix for raw page content.
	DefaultBlobPrefix = "pages"
)

const (
	defaultEnqueueWait  = 5 * time.Second
	rawContentType      = "text/html; charset=utf-8"
	batchOutcomeOK      = "accepted"
	batchOutcomeInvalid = "rejected"
	batchOutcomeFailed  = "failed"
)

// Scorer scores one page. *scoring.Engine satisfies it.
type Scorer interface {
	Score(facts crawler.PageFacts) scoring.Result
}

// Enqueuer hands enrichment tasks to the background content scorer.
type Enqueuer interface {
	Enqueue(ctx context.Context, task crawler.EnrichmentTask) error
}

// Store is the persistence surface the pipeline writes to.
type Store interface {
	store.JobRepository
	store.PageRepository
	store.ScoreRepository
	store.IssueRepository
}

// Result reports what a batch produced.
type Result struct {
	JobID            string            `json:"job_id"`
	BatchIndex       int               `json:"batch_index"`
	PagesInserted    int               `json:"pages_inserted"`
	PagesScored      int               `json:"pages_scored"`
	PagesErrored     int               `json:"pages_errored"`
	IssuesInserted   int               `json:"issues_inserted"`
	Status           crawler.JobStatus `json:"status"`
	EnrichmentQueued int               `json:"enrichment_queued"`
}

// Pipeline runs ingestion batches end to end.
type Pipeline struct {
	store       Store
	scorer      Scorer
	blobs       crawler.BlobStore
	enqueuer    Enqueuer
	hasher      crawler.Hasher
	clock       crawler.Clock
	ids         crawler.IDGenerator
	logger      *zap.Logger
	minWords    int
	blobPrefix  string
	enqueueWait time.Duration
	pending     sync.WaitGroup
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithBlobStore stores raw page content for later enrichment.
func WithBlobStore(blobs crawler.BlobStore) Option {
	return func(p *Pipeline) { p.blobs = blobs }
}

// WithEnqueuer enables enrichment handoff.
func WithEnqueuer(e Enqueuer) Option {
	return func(p *Pipeline) { p.enqueuer = e }
}

// WithHasher computes content hashes the crawler did not send.
func WithHasher(h crawler.Hasher) Option {
	return func(p *Pipeline) { p.hasher = h }
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMinWordCount overrides the enrichment word threshold.
func WithMinWordCount(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.minWords = n
		}
	}
}

// WithBlobPrefix overrides the raw content object prefix.
func WithBlobPrefix(prefix string) Option {
	return func(p *Pipeline) {
		if prefix != "" {
			p.blobPrefix = prefix
		}
	}
}

// WithEnqueueTimeout bounds the detached enqueue call.
func WithEnqueueTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.enqueueWait = d
		}
	}
}

// New constructs a Pipeline.
func New(st Store, scorer Scorer, clock crawler.Clock, ids crawler.IDGenerator, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:       st,
		scorer:      scorer,
		clock:       clock,
		ids:         ids,
		logger:      zap.NewNop(),
		minWords:    DefaultMinWordCount,
		blobPrefix:  DefaultBlobPrefix,
		enqueueWait: defaultEnqueueWait,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest decodes a raw batch and processes it.
func (p *Pipeline) Ingest(ctx context.Context, raw []byte) (Result, error) {
	batch, err := Decode(raw)
	if err != nil {
		metrics.ObserveBatch(batchOutcomeInvalid)
		return Result{}, err
	}
	return p.IngestBatch(ctx, batch)
}

// IngestBatch persists pages, scores them, and advances the job. Validation
// and job lookup failures leave no side effects.
func (p *Pipeline) IngestBatch(ctx context.Context, batch Batch) (Result, error) {
	if err := Validate(batch); err != nil {
		metrics.ObserveBatch(batchOutcomeInvalid)
		return Result{}, err
	}
	res, err := p.run(ctx, batch)
	switch {
	case err == nil:
		metrics.ObserveBatch(batchOutcomeOK)
	case errors.Is(err, ErrJobNotFound), errors.Is(err, ErrJobTerminal):
		metrics.ObserveBatch(batchOutcomeInvalid)
	default:
		metrics.ObserveBatch(batchOutcomeFailed)
	}
	return res, err
}

// Wait blocks until detached enrichment handoffs finish.
func (p *Pipeline) Wait() {
	p.pending.Wait()
}

func (p *Pipeline) run(ctx context.Context, batch Batch) (Result, error) {
	logger := p.logger.With(zap.String("job_id", batch.JobID), zap.Int("batch_index", batch.BatchIndex))

	job, err := p.store.GetJob(ctx, batch.JobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{}, fmt.Errorf("%w: %s", ErrJobNotFound, batch.JobID)
		}
		return Result{}, fmt.Errorf("load job: %w", err)
	}
	if job.Status.IsTerminal() {
		return Result{}, fmt.Errorf("%w: %s is %s", ErrJobTerminal, job.ID, job.Status)
	}

	status := job.Status
	if status == crawler.JobStatusPending || status == crawler.JobStatusQueued {
		if status, err = p.advance(ctx, job.ID, status, crawler.JobStatusCrawling); err != nil {
			return Result{}, err
		}
	}

	pages, err := p.buildPages(ctx, batch, logger)
	if err != nil {
		return Result{}, err
	}
	if len(pages) > 0 {
		if err := p.store.InsertPages(ctx, pages); err != nil {
			return Result{}, fmt.Errorf("insert pages: %w", err)
		}
	}

	if status, err = p.advance(ctx, job.ID, status, crawler.JobStatusScoring); err != nil {
		return Result{}, err
	}

	scores := make([]crawler.PageScore, 0, len(pages))
	var issues []crawler.Issue
	failed := 0
	for _, page := range pages {
		score, pageIssues, err := p.scorePage(page)
		if err != nil {
			failed++
			logger.Error("page scoring failed",
				zap.String("page_id", page.ID),
				zap.String("url", page.URL),
				zap.Error(err),
			)
			continue
		}
		scores = append(scores, score)
		issues = append(issues, pageIssues...)
	}

	if len(scores) > 0 {
		if err := p.store.InsertScores(ctx, scores); err != nil {
			return Result{}, fmt.Errorf("insert scores: %w", err)
		}
	}
	if len(issues) > 0 {
		if err := p.store.InsertIssues(ctx, issues); err != nil {
			return Result{}, fmt.Errorf("insert issues: %w", err)
		}
	}
	metrics.ObservePages(len(scores), failed)
	for _, is := range issues {
		metrics.ObserveIssue(string(is.Category), string(is.Severity))
	}

	if err := p.store.IncrementCounters(ctx, job.ID, counters(batch, len(pages), len(scores), failed)); err != nil {
		return Result{}, fmt.Errorf("increment counters: %w", err)
	}

	if batch.IsFinal {
		if status, err = p.complete(ctx, job.ID, status); err != nil {
			return Result{}, err
		}
	}

	queued := p.enqueue(ctx, pages, scores, logger)

	logger.Info("batch ingested",
		zap.Int("pages", len(pages)),
		zap.Int("scored", len(scores)),
		zap.Int("failed", failed),
		zap.Int("issues", len(issues)),
		zap.String("status", string(status)),
	)
	return Result{
		JobID:            job.ID,
		BatchIndex:       batch.BatchIndex,
		PagesInserted:    len(pages),
		PagesScored:      len(scores),
		PagesErrored:     failed,
		IssuesInserted:   len(issues),
		Status:           status,
		EnrichmentQueued: queued,
	}, nil
}

// advance moves the job to next unless it is already there.
func (p *Pipeline) advance(ctx context.Context, jobID string, from, next crawler.JobStatus) (crawler.JobStatus, error) {
	if from == next {
		return from, nil
	}
	if _, err := from.Transition(next); err != nil {
		return from, err
	}
	err := p.store.TransitionJob(ctx, store.JobTransition{
		JobID: jobID,
		From:  from,
		To:    next,
		At:    p.clock.Now(),
	})
	if err != nil {
		return from, fmt.Errorf("transition %s -> %s: %w", from, next, err)
	}
	metrics.ObserveTransition(string(next))
	return next, nil
}

func (p *Pipeline) complete(ctx context.Context, jobID string, status crawler.JobStatus) (crawler.JobStatus, error) {
	all, err := p.store.ListScores(ctx, jobID)
	if err != nil {
		return status, fmt.Errorf("list scores: %w", err)
	}
	if err := p.store.SaveSummary(ctx, jobID, scoring.Summarize(all)); err != nil {
		return status, fmt.Errorf("save summary: %w", err)
	}
	return p.advance(ctx, jobID, status, crawler.JobStatusComplete)
}

func (p *Pipeline) buildPages(ctx context.Context, batch Batch, logger *zap.Logger) ([]crawler.Page, error) {
	now := p.clock.Now()
	pages := make([]crawler.Page, 0, len(batch.Pages))
	for _, in := range batch.Pages {
		id, err := p.ids.NewID()
		if err != nil {
			return nil, fmt.Errorf("page id: %w", err)
		}
		facts := in.PageFacts
		if facts.ContentHash == "" && in.RawContent != "" && p.hasher != nil {
			sum, err := p.hasher.Hash([]byte(in.RawContent))
			if err != nil {
				return nil, fmt.Errorf("hash %s: %w", facts.URL, err)
			}
			facts.ContentHash = sum
		}
		page := crawler.Page{
			ID:          id,
			JobID:       batch.JobID,
			URL:         facts.URL,
			StatusCode:  facts.StatusCode,
			Facts:       facts,
			WordCount:   facts.WordCount,
			ContentHash: facts.ContentHash,
			CreatedAt:   now,
		}
		if in.RawContent != "" && p.blobs != nil {
			ref, err := p.storeRaw(ctx, page, in.RawContent)
			if err != nil {
				logger.Warn("raw content upload failed", zap.String("url", page.URL), zap.Error(err))
			} else {
				page.ContentRef = ref
			}
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func (p *Pipeline) storeRaw(ctx context.Context, page crawler.Page, raw string) (string, error) {
	name := page.ContentHash
	if name == "" {
		name = page.ID
	}
	objectPath := path.Join(p.blobPrefix, page.JobID, name+".html")
	uri, err := p.blobs.PutObject(ctx, objectPath, rawContentType, bytes.NewReader([]byte(raw)))
	if err != nil {
		return "", fmt.Errorf("put %s: %w", objectPath, err)
	}
	return uri, nil
}

// scorePage isolates a single page so a faulty rule cannot abort the batch.
func (p *Pipeline) scorePage(page crawler.Page) (score crawler.PageScore, issues []crawler.Issue, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scoring panicked: %v", r)
		}
	}()

	res := p.scorer.Score(page.Facts)
	scoreID, err := p.ids.NewID()
	if err != nil {
		return crawler.PageScore{}, nil, fmt.Errorf("score id: %w", err)
	}
	now := p.clock.Now()
	score = crawler.PageScore{
		ID:               scoreID,
		PageID:           page.ID,
		JobID:            page.JobID,
		URL:              page.URL,
		Overall:          res.Overall,
		Technical:        res.Technical,
		Content:          res.Content,
		AIReadiness:      res.AIReadiness,
		Performance:      res.Performance,
		LetterGrade:      res.LetterGrade,
		Detail:           res.Detail(page.Facts),
		LLMContentScores: page.Facts.LLMScores,
		CreatedAt:        now,
	}
	issues = res.Issues(page.JobID, page.ID)
	for i := range issues {
		if issues[i].ID, err = p.ids.NewID(); err != nil {
			return crawler.PageScore{}, nil, fmt.Errorf("issue id: %w", err)
		}
		issues[i].CreatedAt = now
	}
	return score, issues, nil
}

// counters keeps pagesScored <= pagesCrawled <= pagesFound even when the
// crawler under-reports its stats.
func counters(batch Batch, inserted, scored, failed int) crawler.JobCounters {
	crawled := max(batch.Stats.PagesCrawled, inserted)
	return crawler.JobCounters{
		PagesFound:   max(batch.Stats.PagesFound, crawled),
		PagesCrawled: crawled,
		PagesScored:  scored,
		PagesErrored: batch.Stats.PagesErrored + failed,
	}
}

// enqueue hands eligible pages to the enrichment queue without blocking the
// caller. It returns how many tasks were handed off.
func (p *Pipeline) enqueue(ctx context.Context, pages []crawler.Page, scores []crawler.PageScore, logger *zap.Logger) int {
	if p.enqueuer == nil {
		return 0
	}
	scored := make(map[string]bool, len(scores))
	for _, s := range scores {
		scored[s.PageID] = true
	}
	now := p.clock.Now()
	var tasks []crawler.EnrichmentTask
	for _, page := range pages {
		if !scored[page.ID] || page.WordCount < p.minWords || page.ContentHash == "" {
			continue
		}
		tasks = append(tasks, crawler.EnrichmentTask{
			JobID:       page.JobID,
			PageID:      page.ID,
			URL:         page.URL,
			ContentHash: page.ContentHash,
			ContentRef:  page.ContentRef,
			EnqueuedAt:  now,
		})
	}
	if len(tasks) == 0 {
		return 0
	}

	detached := context.WithoutCancel(ctx)
	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		enqCtx, cancel := context.WithTimeout(detached, p.enqueueWait)
		defer cancel()
		for _, task := range tasks {
			if err := p.enqueuer.Enqueue(enqCtx, task); err != nil {
				logger.Warn("enrichment enqueue failed", zap.String("page_id", task.PageID), zap.Error(err))
				metrics.ObserveEnrichment("enqueue_failed")
				continue
			}
			metrics.ObserveEnrichment("enqueued")
		}
	}()
	return len(tasks)
}
