// Package enrichment scores page content with an LLM after ingestion and
// folds the result back into the stored page score.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
	"github.com/JakeFAU/ai-readiness-scorer/internal/metrics"
	"github.com/JakeFAU/ai-readiness-scorer/internal/scoring"
	"github.com/JakeFAU/ai-readiness-scorer/internal/store"
)

// Outcome labels recorded for every handled task.
const (
	OutcomeScored   = "scored"
	OutcomeCached   = "cached"
	OutcomeSkipped  = "skipped"
	OutcomeRetried  = "retried"
	OutcomeDropped  = "dropped"
	OutcomeRequeued = "requeue_failed"
)

// Store is the persistence the processor reads and updates.
type Store interface {
	store.PageRepository
	store.ScoreRepository
	store.IssueRepository
}

// Enqueuer re-enqueues failed tasks.
type Enqueuer interface {
	Enqueue(ctx context.Context, task crawler.EnrichmentTask) error
}

// Processor enriches one page score per task.
type Processor struct {
	store    Store
	blobs    crawler.BlobStore
	llm      ContentScorer
	engine   *scoring.Engine
	requeue  Enqueuer
	retry    *RetryPolicy
	ids      crawler.IDGenerator
	clock    crawler.Clock
	maxChars int
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option customizes a Processor.
type Option func(*Processor)

// WithRetryPolicy overrides the default policy.
func WithRetryPolicy(p *RetryPolicy) Option {
	return func(pr *Processor) {
		if p != nil {
			pr.retry = p
		}
	}
}

// WithRequeue sets where failed tasks are sent for another attempt.
func WithRequeue(e Enqueuer) Option {
	return func(pr *Processor) { pr.requeue = e }
}

// WithMaxChars bounds the text sent to the model.
func WithMaxChars(n int) Option {
	return func(pr *Processor) {
		if n > 0 {
			pr.maxChars = n
		}
	}
}

// WithLogger sets the processor logger.
func WithLogger(logger *zap.Logger) Option {
	return func(pr *Processor) {
		if logger != nil {
			pr.logger = logger
		}
	}
}

// NewProcessor wires a Processor. A nil engine selects the default catalog.
func NewProcessor(
	st Store,
	blobs crawler.BlobStore,
	llm ContentScorer,
	engine *scoring.Engine,
	ids crawler.IDGenerator,
	clock crawler.Clock,
	opts ...Option,
) *Processor {
	if engine == nil {
		engine = scoring.MustEngine(nil)
	}
	p := &Processor{
		store:    st,
		blobs:    blobs,
		llm:      llm,
		engine:   engine,
		retry:    NewRetryPolicy(DefaultMaxAttempts, 0, 0),
		ids:      ids,
		clock:    clock,
		maxChars: DefaultMaxChars,
		logger:   zap.NewNop(),
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle processes task and applies the retry policy to failures. It only
// returns an error when ctx ends.
func (p *Processor) Handle(ctx context.Context, task crawler.EnrichmentTask) error {
	logger := p.logger.With(
		zap.String("job_id", task.JobID),
		zap.String("page_id", task.PageID),
		zap.Int("attempt", task.Attempt),
	)
	outcome, err := p.Process(ctx, task)
	if err == nil {
		metrics.ObserveEnrichment(outcome)
		logger.Debug("enrichment finished", zap.String("outcome", outcome))
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if !p.retry.ShouldRetry(err, task.Attempt) || p.requeue == nil {
		metrics.ObserveEnrichment(OutcomeDropped)
		logger.Warn("enrichment dropped", zap.Error(err))
		return nil
	}
	if err := p.sleep(ctx, p.retry.Backoff(task.Attempt)); err != nil {
		return err
	}
	next := task
	next.Attempt++
	next.EnqueuedAt = p.clock.Now()
	if err := p.requeue.Enqueue(ctx, next); err != nil {
		metrics.ObserveEnrichment(OutcomeRequeued)
		logger.Error("enrichment requeue failed", zap.Error(err))
		return nil
	}
	metrics.ObserveEnrichment(OutcomeRetried)
	logger.Info("enrichment retry scheduled", zap.Error(err))
	return nil
}

// Process runs one attempt and reports its outcome.
func (p *Processor) Process(ctx context.Context, task crawler.EnrichmentTask) (string, error) {
	score, err := p.store.GetScoreByPage(ctx, task.PageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("%w: page %s has no score", ErrPermanent, task.PageID)
		}
		return "", fmt.Errorf("load score: %w", err)
	}
	if s := score.LLMContentScores; s != nil && s.ContentHash == task.ContentHash {
		return OutcomeSkipped, nil
	}

	outcome := OutcomeCached
	llm, err := p.store.FindLLMScoresByHash(ctx, task.ContentHash)
	switch {
	case errors.Is(err, store.ErrNotFound):
		outcome = OutcomeScored
		if llm, err = p.scoreContent(ctx, task); err != nil {
			return "", err
		}
	case err != nil:
		return "", fmt.Errorf("lookup cached scores: %w", err)
	}
	llm.ContentHash = task.ContentHash

	page, err := p.store.GetPage(ctx, task.PageID)
	if err != nil {
		return "", fmt.Errorf("load page: %w", err)
	}
	if err := p.apply(ctx, page, score, llm); err != nil {
		return "", err
	}
	return outcome, nil
}

func (p *Processor) scoreContent(ctx context.Context, task crawler.EnrichmentTask) (crawler.LLMScores, error) {
	if task.ContentRef == "" || p.blobs == nil {
		return crawler.LLMScores{}, fmt.Errorf("%w: no stored content for page %s", ErrPermanent, task.PageID)
	}
	raw, err := p.blobs.GetObject(ctx, task.ContentRef)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return crawler.LLMScores{}, fmt.Errorf("%w: %w", ErrPermanent, err)
		}
		return crawler.LLMScores{}, fmt.Errorf("read content: %w", err)
	}
	text, err := ExtractText(raw, p.maxChars)
	if err != nil {
		return crawler.LLMScores{}, fmt.Errorf("%w: %w", ErrPermanent, err)
	}
	return p.llm.ScoreContent(ctx, task.URL, text)
}

// apply rescores the page with LLM scores attached, appends the LLM
// findings, then updates the score row. The score row's content hash marks
// the task done, so it is written last.
func (p *Processor) apply(ctx context.Context, page crawler.Page, score crawler.PageScore, llm crawler.LLMScores) error {
	facts := page.Facts
	facts.LLMScores = &llm
	res := p.engine.Score(facts)

	issues := scoring.IssuesFor(res.Dynamic(), page.JobID, page.ID)
	if len(issues) > 0 {
		now := p.clock.Now()
		for i := range issues {
			id, err := p.ids.NewID()
			if err != nil {
				return fmt.Errorf("issue id: %w", err)
			}
			issues[i].ID = id
			issues[i].CreatedAt = now
		}
		if err := p.store.InsertIssues(ctx, issues); err != nil {
			return fmt.Errorf("insert llm issues: %w", err)
		}
	}

	updated := scoring.Recompute(score, res.Content)
	updated.LLMContentScores = &llm
	if updated.Detail == nil {
		updated.Detail = map[string]any{"letter_grade": updated.LetterGrade}
	}
	updated.Detail["llm_average"] = llm.Average()
	if err := p.store.UpdateScore(ctx, updated); err != nil {
		return fmt.Errorf("update score: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
