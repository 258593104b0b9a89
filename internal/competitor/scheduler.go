package competitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
	"github.com/JakeFAU/ai-readiness-scorer/internal/metrics"
	"github.com/JakeFAU/ai-readiness-scorer/internal/store"
)

// DefaultBatchSize bounds one sweep.
const DefaultBatchSize = 20

// Benchmarker produces a fresh snapshot for a domain.
type Benchmarker interface {
	Benchmark(ctx context.Context, domain string) (crawler.Benchmark, error)
}

// Notifier forwards events to the notification outbox.
type Notifier interface {
	Notify(ctx context.Context, events []crawler.CompetitorEvent) error
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Processed int `json:"processed"`
	Events    int `json:"events"`
	Errors    int `json:"errors"`
}

// Scheduler benchmarks due competitors one at a time.
type Scheduler struct {
	repo      store.CompetitorRepository
	bench     Benchmarker
	notifier  Notifier
	ids       crawler.IDGenerator
	clock     crawler.Clock
	batchSize int
	logger    *zap.Logger
}

// SchedulerOption customizes a Scheduler.
type SchedulerOption func(*Scheduler)

// WithBatchSize overrides DefaultBatchSize.
func WithBatchSize(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithNotifier sets the outbox; without one events are only persisted.
func WithNotifier(n Notifier) SchedulerOption {
	return func(s *Scheduler) { s.notifier = n }
}

// WithLogger sets the scheduler logger.
func WithLogger(logger *zap.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScheduler wires a scheduler.
func NewScheduler(
	repo store.CompetitorRepository,
	bench Benchmarker,
	ids crawler.IDGenerator,
	clock crawler.Clock,
	opts ...SchedulerOption,
) *Scheduler {
	s := &Scheduler{
		repo:      repo,
		bench:     bench,
		ids:       ids,
		clock:     clock,
		batchSize: DefaultBatchSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep processes up to batchSize due competitors sequentially. A failure
// for one competitor is counted and logged; its next benchmark is still
// rescheduled but lastBenchmarkAt is left unchanged. Only listing failures
// and context cancellation end the sweep early.
func (s *Scheduler) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := s.clock.Now()
	due, err := s.repo.ListDueCompetitors(ctx, now, s.batchSize)
	if err != nil {
		return res, fmt.Errorf("list due competitors: %w", err)
	}
	defer func() { metrics.ObserveSweep(res.Processed, res.Errors) }()

	for _, c := range due {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		events, at, err := s.process(ctx, c)
		res.Events += events
		if err != nil {
			res.Errors++
			s.logger.Warn("competitor benchmark failed",
				zap.String("competitor_id", c.ID),
				zap.String("domain", c.Domain),
				zap.Error(err),
			)
			_ = s.reschedule(ctx, c, nil)
			continue
		}
		if err := s.reschedule(ctx, c, &at); err != nil {
			res.Errors++
			continue
		}
		res.Processed++
	}
	s.logger.Info("competitor sweep finished",
		zap.Int("due", len(due)),
		zap.Int("processed", res.Processed),
		zap.Int("events", res.Events),
		zap.Int("errors", res.Errors),
	)
	return res, nil
}

// process benchmarks one competitor and returns the number of persisted
// events and the benchmark time.
func (s *Scheduler) process(ctx context.Context, c crawler.Competitor) (int, time.Time, error) {
	var previous *crawler.Benchmark
	prev, err := s.repo.LatestBenchmark(ctx, c.ID)
	switch {
	case err == nil:
		previous = &prev
	case errors.Is(err, store.ErrNotFound):
	default:
		return 0, time.Time{}, fmt.Errorf("load previous benchmark: %w", err)
	}

	current, err := s.bench.Benchmark(ctx, c.Domain)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("benchmark %s: %w", c.Domain, err)
	}
	id, err := s.ids.NewID()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("benchmark id: %w", err)
	}
	at := s.clock.Now()
	current.ID = id
	current.CompetitorID = c.ID
	current.Domain = c.Domain
	current.CreatedAt = at
	events := Diff(previous, current)
	for i := range events {
		if events[i].ID, err = s.ids.NewID(); err != nil {
			return 0, time.Time{}, fmt.Errorf("event id: %w", err)
		}
	}
	if err := s.repo.SaveBenchmark(ctx, current, events); err != nil {
		return 0, time.Time{}, fmt.Errorf("save benchmark: %w", err)
	}
	for _, e := range events {
		metrics.ObserveCompetitorEvent(e.EventType, string(e.Severity))
	}
	if forward := Notifiable(events); len(forward) > 0 && s.notifier != nil {
		if err := s.notifier.Notify(ctx, forward); err != nil {
			s.logger.Warn("competitor notification failed",
				zap.String("competitor_id", c.ID),
				zap.Int("events", len(forward)),
				zap.Error(err),
			)
		}
	}
	return len(events), at, nil
}

func (s *Scheduler) reschedule(ctx context.Context, c crawler.Competitor, benchmarkedAt *time.Time) error {
	update := crawler.MonitoringUpdate{
		NextBenchmarkAt: c.MonitoringFrequency.Next(s.clock.Now()),
		LastBenchmarkAt: benchmarkedAt,
	}
	if err := s.repo.UpdateMonitoring(ctx, c.ID, update); err != nil {
		s.logger.Error("reschedule competitor failed",
			zap.String("competitor_id", c.ID),
			zap.Error(err),
		)
		return fmt.Errorf("update monitoring: %w", err)
	}
	return nil
}
