// Package worker implements the enrichment queue consumer loop.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
	"github.com/JakeFAU/ai-readiness-scorer/internal/metrics"
)

// Handler processes one enrichment task. Returning an error stops the
// worker only when it wraps the worker's own context error.
type Handler interface {
	Handle(ctx context.Context, task crawler.EnrichmentTask) error
}

// Dequeuer yields tasks, blocking until one is available.
type Dequeuer interface {
	Dequeue(ctx context.Context) (crawler.EnrichmentTask, error)
}

// Worker consumes queue items and hands them to a Handler.
type Worker struct {
	id         int
	queue      Dequeuer
	handler    Handler
	errBackoff time.Duration
	logger     *zap.Logger
}

// New constructs a Worker.
func New(id int, queue Dequeuer, handler Handler, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		id:         id,
		queue:      queue,
		handler:    handler,
		errBackoff: time.Second,
		logger:     logger.With(zap.Int("worker", id)),
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			if !w.pause(ctx) {
				return
			}
			continue
		}
		w.logger.Debug("dequeued task", zap.String("page_id", task.PageID), zap.Int("attempt", task.Attempt))
		w.process(ctx, task)
	}
}

func (w *Worker) process(ctx context.Context, task crawler.EnrichmentTask) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	if err := w.handler.Handle(ctx, task); err != nil && !errors.Is(err, ctx.Err()) {
		w.logger.Error("task handler failed", zap.String("page_id", task.PageID), zap.Error(err))
	}
}

// pause waits errBackoff after a queue error; false means ctx ended.
func (w *Worker) pause(ctx context.Context) bool {
	timer := time.NewTimer(w.errBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
