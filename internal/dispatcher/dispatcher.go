// Package dispatcher fans enrichment tasks out to a pool of workers.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
	"github.com/JakeFAU/ai-readiness-scorer/internal/worker"
)

// Dispatcher owns the enrichment queue and its workers.
type Dispatcher struct {
	queue   crawler.Queue
	workers []*worker.Worker
}

// New creates a Dispatcher with size workers sharing handler. A size below
// one still starts a single worker.
func New(queue crawler.Queue, handler worker.Handler, size int, logger *zap.Logger) *Dispatcher {
	size = max(size, 1)
	workers := make([]*worker.Worker, 0, size)
	for i := range size {
		workers = append(workers, worker.New(i+1, queue, handler, logger))
	}
	return &Dispatcher{queue: queue, workers: workers}
}

// Size reports the number of workers.
func (d *Dispatcher) Size() int {
	return len(d.workers)
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, task crawler.EnrichmentTask) error {
	if err := d.queue.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
