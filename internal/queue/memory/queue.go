// Package memory provides an in-process enrichment queue for single-node runs.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
)

// ErrClosed is returned once the queue has been closed and drained.
var ErrClosed = errors.New("queue closed")

// Queue is a bounded in-memory queue with context-aware operations. The task
// channel is never closed, so a racing Enqueue cannot panic during shutdown.
type Queue struct {
	ch        chan crawler.EnrichmentTask
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch:   make(chan crawler.EnrichmentTask, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue pushes a task or returns when the context ends.
func (q *Queue) Enqueue(ctx context.Context, task crawler.EnrichmentTask) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case <-q.done:
		return ErrClosed
	case q.ch <- task:
		return nil
	}
}

// Dequeue pops the next task, respecting context cancellation. Tasks buffered
// before Close are still handed out.
func (q *Queue) Dequeue(ctx context.Context) (crawler.EnrichmentTask, error) {
	select {
	case <-ctx.Done():
		return crawler.EnrichmentTask{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case task := <-q.ch:
		return task, nil
	case <-q.done:
		select {
		case task := <-q.ch:
			return task, nil
		default:
			return crawler.EnrichmentTask{}, ErrClosed
		}
	}
}

// Len reports buffered tasks.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops accepting tasks. It is safe to call more than once.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}
