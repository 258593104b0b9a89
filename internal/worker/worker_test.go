package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
)

type sliceQueue struct {
	mu    sync.Mutex
	tasks []crawler.EnrichmentTask
	errs  int
}

func (q *sliceQueue) Dequeue(ctx context.Context) (crawler.EnrichmentTask, error) {
	q.mu.Lock()
	if q.errs > 0 {
		q.errs--
		q.mu.Unlock()
		return crawler.EnrichmentTask{}, errors.New("connection reset")
	}
	if len(q.tasks) > 0 {
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()
		return task, nil
	}
	q.mu.Unlock()
	<-ctx.Done()
	return crawler.EnrichmentTask{}, ctx.Err()
}

type recordingHandler struct {
	mu    sync.Mutex
	seen  []string
	err   error
	done  chan struct{}
	total int
}

func (h *recordingHandler) Handle(_ context.Context, task crawler.EnrichmentTask) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, task.PageID)
	if len(h.seen) == h.total {
		close(h.done)
	}
	return h.err
}

func TestWorkerProcessesTasksUntilCancelled(t *testing.T) {
	t.Parallel()

	queue := &sliceQueue{tasks: []crawler.EnrichmentTask{{PageID: "a"}, {PageID: "b"}}}
	handler := &recordingHandler{done: make(chan struct{}), total: 2, err: errors.New("ignored")}
	w := New(1, queue, handler, nil)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(stopped)
	}()

	select {
	case <-handler.done:
	case <-time.After(time.Second):
		t.Fatal("worker did not process tasks")
	}
	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
	require.Equal(t, []string{"a", "b"}, handler.seen)
}

func TestWorkerBacksOffOnQueueErrors(t *testing.T) {
	t.Parallel()

	queue := &sliceQueue{errs: 1, tasks: []crawler.EnrichmentTask{{PageID: "a"}}}
	handler := &recordingHandler{done: make(chan struct{}), total: 1}
	w := New(2, queue, handler, nil)
	w.errBackoff = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	select {
	case <-handler.done:
	case <-time.After(time.Second):
		t.Fatal("worker did not recover from queue error")
	}
}
