package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
)

type chanQueue struct {
	ch chan crawler.EnrichmentTask
}

func (q *chanQueue) Enqueue(ctx context.Context, task crawler.EnrichmentTask) error {
	select {
	case q.ch <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *chanQueue) Dequeue(ctx context.Context) (crawler.EnrichmentTask, error) {
	select {
	case task := <-q.ch:
		return task, nil
	case <-ctx.Done():
		return crawler.EnrichmentTask{}, ctx.Err()
	}
}

type countingHandler struct {
	mu   sync.Mutex
	seen map[string]bool
	wg   *sync.WaitGroup
}

func (h *countingHandler) Handle(_ context.Context, task crawler.EnrichmentTask) error {
	h.mu.Lock()
	h.seen[task.PageID] = true
	h.mu.Unlock()
	h.wg.Done()
	return nil
}

func TestDispatcherRunsWorkersUntilCancelled(t *testing.T) {
	t.Parallel()

	queue := &chanQueue{ch: make(chan crawler.EnrichmentTask, 8)}
	var wg sync.WaitGroup
	handler := &countingHandler{seen: map[string]bool{}, wg: &wg}
	d := New(queue, handler, 3, nil)
	require.Equal(t, 3, d.Size())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	pages := []string{"p1", "p2", "p3", "p4", "p5"}
	wg.Add(len(pages))
	for _, id := range pages {
		require.NoError(t, d.Enqueue(ctx, crawler.EnrichmentTask{PageID: id}))
	}
	wg.Wait()
	require.Len(t, handler.seen, len(pages))

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
}

type errorQueue struct{ err error }

func (q *errorQueue) Enqueue(context.Context, crawler.EnrichmentTask) error { return q.err }

func (q *errorQueue) Dequeue(context.Context) (crawler.EnrichmentTask, error) {
	return crawler.EnrichmentTask{}, q.err
}

func TestDispatcherEnqueueWrapsErrors(t *testing.T) {
	t.Parallel()

	d := New(&errorQueue{err: errors.New("boom")}, nil, 0, nil)
	require.Equal(t, 1, d.Size())
	err := d.Enqueue(context.Background(), crawler.EnrichmentTask{PageID: "p"})
	require.EqualError(t, err, "queue enqueue: boom")
}
