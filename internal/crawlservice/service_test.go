package crawlservice

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
	"github.com/JakeFAU/ai-readiness-scorer/internal/storage/memory"
	"github.com/JakeFAU/ai-readiness-scorer/internal/store"
)

var serviceTime = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return serviceTime }

type seqIDs struct{ n int }

func (s *seqIDs) NewID() (string, error) {
	s.n++
	return fmt.Sprintf("job-%d", s.n), nil
}

type fakeDispatcher struct {
	err  error
	jobs []crawler.Job
}

func (f *fakeDispatcher) Dispatch(_ context.Context, job crawler.Job) error {
	f.jobs = append(f.jobs, job)
	return f.err
}

func TestStartJobQueues(t *testing.T) {
	t.Parallel()

	repo := memory.NewRepository()
	d := &fakeDispatcher{}
	svc := NewService(repo, d, &seqIDs{}, fixedClock{}, nil)

	job, err := svc.StartJob(context.Background(), "proj", map[string]any{"max_pages": 10})
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusQueued, job.Status)
	require.Len(t, d.jobs, 1)
	require.Equal(t, crawler.JobStatusPending, d.jobs[0].Status, "dispatched while pending")

	stored, err := repo.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusQueued, stored.Status)
	require.Equal(t, serviceTime, stored.CreatedAt)
}

func TestStartJobDispatchFailureMarksFailed(t *testing.T) {
	t.Parallel()

	repo := memory.NewRepository()
	cause := errors.New("crawler service returned 503: queue full")
	svc := NewService(repo, &fakeDispatcher{err: cause}, &seqIDs{}, fixedClock{}, nil)

	job, err := svc.StartJob(context.Background(), "proj", nil)
	var dispatchErr *DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	require.Equal(t, "job-1", dispatchErr.JobID)
	require.ErrorIs(t, err, cause)
	require.Equal(t, crawler.JobStatusFailed, job.Status)

	stored, err := repo.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusFailed, stored.Status)
	require.Equal(t, cause.Error(), stored.ErrorMessage)
	require.NotNil(t, stored.CompletedAt)
}

func TestStartJobRequiresProject(t *testing.T) {
	t.Parallel()

	svc := NewService(memory.NewRepository(), &fakeDispatcher{}, &seqIDs{}, fixedClock{}, nil)
	_, err := svc.StartJob(context.Background(), "", nil)
	require.Error(t, err)
}

// racingDispatcher simulates the first batch arriving before the queue ack.
type racingDispatcher struct {
	repo *memory.Repository
}

func (r racingDispatcher) Dispatch(ctx context.Context, job crawler.Job) error {
	return r.repo.TransitionJob(ctx, storeTransition(job.ID, crawler.JobStatusPending, crawler.JobStatusCrawling))
}

func TestStartJobKeepsNewerStatus(t *testing.T) {
	t.Parallel()

	repo := memory.NewRepository()
	svc := NewService(repo, racingDispatcher{repo: repo}, &seqIDs{}, fixedClock{}, nil)

	job, err := svc.StartJob(context.Background(), "proj", nil)
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusCrawling, job.Status)
}

func TestCancel(t *testing.T) {
	t.Parallel()

	repo := memory.NewRepository()
	svc := NewService(repo, &fakeDispatcher{}, &seqIDs{}, fixedClock{}, nil)
	job, err := svc.StartJob(context.Background(), "proj", nil)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusCancelled, cancelled.Status)

	_, err = svc.Cancel(context.Background(), job.ID)
	require.ErrorIs(t, err, crawler.ErrInvalidTransition)

	_, err = svc.Cancel(context.Background(), "missing")
	require.Error(t, err)
}

func storeTransition(jobID string, from, to crawler.JobStatus) store.JobTransition {
	return store.JobTransition{JobID: jobID, From: from, To: to, At: serviceTime}
}
