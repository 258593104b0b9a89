package crawlservice

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
	"github.com/JakeFAU/ai-readiness-scorer/internal/metrics"
	"github.com/JakeFAU/ai-readiness-scorer/internal/store"
)

// Dispatcher hands a job to the external crawler.
type Dispatcher interface {
	Dispatch(ctx context.Context, job crawler.Job) error
}

// DispatchError reports a job that was created but could not be handed to
// the crawler. The job has been marked failed.
type DispatchError struct {
	JobID string
	Err   error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch job %s: %v", e.JobID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Service creates, dispatches, and cancels crawl jobs.
type Service struct {
	jobs       store.JobRepository
	dispatcher Dispatcher
	ids        crawler.IDGenerator
	clock      crawler.Clock
	logger     *zap.Logger
}

// NewService wires a Service. A nil logger is replaced with a no-op logger.
func NewService(jobs store.JobRepository, d Dispatcher, ids crawler.IDGenerator, clock crawler.Clock, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{jobs: jobs, dispatcher: d, ids: ids, clock: clock, logger: logger}
}

// StartJob creates a pending job, dispatches it, and moves it to queued.
// A dispatch failure moves the job to failed and returns *DispatchError
// together with the failed job. Dispatch is not retried.
func (s *Service) StartJob(ctx context.Context, projectID string, cfg map[string]any) (crawler.Job, error) {
	if projectID == "" {
		return crawler.Job{}, errors.New("project id is required")
	}
	id, err := s.ids.NewID()
	if err != nil {
		return crawler.Job{}, fmt.Errorf("job id: %w", err)
	}
	job := crawler.Job{
		ID:        id,
		ProjectID: projectID,
		Status:    crawler.JobStatusPending,
		CreatedAt: s.clock.Now(),
		Config:    cfg,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return crawler.Job{}, fmt.Errorf("create job: %w", err)
	}
	logger := s.logger.With(zap.String("job_id", id), zap.String("project_id", projectID))

	if dispatchErr := s.dispatcher.Dispatch(ctx, job); dispatchErr != nil {
		logger.Warn("crawl dispatch failed", zap.Error(dispatchErr))
		if err := s.move(ctx, &job, crawler.JobStatusFailed, dispatchErr.Error()); err != nil {
			logger.Error("mark job failed", zap.Error(err))
		}
		return job, &DispatchError{JobID: id, Err: dispatchErr}
	}

	if err := s.move(ctx, &job, crawler.JobStatusQueued, ""); err != nil {
		// The crawler may already have sent its first batch and moved the
		// job to crawling; the stored status wins.
		if errors.Is(err, store.ErrStatusConflict) {
			return s.jobs.GetJob(ctx, id)
		}
		return job, err
	}
	logger.Info("crawl job dispatched")
	return job, nil
}

// Cancel moves an active job to cancelled. Terminal jobs yield a
// *crawler.TransitionError.
func (s *Service) Cancel(ctx context.Context, jobID string) (crawler.Job, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return crawler.Job{}, err
	}
	if err := s.move(ctx, &job, crawler.JobStatusCancelled, ""); err != nil {
		return job, err
	}
	s.logger.Info("crawl job cancelled", zap.String("job_id", jobID))
	return job, nil
}

func (s *Service) move(ctx context.Context, job *crawler.Job, next crawler.JobStatus, message string) error {
	if _, err := job.Status.Transition(next); err != nil {
		return err
	}
	at := s.clock.Now()
	err := s.jobs.TransitionJob(ctx, store.JobTransition{
		JobID:        job.ID,
		From:         job.Status,
		To:           next,
		At:           at,
		ErrorMessage: message,
	})
	if err != nil {
		return fmt.Errorf("transition %s -> %s: %w", job.Status, next, err)
	}
	metrics.ObserveTransition(string(next))
	job.Status = next
	if next.IsTerminal() {
		job.CompletedAt = &at
	}
	if message != "" {
		job.ErrorMessage = message
	}
	return nil
}
