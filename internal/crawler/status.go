package crawler

import (
	"errors"
	"fmt"
	"strings"
)

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusQueued    JobStatus = "queued"
	JobStatusCrawling  JobStatus = "crawling"
	JobStatusScoring   JobStatus = "scoring"
	JobStatusComplete  JobStatus = "complete"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ErrInvalidTransition is wrapped by every rejected status change.
var ErrInvalidTransition = errors.New("invalid job status transition")

// TransitionError records the rejected move.
type TransitionError struct {
	From JobStatus
	To   JobStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

// Unwrap lets errors.Is match ErrInvalidTransition.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// Terminal states have no entry here.
var validTransitions = map[JobStatus][]JobStatus{
	JobStatusPending: {
		JobStatusQueued,    // accepted by the crawler service
		JobStatusCrawling,  // first batch arrived before the queue ack
		JobStatusFailed,    // dispatch error
		JobStatusCancelled, // manual cancellation
	},
	JobStatusQueued: {
		JobStatusCrawling,
		JobStatusFailed,
		JobStatusCancelled,
	},
	JobStatusCrawling: {
		JobStatusScoring,
		JobStatusFailed,
		JobStatusCancelled,
	},
	JobStatusScoring: {
		JobStatusComplete,
		JobStatusFailed,
		JobStatusCancelled,
	},
}

// ParseJobStatus converts a persisted or user-supplied value.
func ParseJobStatus(raw string) (JobStatus, error) {
	status := JobStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case JobStatusPending, JobStatusQueued, JobStatusCrawling, JobStatusScoring,
		JobStatusComplete, JobStatusFailed, JobStatusCancelled:
		return status, nil
	default:
		return "", fmt.Errorf("unknown job status %q", raw)
	}
}

// CanTransitionTo is a pure membership check against the transition table.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition returns next when the move is allowed and a *TransitionError otherwise.
func (s JobStatus) Transition(next JobStatus) (JobStatus, error) {
	if !s.CanTransitionTo(next) {
		return s, &TransitionError{From: s, To: next}
	}
	return next, nil
}

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusComplete, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether pollers should keep polling the job.
func (s JobStatus) IsActive() bool {
	switch s {
	case JobStatusPending, JobStatusQueued, JobStatusCrawling, JobStatusScoring:
		return true
	default:
		return false
	}
}

// AllJobStatuses lists every state, useful for exhaustive checks.
func AllJobStatuses() []JobStatus {
	return []JobStatus{
		JobStatusPending,
		JobStatusQueued,
		JobStatusCrawling,
		JobStatusScoring,
		JobStatusComplete,
		JobStatusFailed,
		JobStatusCancelled,
	}
}
