// Package jobs holds the privileged background work that the scheduler
// triggers through /api/cron, plus the run history kept for each trigger.
package jobs

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnknownJob  = errors.New("unknown job")
	ErrJobRunning  = errors.New("job already running")
	ErrJobPanicked = errors.New("job panicked")
	// ErrDisabled is returned by a job whose collaborator is not configured.
	ErrDisabled = errors.New("job disabled")
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusDisabled  = "disabled"

	TriggerScheduler = "scheduler"
	TriggerManual    = "manual"
)

type Job interface {
	Name() string
	// Schedule is a standard 5-field cron expression or a @descriptor.
	Schedule() string
	Run(ctx context.Context) (Report, error)
}

type Report struct {
	Processed int            `json:"processed"`
	Details   map[string]any `json:"details,omitempty"`
}

type Run struct {
	ID        string    `json:"id"`
	Job       string    `json:"job"`
	Trigger   string    `json:"trigger"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
	Report    Report    `json:"report"`
	Error     string    `json:"error,omitempty"`
}

func (r Run) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}
