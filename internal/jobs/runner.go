package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"bracket-pool-services/internal/logger"
	"bracket-pool-services/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Runner executes registered jobs one at a time per job name and keeps a
// history of every attempt.
type Runner struct {
	registry *Registry
	recorder RunRecorder
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	running map[string]struct{}
}

type RunnerOption func(*Runner)

func WithRecorder(recorder RunRecorder) RunnerOption {
	return func(r *Runner) { r.recorder = recorder }
}

func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

func NewRunner(registry *Registry, log *zap.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: registry,
		log:      logger.OrNop(log),
		now:      time.Now,
		running:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Registry() *Registry {
	return r.registry
}

// Run executes the named job. A job that fails still yields a recorded Run
// alongside the error; a disabled job is not an error.
func (r *Runner) Run(ctx context.Context, name string, trigger string) (Run, error) {
	job, ok := r.registry.Get(name)
	if !ok {
		return Run{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if !r.acquire(name) {
		return Run{}, fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	defer r.release(name)

	run := Run{
		ID:        uuid.NewString(),
		Job:       name,
		Trigger:   trigger,
		StartedAt: r.now().UTC(),
	}

	report, runErr := r.runJob(ctx, job)
	run.EndedAt = r.now().UTC()
	run.Report = report

	switch {
	case runErr == nil:
		run.Status = StatusSucceeded
	case errors.Is(runErr, ErrDisabled):
		run.Status = StatusDisabled
		runErr = nil
	default:
		run.Status = StatusFailed
		run.Error = runErr.Error()
	}

	r.metrics.JobRun(name, run.Status, run.Duration())

	fields := []zap.Field{
		zap.String("job", name),
		zap.String("runId", run.ID),
		zap.String("trigger", trigger),
		zap.String("status", run.Status),
		zap.Int("processed", report.Processed),
		zap.Duration("duration", run.Duration()),
	}
	if runErr != nil {
		r.log.Error("cron job failed", append(fields, zap.Error(runErr))...)
	} else {
		r.log.Info("cron job finished", fields...)
	}

	if r.recorder != nil {
		// Recording must outlive a client that hung up mid-run.
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := r.recorder.Record(recordCtx, run); err != nil {
			r.log.Warn("cron run not recorded", zap.String("job", name), zap.String("runId", run.ID), zap.Error(err))
		}
	}

	if runErr != nil {
		return run, fmt.Errorf("run %s: %w", name, runErr)
	}
	return run, nil
}

// runJob converts a panicking job into a failed run so it is still
// recorded and counted.
func (r *Runner) runJob(ctx context.Context, job Job) (report Report, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("cron job panicked",
				zap.String("job", job.Name()),
				zap.Any("panic", p),
				zap.ByteString("stack", debug.Stack()),
			)
			report = Report{}
			err = fmt.Errorf("%w: %v", ErrJobPanicked, p)
		}
	}()
	return job.Run(ctx)
}

func (r *Runner) acquire(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.running[name]; busy {
		return false
	}
	r.running[name] = struct{}{}
	return true
}

func (r *Runner) release(name string) {
	r.mu.Lock()
	delete(r.running, name)
	r.mu.Unlock()
}
