package jobs

import (
	"context"
	"fmt"
	"time"

	"bracket-pool-services/internal/queue"
	"bracket-pool-services/internal/storage"
)

const (
	RefreshStandingsJobName = "refresh-standings"
	PruneRunsJobName        = "prune-cron-runs"
	ArchiveRunsJobName      = "archive-cron-runs"

	// maxArchivePages bounds one archive at maxArchivePages*maxListLimit runs.
	maxArchivePages = 20
)

// EventPublisher is satisfied by *queue.Client.
type EventPublisher interface {
	PublishJSON(ctx context.Context, exchange, routingKey string, payload any) error
}

// Archiver is satisfied by *storage.ArchiveStore.
type Archiver interface {
	PutJSON(ctx context.Context, key string, payload any) (storage.Archive, error)
}

type runArchive struct {
	GeneratedAt time.Time `json:"generatedAt"`
	Since       time.Time `json:"since"`
	Truncated   bool      `json:"truncated"`
	Runs        []Run     `json:"runs"`
}

type StandingsRefreshRequested struct {
	Type        string    `json:"type"`
	RequestedAt time.Time `json:"requestedAt"`
	Source      string    `json:"source"`
}

// RefreshStandingsJob asks the standings workers to recompute every pool.
type RefreshStandingsJob struct {
	Publisher EventPublisher
	Now       func() time.Time
}

func (j *RefreshStandingsJob) Name() string     { return RefreshStandingsJobName }
func (j *RefreshStandingsJob) Schedule() string { return "0 6 * * *" }

func (j *RefreshStandingsJob) Run(ctx context.Context) (Report, error) {
	if j.Publisher == nil {
		return Report{}, ErrDisabled
	}
	event := StandingsRefreshRequested{
		Type:        queue.StandingsRefreshRequestedRK,
		RequestedAt: nowUTC(j.Now),
		Source:      "cron",
	}
	if err := j.Publisher.PublishJSON(ctx, queue.EventsExchange, queue.StandingsRefreshRequestedRK, event); err != nil {
		return Report{}, fmt.Errorf("publish refresh request: %w", err)
	}
	return Report{
		Processed: 1,
		Details: map[string]any{
			"exchange":   queue.EventsExchange,
			"routingKey": queue.StandingsRefreshRequestedRK,
		},
	}, nil
}

type PruneRunsJob struct {
	Store     RunPruner
	Retention time.Duration
	Now       func() time.Time
}

func (j *PruneRunsJob) Name() string     { return PruneRunsJobName }
func (j *PruneRunsJob) Schedule() string { return "30 3 * * *" }

func (j *PruneRunsJob) Run(ctx context.Context) (Report, error) {
	if j.Store == nil {
		return Report{}, ErrDisabled
	}
	if j.Retention <= 0 {
		return Report{}, fmt.Errorf("retention must be positive, got %s", j.Retention)
	}
	cutoff := nowUTC(j.Now).Add(-j.Retention)
	deleted, err := j.Store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Processed: int(deleted),
		Details:   map[string]any{"cutoff": cutoff},
	}, nil
}

// ArchiveRunsJob uploads the recent run history as a JSON document.
type ArchiveRunsJob struct {
	Store   RunLister
	Archive Archiver
	Window  time.Duration
	Now     func() time.Time
}

func (j *ArchiveRunsJob) Name() string     { return ArchiveRunsJobName }
func (j *ArchiveRunsJob) Schedule() string { return "0 4 * * *" }

func (j *ArchiveRunsJob) Run(ctx context.Context) (Report, error) {
	if j.Store == nil || j.Archive == nil {
		return Report{}, ErrDisabled
	}
	window := j.Window
	if window <= 0 {
		window = 24 * time.Hour
	}

	now := nowUTC(j.Now)
	since := now.Add(-window)
	runs, truncated, err := j.collect(ctx, since, now)
	if err != nil {
		return Report{}, err
	}

	archive, err := j.Archive.PutJSON(ctx, storage.ArchiveKey(now), runArchive{
		GeneratedAt: now,
		Since:       since,
		Truncated:   truncated,
		Runs:        runs,
	})
	if err != nil {
		return Report{}, fmt.Errorf("upload archive: %w", err)
	}
	return Report{
		Processed: len(runs),
		Details: map[string]any{
			"key":       archive.Key,
			"url":       archive.URL,
			"size":      archive.Size,
			"truncated": truncated,
		},
	}, nil
}

// collect pages backwards from until through the store's newest-first
// listing. Each page restarts at the oldest start time already seen, so runs
// sharing that timestamp are fetched twice and deduplicated by ID.
func (j *ArchiveRunsJob) collect(ctx context.Context, since, until time.Time) ([]Run, bool, error) {
	runs := make([]Run, 0)
	seen := make(map[string]struct{})
	for page := 0; page < maxArchivePages; page++ {
		batch, err := j.Store.List(ctx, ListFilter{Since: since, Until: until, Limit: maxListLimit})
		if err != nil {
			return nil, false, err
		}
		added := 0
		for _, run := range batch {
			if _, dup := seen[run.ID]; dup {
				continue
			}
			seen[run.ID] = struct{}{}
			runs = append(runs, run)
			added++
		}
		if len(batch) < maxListLimit {
			return runs, false, nil
		}
		if added == 0 {
			// A full page of runs that all started at the same instant.
			return runs, true, nil
		}
		until = batch[len(batch)-1].StartedAt
	}
	return runs, true, nil
}

func nowUTC(now func() time.Time) time.Time {
	if now == nil {
		return time.Now().UTC()
	}
	return now().UTC()
}
