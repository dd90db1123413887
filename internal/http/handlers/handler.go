package handlers

import (
	"context"
	"time"

	"bracket-pool-services/internal/config"
	"bracket-pool-services/internal/jobs"
	"bracket-pool-services/internal/storage"

	"go.uber.org/zap"
)

// ArchiveLister is satisfied by *storage.ArchiveStore.
type ArchiveLister interface {
	ListArchives(ctx context.Context, datePrefix string, limit int) ([]storage.Archive, error)
}

type Handler struct {
	Logger   *zap.Logger
	Config   config.Config
	Jobs     *jobs.Runner
	Runs     jobs.RunLister
	Archives ArchiveLister
	Now      func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
