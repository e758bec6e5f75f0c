package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmylchreest/youcube/internal/startup"
)

// ScratchCleanupJob is the name of the job that removes orphaned scratch directories.
const ScratchCleanupJob = "scratch-cleanup"

// NewScratchCleanupJob returns a job that removes scratch directories under root
// older than maxAge.
func NewScratchCleanupJob(logger *slog.Logger, schedule, root string, maxAge time.Duration) Job {
	return Job{
		Name:     ScratchCleanupJob,
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			removed, err := startup.CleanupOrphanedTempDirs(logger, root, maxAge)
			if removed > 0 {
				logger.Info("removed orphaned scratch directories", slog.Int("count", removed))
			}
			return err
		},
	}
}
