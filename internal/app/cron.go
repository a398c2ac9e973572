package app

import (
	"context"
	"fmt"
	"time"

	"github.com/veloghq/velog-server/internal/models"
	pkgcron "github.com/veloghq/velog-server/internal/pkg/cron"
	"go.uber.org/zap"
)

// registerCronJobs registers all scheduled background jobs.
func registerCronJobs(sched *pkgcron.Scheduler, deps *services, logger *zap.Logger) {
	cronLogger := logger.Named("cron")

	sched.Register(pkgcron.Job{
		Name:        "cleanup_sessions",
		Description: "delete refresh sessions past their expiry",
		Interval:    24 * time.Hour,
		Fn: func(ctx context.Context) error {
			removed, err := deps.auth.RevokeExpiredSessions()
			if err != nil {
				cronLogger.Warn("session cleanup failed", zap.Error(err))
				return err
			}
			cronLogger.Info(fmt.Sprintf("session cleanup removed %d rows", removed))
			return nil
		},
	})

	sched.Register(pkgcron.Job{
		Name:        "cleanup_read_log",
		Description: "trim read log entries older than 90 days",
		Interval:    24 * time.Hour,
		Fn: func(ctx context.Context) error {
			cutoff := time.Now().AddDate(0, 0, -90)
			result := deps.db.Unscoped().
				Where("created_at < ?", cutoff).
				Delete(&models.PostReadModel{})
			if result.Error != nil {
				cronLogger.Warn("read log cleanup failed", zap.Error(result.Error))
				return result.Error
			}
			cronLogger.Info(fmt.Sprintf("read log cleanup removed %d rows", result.RowsAffected))
			return nil
		},
	})

	sched.Register(pkgcron.Job{
		Name:        "sync_search_index",
		Description: "full push of public posts to the search index",
		Interval:    24 * time.Hour,
		Fn: func(ctx context.Context) error {
			if !deps.cfg.Search.Enable {
				return nil
			}
			if err := deps.search.IndexAll(); err != nil {
				cronLogger.Warn("search reindex failed", zap.Error(err))
				return err
			}
			return nil
		},
	})
}
