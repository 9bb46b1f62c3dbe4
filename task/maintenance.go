package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/angas/spotwindow/config"
	"github.com/angas/spotwindow/metrics"
)

// Maintainer purges prices older than the retention period. Stores that also implement
// Backuper or LogPurger get those chores done in the same run.
type Maintainer interface {
	PurgeElectricityPrice(ctx context.Context, retentionDays int) error
}

type Backuper interface {
	Backup(ctx context.Context) (string, error)
	PurgeBackups(retentionDays int) (int, error)
}

type LogPurger interface {
	PurgeLog(ctx context.Context, maxLogEntries int) error
}

func NewMaintenanceTask(logger *slog.Logger, db Maintainer, cnfg *config.AppConfig) func() {
	return func() {
		logger.Debug("running maintenance task...")

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()

		ok := true
		if b, isBackuper := db.(Backuper); isBackuper {
			if path, err := b.Backup(ctx); err != nil {
				logger.Error("database backup error", slog.Any("error", err))
				ok = false
			} else {
				logger.Info("database backup created", slog.String("file", path))
			}

			if n, err := b.PurgeBackups(cnfg.Database.GetBackupRetentionDays()); err != nil {
				logger.Error("backup maintenance error", slog.Any("error", err))
				ok = false
			} else if n > 0 {
				logger.Info("old backups removed", slog.Int("count", n))
			}
		}

		if l, isLogPurger := db.(LogPurger); isLogPurger {
			if err := l.PurgeLog(ctx, cnfg.Logging.GetDbMaxEntries()); err != nil {
				logger.Error("log maintenance error", slog.Any("error", err))
				ok = false
			}
		}

		if err := db.PurgeElectricityPrice(ctx, cnfg.Database.GetDataRetentionDays()); err != nil {
			logger.Error("electricity_price maintenance error", slog.Any("error", err))
			ok = false
		}

		metrics.RecordTaskRun("maintenance", ok)
		logger.Info("maintenance task done")
	}
}
