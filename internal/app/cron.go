package app

import (
	"context"
	"errors"
	"time"

	"github.com/casaflora/tienda-core/internal/modules/backup"
	pkgcron "github.com/casaflora/tienda-core/internal/pkg/cron"
	"go.uber.org/zap"
)

// registerCronJobs registers all scheduled background jobs.
func (a *App) registerCronJobs() {
	cronLogger := a.logger.Named("cron")

	a.sched.Register(pkgcron.Job{
		Name:        "purge_finished_tasks",
		Description: "Elimina tareas de correo completadas con más de 7 días",
		Interval:    24 * time.Hour,
		Fn: func(ctx context.Context) error {
			cutoff := time.Now().AddDate(0, 0, -7).UnixMilli()
			if err := a.tasks.PurgeFinished(ctx, cutoff); err != nil {
				cronLogger.Warn("task purge failed", zap.Error(err))
				return err
			}
			return nil
		},
	})

	a.sched.Register(pkgcron.Job{
		Name:        "auto_backup",
		Description: "Copia de seguridad diaria de la lista de suscriptores",
		Interval:    24 * time.Hour,
		Fn: func(ctx context.Context) error {
			item, err := a.backupSvc.Snapshot(ctx)
			if err != nil {
				if errors.Is(err, backup.ErrDisabled) {
					return nil
				}
				cronLogger.Warn("auto backup failed", zap.Error(err))
				return err
			}
			cronLogger.Info("auto backup done", zap.String("file", item.Filename))
			return nil
		},
	})
}
