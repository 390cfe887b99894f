package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/magabrotheeeer/remnashop/internal/lib/sl"
	"github.com/magabrotheeeer/remnashop/internal/notify"
)

// Queue ставит задачи синхронизации.
type Queue interface {
	QueueSync(ctx context.Context, kind notify.SyncKind, requestedBy int64) error
}

// Schedule расписание задачи в формате cron из пяти полей.
type Schedule struct {
	Spec string
	Kind notify.SyncKind
}

// NewScheduler создаёт cron, который по расписанию ставит задачи в очередь.
// Пустой Spec отключает задачу. Задачи выполняет тот же consumer, что и ручные.
func NewScheduler(ctx context.Context, queue Queue, schedules []Schedule, log *slog.Logger) (*cron.Cron, error) {
	const op = "worker.NewScheduler"

	c := cron.New()
	for _, s := range schedules {
		if s.Spec == "" {
			continue
		}
		kind := s.Kind
		_, err := c.AddFunc(s.Spec, func() {
			if err := queue.QueueSync(ctx, kind, 0); err != nil {
				log.Error("failed to queue scheduled sync", slog.String("kind", string(kind)), sl.Err(err))
			}
		})
		if err != nil {
			return nil, fmt.Errorf("%s: schedule %q for %s: %w", op, s.Spec, kind, err)
		}
		log.Info("sync scheduled", slog.String("kind", string(kind)), slog.String("spec", s.Spec))
	}
	return c, nil
}
