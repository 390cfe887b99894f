package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"

	"github.com/magabrotheeeer/remnashop/internal/lib/sl"
	"github.com/magabrotheeeer/remnashop/internal/lock"
	"github.com/magabrotheeeer/remnashop/internal/notify"
	plansvc "github.com/magabrotheeeer/remnashop/internal/services/plan"
	syncsvc "github.com/magabrotheeeer/remnashop/internal/services/sync"
)

// SyncEngine синхронизация пользователей с панелью.
type SyncEngine interface {
	PanelToBot(ctx context.Context) (*syncsvc.Result, error)
	BotToPanel(ctx context.Context) (*syncsvc.Result, error)
	RecoverIntents(ctx context.Context) (*syncsvc.Result, error)
}

// SquadReconciler сверка сквадов тарифов с панелью.
type SquadReconciler interface {
	ReconcileSquads(ctx context.Context) (plansvc.SquadSyncResult, error)
}

// ResultNotifier отправляет итог задачи администратору.
type ResultNotifier interface {
	NotifySyncResult(ctx context.Context, adminID int64, kind notify.SyncKind, summary map[string]string)
}

// Runner выполняет задачи синхронизации из очереди. Ошибки задачи не
// возвращаются в очередь: повтор того же прохода не поможет, администратор
// получает итог с ошибкой.
type Runner struct {
	engine   SyncEngine
	squads   SquadReconciler
	notifier ResultNotifier
	adminID  int64
	log      *slog.Logger
}

// NewRunner создает Runner. adminID получает итоги задач, поставленных по расписанию.
func NewRunner(engine SyncEngine, squads SquadReconciler, notifier ResultNotifier, adminID int64, log *slog.Logger) *Runner {
	return &Runner{
		engine:   engine,
		squads:   squads,
		notifier: notifier,
		adminID:  adminID,
		log:      log,
	}
}

// Handle разбирает SyncJob и выполняет её.
func (r *Runner) Handle(ctx context.Context, body []byte) error {
	const op = "worker.Handle"
	log := r.log.With(slog.String("op", op))

	var job notify.SyncJob
	if err := json.Unmarshal(body, &job); err != nil {
		log.Error("failed to decode sync job, dropped", sl.Err(err))
		return nil
	}
	if !job.Kind.Valid() {
		log.Error("unknown sync kind, dropped", slog.String("kind", string(job.Kind)))
		return nil
	}
	log = log.With(slog.String("kind", string(job.Kind)), slog.Int64("requested_by", job.RequestedBy))

	summary, err := r.run(ctx, job.Kind)
	if errors.Is(err, syncsvc.ErrSyncInProgress) || errors.Is(err, lock.ErrLocked) {
		log.Info("sync is already running, job skipped")
		summary = map[string]string{"status": "skipped"}
	} else if err != nil {
		log.Error("sync job failed", sl.Err(err))
		summary = map[string]string{"status": "failed", "error": err.Error()}
	} else {
		log.Info("sync job finished", slog.Any("summary", summary))
		summary["status"] = "completed"
	}

	adminID := job.RequestedBy
	if adminID == 0 {
		adminID = r.adminID
	}
	if adminID != 0 {
		r.notifier.NotifySyncResult(ctx, adminID, job.Kind, summary)
	}
	return nil
}

func (r *Runner) run(ctx context.Context, kind notify.SyncKind) (map[string]string, error) {
	var (
		res *syncsvc.Result
		err error
	)
	switch kind {
	case notify.SyncPanelToBot:
		res, err = r.engine.PanelToBot(ctx)
	case notify.SyncBotToPanel:
		res, err = r.engine.BotToPanel(ctx)
	case notify.SyncRecoverIntents:
		res, err = r.engine.RecoverIntents(ctx)
	case notify.SyncPlansSquads:
		sq, err := r.squads.ReconcileSquads(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"updated":   strconv.Itoa(sq.Updated),
			"unchanged": strconv.Itoa(sq.Unchanged),
		}, nil
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, syncsvc.ErrSyncInProgress
	}
	return res.Summary(), nil
}
