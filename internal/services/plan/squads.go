package plan

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/samber/lo"

	"github.com/magabrotheeeer/remnashop/internal/lib/sl"
	"github.com/magabrotheeeer/remnashop/internal/lock"
	"github.com/magabrotheeeer/remnashop/internal/models"
	"github.com/magabrotheeeer/remnashop/internal/remnawave"
)

// SquadSyncResult итог сверки сквадов тарифов.
type SquadSyncResult struct {
	Updated   int
	Unchanged int
}

// SyncPlansSquads оставляет в тарифах только существующие внутренние сквады.
// Тариф без сквадов получает defaultSquad, внешний сквад очищается.
// Повторный запуск с тем же набором сквадов ничего не меняет.
func (s *Service) SyncPlansSquads(ctx context.Context, validSquads []string, defaultSquad string) (SquadSyncResult, error) {
	const op = "plan.SyncPlansSquads"

	plans, err := s.plans.ListPlans(ctx)
	if err != nil {
		return SquadSyncResult{}, fmt.Errorf("%s: %w", op, err)
	}

	var res SquadSyncResult
	for _, p := range plans {
		next, changed := reconcileSquads(p, validSquads, defaultSquad)
		if !changed {
			res.Unchanged++
			continue
		}
		if err := s.plans.UpdatePlan(ctx, next); err != nil {
			s.log.Error("failed to save plan squads",
				slog.String("op", op),
				slog.Int64("plan_id", p.ID),
				sl.Err(err),
			)
			res.Unchanged++
			continue
		}
		s.log.Info("plan squads updated",
			slog.Int64("plan_id", p.ID),
			slog.Any("internal_squads", next.InternalSquads),
		)
		res.Updated++
	}

	if s.metrics != nil {
		s.metrics.ObserveSquadsReconciled(res.Updated, res.Unchanged)
	}
	return res, nil
}

func reconcileSquads(p models.Plan, valid []string, defaultSquad string) (models.Plan, bool) {
	next := p.Clone()

	filtered := lo.Filter(p.InternalSquads, func(uuid string, _ int) bool {
		return lo.Contains(valid, uuid)
	})
	if len(filtered) == 0 {
		filtered = []string{defaultSquad}
	}
	next.InternalSquads = filtered
	next.ExternalSquad = nil

	changed := !slices.Equal(p.InternalSquads, next.InternalSquads) || len(p.ExternalSquad) > 0
	return next, changed
}

// ReconcileSquads сверяет сквады тарифов с текущими сквадами панели.
// Сквад по умолчанию берётся из конфигурации, если он есть на панели,
// иначе первый сквад панели.
func (s *Service) ReconcileSquads(ctx context.Context) (SquadSyncResult, error) {
	const op = "plan.ReconcileSquads"

	var res SquadSyncResult
	err := s.locker.WithLock(ctx, lock.SyncPlans, func(ctx context.Context) error {
		squads, err := s.panel.ListInternalSquads(ctx)
		if err != nil {
			return err
		}
		if len(squads) == 0 {
			return ErrNoSquads
		}

		valid := lo.Map(squads, func(q remnawave.Squad, _ int) string { return q.UUID })
		def := s.defaultSquad
		if !lo.Contains(valid, def) {
			if def != "" {
				s.log.Warn("configured default squad is missing on panel", slog.String("squad", def))
			}
			def = valid[0]
		}

		res, err = s.SyncPlansSquads(ctx, valid, def)
		return err
	})
	if err != nil {
		return SquadSyncResult{}, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}
