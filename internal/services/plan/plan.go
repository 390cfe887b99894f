// Package plan отвечает за редактирование тарифов и сверку их сквадов с панелью.
//
// Правки тарифа копятся в черновике (PlanDraft) и применяются одной транзакцией
// в Confirm. После изменения существующего тарифа активные подписки по нему
// получают новый снимок и отправляются на панель.
package plan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/remnashop/internal/lib/sl"
	"github.com/magabrotheeeer/remnashop/internal/models"
	"github.com/magabrotheeeer/remnashop/internal/remnawave"
	syncsvc "github.com/magabrotheeeer/remnashop/internal/services/sync"
	"github.com/magabrotheeeer/remnashop/internal/storage/repository"
)

var (
	// ErrPlanNotFound тариф из черновика не найден.
	ErrPlanNotFound = errors.New("plan not found")
	// ErrDraftNotFound у администратора нет открытого черновика.
	ErrDraftNotFound = errors.New("plan draft not found")
	// ErrNoSquads на панели нет ни одного внутреннего сквада.
	ErrNoSquads = errors.New("panel has no internal squads")
)

// PlanRepository хранилище тарифов.
type PlanRepository interface {
	CreatePlan(ctx context.Context, p models.Plan) (int64, error)
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
	GetPlanByName(ctx context.Context, name string) (*models.Plan, error)
	GetPlanByTag(ctx context.Context, tag string) (*models.Plan, error)
	ListActivePlansByAvailability(ctx context.Context, a models.PlanAvailability) ([]models.Plan, error)
	ListPlans(ctx context.Context) ([]models.Plan, error)
	UpdatePlan(ctx context.Context, p models.Plan) error
}

// SubscriptionRepository подписки, которые нужно обновить вместе с тарифом.
type SubscriptionRepository interface {
	ListActiveSubscriptionsByPlan(ctx context.Context, planID int64) ([]models.Subscription, error)
	UpdateSubscription(ctx context.Context, sub models.Subscription) error
}

// TxRunner выполняет fn в одной транзакции.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Panel методы панели, нужные тарифам.
type Panel interface {
	ListInternalSquads(ctx context.Context) ([]remnawave.Squad, error)
	UpdateUser(ctx context.Context, req remnawave.UpdateUserRequest) (*remnawave.User, error)
}

// Notifier ставит задачи боту.
type Notifier interface {
	QueueRedirect(ctx context.Context, telegramID int64)
}

// Locker блокировка задач.
type Locker interface {
	WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// SquadMetrics учёт сверки сквадов.
type SquadMetrics interface {
	ObserveSquadsReconciled(updated, unchanged int)
}

// Deps зависимости Service.
type Deps struct {
	Plans         PlanRepository
	Subscriptions SubscriptionRepository
	Tx            TxRunner
	Drafts        *DraftStore
	Panel         Panel
	Notifier      Notifier
	Locker        Locker
	Metrics       SquadMetrics
}

// Service тарифы: черновики, подтверждение и сверка сквадов.
type Service struct {
	plans        PlanRepository
	subs         SubscriptionRepository
	tx           TxRunner
	drafts       *DraftStore
	panel        Panel
	notifier     Notifier
	locker       Locker
	metrics      SquadMetrics
	defaultSquad string
	log          *slog.Logger
}

// NewService создает сервис тарифов. defaultSquad используется, когда у тарифа
// не остаётся ни одного живого сквада.
func NewService(d Deps, defaultSquad string, log *slog.Logger) *Service {
	return &Service{
		plans:        d.Plans,
		subs:         d.Subscriptions,
		tx:           d.Tx,
		drafts:       d.Drafts,
		panel:        d.Panel,
		notifier:     d.Notifier,
		locker:       d.Locker,
		metrics:      d.Metrics,
		defaultSquad: defaultSquad,
		log:          log,
	}
}

// ConfirmResult итог подтверждения черновика.
type ConfirmResult struct {
	Plan                models.Plan
	Created             bool
	SyncedSubscriptions int
	FailedSubscriptions int
}

// StartSession открывает черновик. Для правки существующего тарифа проверяет, что он есть.
func (s *Service) StartSession(ctx context.Context, adminID int64, planID *int64) (*PlanDraft, error) {
	const op = "plan.StartSession"

	if planID != nil {
		if _, err := s.getPlan(ctx, *planID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	d, err := s.drafts.StartSession(ctx, adminID, planID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("plan edit session started",
		slog.Int64("admin_id", adminID),
		slog.String("session_id", d.SessionID),
		slog.Bool("new_plan", d.IsNew()),
	)
	return d, nil
}

// UpdateDraft переносит в черновик заданные поля patch.
func (s *Service) UpdateDraft(ctx context.Context, adminID int64, patch PlanDraft) (*PlanDraft, error) {
	const op = "plan.UpdateDraft"

	d, err := s.drafts.UpdateDraft(ctx, adminID, func(d *PlanDraft) error {
		d.Apply(patch)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return d, nil
}

// Draft возвращает черновик администратора.
func (s *Service) Draft(ctx context.Context, adminID int64) (*PlanDraft, error) {
	const op = "plan.Draft"

	d, err := s.drafts.Draft(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return d, nil
}

// Cancel отменяет черновик без сохранения.
func (s *Service) Cancel(ctx context.Context, adminID int64) error {
	const op = "plan.Cancel"

	if err := s.drafts.Cancel(ctx, adminID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Confirm применяет черновик к тарифу. При нарушении правил возвращает
// ValidationError и ничего не записывает. После изменения существующего тарифа
// обновляет снимок в каждой активной подписке по нему и отправляет подписки на панель.
func (s *Service) Confirm(ctx context.Context, adminID int64) (*ConfirmResult, error) {
	const op = "plan.Confirm"
	log := s.log.With(slog.String("op", op), slog.Int64("admin_id", adminID))

	draft, err := s.drafts.Draft(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	base := NewPlanDefaults()
	if !draft.IsNew() {
		p, err := s.getPlan(ctx, *draft.PlanID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		base = *p
	}

	plan := draft.Merge(base)
	plan.ApplyTypeLimits()
	if plan.Availability.IsSingleton() {
		plan.ZeroPrices()
	}
	if err := s.validate(ctx, plan); err != nil {
		log.Info("plan rejected", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var resynced []models.Subscription
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if draft.IsNew() {
			id, err := s.plans.CreatePlan(ctx, plan)
			if err != nil {
				return err
			}
			plan.ID = id
			return nil
		}

		if err := s.plans.UpdatePlan(ctx, plan); err != nil {
			return err
		}
		subs, err := s.subs.ListActiveSubscriptionsByPlan(ctx, plan.ID)
		if err != nil {
			return err
		}
		for i := range subs {
			subs[i].ApplySnapshot(models.NewPlanSnapshot(plan, subs[i].Plan.Duration))
			if err := s.subs.UpdateSubscription(ctx, subs[i]); err != nil {
				return fmt.Errorf("update subscription %d: %w", subs[i].ID, err)
			}
		}
		resynced = subs
		return nil
	})
	if errors.Is(err, repository.ErrAlreadyExists) {
		return nil, fmt.Errorf("%s: %w", op, invalid(uniqueReason(err)))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res := &ConfirmResult{Plan: plan, Created: draft.IsNew()}
	for _, sub := range resynced {
		if s.pushSubscription(ctx, log, sub) {
			res.SyncedSubscriptions++
		} else {
			res.FailedSubscriptions++
		}
		s.notifier.QueueRedirect(ctx, sub.UserTelegramID)
	}

	if err := s.drafts.Cancel(ctx, adminID); err != nil {
		log.Warn("failed to discard confirmed draft", sl.Err(err))
	}

	log.Info("plan saved",
		slog.Int64("plan_id", plan.ID),
		slog.Bool("created", res.Created),
		slog.Int("synced_subscriptions", res.SyncedSubscriptions),
		slog.Int("failed_subscriptions", res.FailedSubscriptions),
	)
	return res, nil
}

// pushSubscription отправляет подписку на панель. Ошибка одной подписки
// не мешает остальным.
func (s *Service) pushSubscription(ctx context.Context, log *slog.Logger, sub models.Subscription) bool {
	if sub.UserRemnaID == "" {
		log.Warn("subscription is not linked to panel user", slog.Int64("subscription_id", sub.ID))
		return false
	}
	if _, err := s.panel.UpdateUser(ctx, syncsvc.BuildUpdateRequest(sub)); err != nil {
		log.Error("failed to push subscription to panel",
			slog.Int64("subscription_id", sub.ID),
			slog.Int64("telegram_id", sub.UserTelegramID),
			sl.Err(err),
		)
		return false
	}
	return true
}

func (s *Service) getPlan(ctx context.Context, id int64) (*models.Plan, error) {
	p, err := s.plans.GetPlan(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPlanNotFound
	}
	return p, err
}

// uniqueReason причина отказа по нарушенному ограничению уникальности.
func uniqueReason(err error) Reason {
	var ce *repository.ConstraintError
	if errors.As(err, &ce) && ce.Constraint == repository.ConstraintPlanTag {
		return ReasonTagTaken
	}
	return ReasonNameTaken
}
