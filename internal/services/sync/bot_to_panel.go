package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/magabrotheeeer/remnashop/internal/lib/sl"
	"github.com/magabrotheeeer/remnashop/internal/models"
	"github.com/magabrotheeeer/remnashop/internal/remnawave"
	"github.com/magabrotheeeer/remnashop/internal/storage/repository"
)

// BotToPanel отправляет текущие подписки пользователей бота на панель.
// Перед обходом доводятся до конца незавершённые пересоздания.
func (e *Engine) BotToPanel(ctx context.Context) (*Result, error) {
	const op = "sync.BotToPanel"

	return e.run(ctx, op, DirectionBotToPanel, func(ctx context.Context, res *Result) error {
		rec := newResult(DirectionRecoverIntents)
		if err := e.recoverIntents(ctx, rec); err != nil {
			e.log.Error("failed to recover recreate intents", slog.String("op", op), sl.Err(err))
		} else if rec.Total > 0 {
			e.log.Info("recreate intents recovered",
				slog.String("op", op),
				slog.Int("total", rec.Total),
				slog.Int("recreated", rec.Recreated),
				slog.Int("errors", rec.Errors),
			)
			e.observe(rec)
		}

		var afterID int64
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			users, err := e.users.ListUsersPage(ctx, afterID, e.pageSize)
			if err != nil {
				return fmt.Errorf("list users after %d: %w", afterID, err)
			}
			for _, u := range users {
				e.process(ctx, res, u.Label(), true, func(ctx context.Context) (outcome, error) {
					return e.exportUser(ctx, u)
				})
			}
			if len(users) < e.pageSize {
				return nil
			}
			afterID = users[len(users)-1].TelegramID
		}
	})
}

// exportUser приводит пользователя панели к текущей подписке пользователя бота.
func (e *Engine) exportUser(ctx context.Context, user models.User) (outcome, error) {
	if user.CurrentSubscriptionID == nil {
		return outcomeSkipped, nil
	}
	sub, err := e.subs.GetSubscription(ctx, *user.CurrentSubscriptionID)
	if errors.Is(err, repository.ErrNotFound) {
		return outcomeSkipped, nil
	}
	if err != nil {
		return outcomeError, fmt.Errorf("get subscription: %w", err)
	}

	desired := ShortUUIDFromURL(sub.URL)
	pu, err := e.findPanelUser(ctx, user.TelegramID, *sub, desired)
	if err != nil {
		return outcomeError, err
	}

	switch {
	case pu == nil:
		if err := e.createPanelUser(ctx, user, sub, desired); err != nil {
			return outcomeError, err
		}
		return outcomeCreated, nil
	case desired == "" || pu.ShortUUID == desired:
		if err := e.updatePanelUser(ctx, sub, pu); err != nil {
			return outcomeError, err
		}
		return outcomeUpdated, nil
	default:
		if err := e.recreatePanelUser(ctx, user, sub, pu, desired); err != nil {
			return outcomeError, err
		}
		return outcomeRecreated, nil
	}
}

// findPanelUser ищет пользователя панели по сохранённому UUID, затем по telegram id.
// Среди найденных по telegram id предпочитается пользователь с нужным short uuid.
func (e *Engine) findPanelUser(ctx context.Context, telegramID int64, sub models.Subscription, desired string) (*remnawave.User, error) {
	if sub.UserRemnaID != "" {
		pu, err := e.panel.GetUserByUUID(ctx, sub.UserRemnaID)
		if err == nil {
			return pu, nil
		}
		if !errors.Is(err, remnawave.ErrNotFound) {
			return nil, fmt.Errorf("get panel user: %w", err)
		}
	}

	list, err := e.panel.GetUsersByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("find panel user by telegram id: %w", err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	if pu, ok := lo.Find(list, func(u remnawave.User) bool { return desired != "" && u.ShortUUID == desired }); ok {
		return &pu, nil
	}
	return &list[0], nil
}

func (e *Engine) updatePanelUser(ctx context.Context, sub *models.Subscription, pu *remnawave.User) error {
	oldRemnaID, oldURL := sub.UserRemnaID, sub.URL
	sub.UserRemnaID = pu.UUID

	updated, err := e.panel.UpdateUser(ctx, BuildUpdateRequest(*sub))
	if err != nil {
		return fmt.Errorf("update panel user: %w", remnawave.InactiveRejection(err, pu.Status))
	}
	if updated != nil && updated.SubscriptionURL != "" {
		sub.URL = updated.SubscriptionURL
	}
	if sub.UserRemnaID == oldRemnaID && sub.URL == oldURL {
		return nil
	}
	if err := e.subs.UpdateSubscription(ctx, *sub); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}

func (e *Engine) createPanelUser(ctx context.Context, user models.User, sub *models.Subscription, desired string) error {
	created, err := e.panel.CreateUser(ctx, BuildCreateRequest(user, *sub, desired))
	if err != nil {
		return fmt.Errorf("create panel user: %w", err)
	}
	e.verifyShortUUID(ctx, user.Label(), desired, created)

	linkPanelUser(sub, created)
	if err := e.subs.UpdateSubscription(ctx, *sub); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}

// recreatePanelUser удаляет пользователя панели и создаёт его заново с прежним
// short uuid. Каждый шаг отмечается в журнале, чтобы после сбоя между удалением
// и созданием пересоздание можно было завершить.
func (e *Engine) recreatePanelUser(ctx context.Context, user models.User, sub *models.Subscription, pu *remnawave.User, desired string) error {
	intentID, err := e.intents.RecordIntent(ctx, models.RecreateIntent{
		SubscriptionID:   sub.ID,
		UserTelegramID:   user.TelegramID,
		OldRemnaID:       pu.UUID,
		DesiredShortUUID: desired,
		Stage:            models.IntentRecorded,
	})
	if err != nil {
		return fmt.Errorf("record recreate intent: %w", err)
	}

	e.log.Info("recreating panel user to restore short uuid",
		slog.String("user", user.Label()),
		slog.String("old_uuid", pu.UUID),
		slog.String("short_uuid", pu.ShortUUID),
		slog.String("desired_short_uuid", desired),
	)

	if err := e.panel.DeleteUser(ctx, pu.UUID); err != nil && !errors.Is(err, remnawave.ErrNotFound) {
		return fmt.Errorf("delete panel user: %w", err)
	}
	if err := e.intents.MarkIntentDeleted(ctx, intentID); err != nil {
		return fmt.Errorf("mark intent deleted: %w", err)
	}
	return e.finishRecreate(ctx, intentID, user, sub, desired)
}

func (e *Engine) finishRecreate(ctx context.Context, intentID int64, user models.User, sub *models.Subscription, desired string) error {
	created, err := e.panel.CreateUser(ctx, BuildCreateRequest(user, *sub, desired))
	if err != nil {
		return fmt.Errorf("recreate panel user: %w", err)
	}
	return e.completeRecreate(ctx, intentID, user, sub, desired, created)
}

func (e *Engine) completeRecreate(ctx context.Context, intentID int64, user models.User, sub *models.Subscription, desired string, created *remnawave.User) error {
	e.verifyShortUUID(ctx, user.Label(), desired, created)
	linkPanelUser(sub, created)

	err := e.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := e.subs.UpdateSubscription(ctx, *sub); err != nil {
			return fmt.Errorf("update subscription: %w", err)
		}
		if err := e.intents.CompleteIntent(ctx, intentID, created.UUID); err != nil {
			return fmt.Errorf("complete intent: %w", err)
		}
		return nil
	})
	return err
}

// verifyShortUUID пишет критическую аномалию, если панель не восстановила short uuid.
func (e *Engine) verifyShortUUID(ctx context.Context, label, desired string, created *remnawave.User) {
	if desired == "" || created.ShortUUID == desired {
		return
	}
	err := fmt.Errorf("short uuid mismatch: want %q, got %q", desired, created.ShortUUID)
	e.log.Error("panel did not restore short uuid",
		sl.Critical(),
		slog.String("user", label),
		slog.String("desired_short_uuid", desired),
		slog.String("short_uuid", created.ShortUUID),
	)
	e.notifier.NotifyError(ctx, label, templateShortUUIDMismatch, err, map[string]string{
		"user":     label,
		"expected": desired,
		"actual":   created.ShortUUID,
	})
}

func linkPanelUser(sub *models.Subscription, pu *remnawave.User) {
	sub.UserRemnaID = pu.UUID
	if pu.SubscriptionURL != "" {
		sub.URL = pu.SubscriptionURL
	}
}
