package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/magabrotheeeer/remnashop/internal/models"
	"github.com/magabrotheeeer/remnashop/internal/remnawave"
	"github.com/magabrotheeeer/remnashop/internal/storage/repository"
)

// RecoverIntents завершает пересоздания, прерванные между удалением
// пользователя панели и сохранением нового UUID.
func (e *Engine) RecoverIntents(ctx context.Context) (*Result, error) {
	const op = "sync.RecoverIntents"

	return e.run(ctx, op, DirectionRecoverIntents, e.recoverIntents)
}

func (e *Engine) recoverIntents(ctx context.Context, res *Result) error {
	pending, err := e.intents.ListPendingIntents(ctx)
	if err != nil {
		return fmt.Errorf("list pending intents: %w", err)
	}
	for _, in := range pending {
		label := fmt.Sprintf("intent %d (%d)", in.ID, in.UserTelegramID)
		e.process(ctx, res, label, true, func(ctx context.Context) (outcome, error) {
			return e.recoverIntent(ctx, in)
		})
	}
	return nil
}

func (e *Engine) recoverIntent(ctx context.Context, in models.RecreateIntent) (outcome, error) {
	if in.Stage == models.IntentRecorded {
		_, err := e.panel.GetUserByUUID(ctx, in.OldRemnaID)
		switch {
		case err == nil:
			// старый пользователь не удалён, пересоздание повторит следующий BotToPanel
			if err := e.intents.CompleteIntent(ctx, in.ID, in.OldRemnaID); err != nil {
				return outcomeError, fmt.Errorf("close intent: %w", err)
			}
			return outcomeSkipped, nil
		case !errors.Is(err, remnawave.ErrNotFound):
			return outcomeError, fmt.Errorf("get old panel user: %w", err)
		}
	}

	user, err := e.users.GetUserByTelegramID(ctx, in.UserTelegramID)
	if err != nil {
		return e.dropIntent(ctx, in, "get user", err)
	}
	sub, err := e.subs.GetSubscription(ctx, in.SubscriptionID)
	if err != nil {
		return e.dropIntent(ctx, in, "get subscription", err)
	}

	existing, err := e.panel.GetUsersByTelegramID(ctx, in.UserTelegramID)
	if err != nil {
		return outcomeError, fmt.Errorf("find panel user by telegram id: %w", err)
	}
	pu, ok := lo.Find(existing, func(u remnawave.User) bool {
		return in.DesiredShortUUID != "" && u.ShortUUID == in.DesiredShortUUID
	})
	if ok {
		if err := e.completeRecreate(ctx, in.ID, *user, sub, in.DesiredShortUUID, &pu); err != nil {
			return outcomeError, err
		}
		return outcomeRecreated, nil
	}

	if err := e.finishRecreate(ctx, in.ID, *user, sub, in.DesiredShortUUID); err != nil {
		return outcomeError, err
	}
	return outcomeRecreated, nil
}

// dropIntent закрывает запись, если пользователя или подписки больше нет.
func (e *Engine) dropIntent(ctx context.Context, in models.RecreateIntent, step string, err error) (outcome, error) {
	if !errors.Is(err, repository.ErrNotFound) {
		return outcomeError, fmt.Errorf("%s: %w", step, err)
	}
	e.log.Warn("dropping recreate intent: local record is gone",
		slog.Int64("intent_id", in.ID),
		slog.Int64("telegram_id", in.UserTelegramID),
		slog.String("step", step),
	)
	if err := e.intents.CompleteIntent(ctx, in.ID, ""); err != nil {
		return outcomeError, fmt.Errorf("close intent: %w", err)
	}
	return outcomeSkipped, nil
}
