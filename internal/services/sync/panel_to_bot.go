package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/magabrotheeeer/remnashop/internal/models"
	"github.com/magabrotheeeer/remnashop/internal/remnawave"
	"github.com/magabrotheeeer/remnashop/internal/storage/repository"
)

// PanelToBot переносит пользователей панели в базу бота. Пользователи без
// telegram id пропускаются, недостающие локальные пользователи создаются.
func (e *Engine) PanelToBot(ctx context.Context) (*Result, error) {
	const op = "sync.PanelToBot"

	return e.run(ctx, op, DirectionPanelToBot, func(ctx context.Context, res *Result) error {
		for start := 0; ; start += e.pageSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			page, err := e.panel.ListUsers(ctx, start, e.pageSize)
			if err != nil {
				return fmt.Errorf("list panel users from %d: %w", start, err)
			}
			for _, pu := range page.Users {
				e.process(ctx, res, panelLabel(pu), false, func(ctx context.Context) (outcome, error) {
					return e.importPanelUser(ctx, pu)
				})
			}
			if len(page.Users) < e.pageSize || (page.Total > 0 && start+len(page.Users) >= page.Total) {
				return nil
			}
		}
	})
}

// importPanelUser применяет пользователя панели к локальным данным в одной транзакции.
func (e *Engine) importPanelUser(ctx context.Context, pu remnawave.User) (outcome, error) {
	if pu.TelegramID == nil {
		return outcomeSkippedNoTelegram, nil
	}
	telegramID := *pu.TelegramID
	result := outcomeUpdated

	err := e.tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := e.users.GetUserByTelegramID(ctx, telegramID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			u := models.User{
				TelegramID: telegramID,
				Username:   panelTelegramUsername(pu),
				Name:       panelName(pu),
				CreatedAt:  e.now(),
			}
			if err := e.users.CreateUser(ctx, u); err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			user = &u
			result = outcomeCreated
		case err != nil:
			return fmt.Errorf("get user: %w", err)
		default:
			changed := false
			if name := panelName(pu); name != "" && name != user.Name {
				user.Name = name
				changed = true
			}
			if username := panelTelegramUsername(pu); username != "" && username != user.Username {
				user.Username = username
				changed = true
			}
			if changed {
				if err := e.users.UpdateUser(ctx, *user); err != nil {
					return fmt.Errorf("update user: %w", err)
				}
			}
		}

		current, err := e.subs.GetCurrentSubscription(ctx, telegramID)
		if errors.Is(err, repository.ErrNotFound) {
			current = nil
		} else if err != nil {
			return fmt.Errorf("get subscription: %w", err)
		}

		sub := ApplyPanelUser(current, pu, e.now())
		if current != nil {
			if err := e.subs.UpdateSubscription(ctx, sub); err != nil {
				return fmt.Errorf("update subscription: %w", err)
			}
			return nil
		}

		id, err := e.subs.CreateSubscription(ctx, sub)
		if err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}
		user.CurrentSubscriptionID = &id
		if err := e.users.UpdateUser(ctx, *user); err != nil {
			return fmt.Errorf("link subscription: %w", err)
		}
		return nil
	})
	if err != nil {
		return outcomeError, err
	}
	return result, nil
}

// panelName имя пользователя из описания на панели.
func panelName(pu remnawave.User) string {
	if pu.Description == nil {
		return ""
	}
	return strings.TrimSpace(*pu.Description)
}

// panelTelegramUsername имя пользователя панели, если его задал не бот.
// Имена вида rs_<telegram id> бот генерирует сам, они не несут username из Telegram.
func panelTelegramUsername(pu remnawave.User) string {
	username := strings.TrimPrefix(strings.TrimSpace(pu.Username), "@")
	if strings.HasPrefix(username, panelUsernamePrefix) {
		return ""
	}
	return username
}

func panelLabel(pu remnawave.User) string {
	if pu.TelegramID != nil {
		return fmt.Sprintf("%s (%d)", pu.Username, *pu.TelegramID)
	}
	return fmt.Sprintf("%s (%s)", pu.Username, pu.UUID)
}
