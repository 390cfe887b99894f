package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/remnashop/internal/models"
)

const (
	settingGlobalDiscount = "global_discount"
	settingNotifications  = "notifications"
)

func (s *Storage) getSetting(ctx context.Context, op, key string, out any) error {
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	var raw []byte
	err := s.conn(ctx).QueryRowContext(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&raw)
	if err != nil {
		return mapErr(op, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) saveSetting(ctx context.Context, op, key string, value any) error {
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	query := `INSERT INTO settings (key, value) VALUES ($1, $2)
			  ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	if _, err := s.conn(ctx).ExecContext(ctx, query, key, raw); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetGlobalDiscount возвращает настройки глобальной скидки.
// Если они ещё не сохранялись, возвращается выключенная скидка.
func (s *Storage) GetGlobalDiscount(ctx context.Context) (*models.GlobalDiscountSettings, error) {
	const op = "storage.GetGlobalDiscount"
	var g models.GlobalDiscountSettings
	err := s.getSetting(ctx, op, settingGlobalDiscount, &g)
	if errors.Is(err, ErrNotFound) {
		return &models.GlobalDiscountSettings{DiscountType: models.DiscountPercent}, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// SaveGlobalDiscount сохраняет настройки глобальной скидки.
func (s *Storage) SaveGlobalDiscount(ctx context.Context, g models.GlobalDiscountSettings) error {
	return s.saveSetting(ctx, "storage.SaveGlobalDiscount", settingGlobalDiscount, g)
}

// GetNotificationSettings возвращает включённые типы уведомлений.
// По умолчанию включены все.
func (s *Storage) GetNotificationSettings(ctx context.Context) (*models.NotificationSettings, error) {
	const op = "storage.GetNotificationSettings"
	n := models.DefaultNotificationSettings()
	err := s.getSetting(ctx, op, settingNotifications, &n)
	if errors.Is(err, ErrNotFound) {
		n = models.DefaultNotificationSettings()
		return &n, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// SaveNotificationSettings сохраняет типы уведомлений.
func (s *Storage) SaveNotificationSettings(ctx context.Context, n models.NotificationSettings) error {
	return s.saveSetting(ctx, "storage.SaveNotificationSettings", settingNotifications, n)
}
