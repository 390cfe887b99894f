// Package settings отдаёт настройки глобальной скидки и уведомлений,
// кешируя их в redis.
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/remnashop/internal/lib/sl"
	"github.com/magabrotheeeer/remnashop/internal/models"
)

const (
	globalDiscountKey = "remnashop:settings:global_discount"
	notificationsKey  = "remnashop:settings:notifications"
)

// Repository хранилище настроек.
type Repository interface {
	GetGlobalDiscount(ctx context.Context) (*models.GlobalDiscountSettings, error)
	SaveGlobalDiscount(ctx context.Context, g models.GlobalDiscountSettings) error
	GetNotificationSettings(ctx context.Context) (*models.NotificationSettings, error)
	SaveNotificationSettings(ctx context.Context, n models.NotificationSettings) error
}

// Cache описывает методы для кеширования данных.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Service настройки с кешем. Ошибки кеша не мешают чтению из базы.
type Service struct {
	repo  Repository
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
}

// NewService создает сервис настроек.
func NewService(repo Repository, cache Cache, ttl time.Duration, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		ttl:   ttl,
		log:   log,
	}
}

// GlobalDiscount возвращает текущие настройки глобальной скидки.
func (s *Service) GlobalDiscount(ctx context.Context) (*models.GlobalDiscountSettings, error) {
	const op = "settings.GlobalDiscount"

	var cached models.GlobalDiscountSettings
	if s.fromCache(ctx, op, globalDiscountKey, &cached) {
		return &cached, nil
	}

	g, err := s.repo.GetGlobalDiscount(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.toCache(ctx, op, globalDiscountKey, g)
	return g, nil
}

// SaveGlobalDiscount сохраняет настройки глобальной скидки.
func (s *Service) SaveGlobalDiscount(ctx context.Context, g models.GlobalDiscountSettings) error {
	const op = "settings.SaveGlobalDiscount"

	if err := s.repo.SaveGlobalDiscount(ctx, g); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, op, globalDiscountKey)
	s.log.Info("global discount updated",
		slog.Bool("enabled", g.Enabled),
		slog.String("type", string(g.DiscountType)),
		slog.String("value", g.DiscountValue.String()),
		slog.Bool("stack", g.StackDiscounts),
	)
	return nil
}

// NotificationSettings возвращает включённые типы уведомлений.
func (s *Service) NotificationSettings(ctx context.Context) (*models.NotificationSettings, error) {
	const op = "settings.NotificationSettings"

	var cached models.NotificationSettings
	if s.fromCache(ctx, op, notificationsKey, &cached) {
		return &cached, nil
	}

	n, err := s.repo.GetNotificationSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.toCache(ctx, op, notificationsKey, n)
	return n, nil
}

// SaveNotificationSettings сохраняет типы уведомлений.
func (s *Service) SaveNotificationSettings(ctx context.Context, n models.NotificationSettings) error {
	const op = "settings.SaveNotificationSettings"

	if err := s.repo.SaveNotificationSettings(ctx, n); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, op, notificationsKey)
	return nil
}

func (s *Service) fromCache(ctx context.Context, op, key string, out any) bool {
	found, err := s.cache.Get(ctx, key, out)
	if err != nil {
		s.log.Warn("failed to read settings from cache", slog.String("op", op), sl.Err(err))
		return false
	}
	return found
}

func (s *Service) toCache(ctx context.Context, op, key string, value any) {
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.log.Warn("failed to cache settings", slog.String("op", op), sl.Err(err))
	}
}

func (s *Service) invalidate(ctx context.Context, op, key string) {
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.log.Warn("failed to invalidate settings cache", slog.String("op", op), sl.Err(err))
	}
}
