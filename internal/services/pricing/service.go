package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/remnashop/internal/lib/currency"
	"github.com/magabrotheeeer/remnashop/internal/lib/sl"
	"github.com/magabrotheeeer/remnashop/internal/models"
)

var (
	// ErrDurationNotFound у тарифа нет запрошенной длительности.
	ErrDurationNotFound = errors.New("plan duration not found")
	// ErrPriceNotFound у длительности нет цены в запрошенной валюте.
	ErrPriceNotFound = errors.New("price for currency not found")
	// ErrInvalidAmount количество или сумма должны быть положительными.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// UserRepository источник пользователей.
type UserRepository interface {
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
}

// PlanRepository источник тарифов.
type PlanRepository interface {
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
}

// DiscountSettings источник настроек глобальной скидки.
type DiscountSettings interface {
	GlobalDiscount(ctx context.Context) (*models.GlobalDiscountSettings, error)
}

// QuoteRecorder учитывает выданные расчёты.
type QuoteRecorder interface {
	ObserveQuote(context string, discounted bool)
}

// Options цены, которые задаются конфигурацией, а не тарифом.
type Options struct {
	ExtraDevicePrice          map[currency.Currency]decimal.Decimal
	TransferCommissionPercent decimal.Decimal
}

// Service расчёт цен для покупок в боте.
type Service struct {
	users    UserRepository
	plans    PlanRepository
	settings DiscountSettings
	metrics  QuoteRecorder
	opts     Options
	log      *slog.Logger
	now      func() time.Time
}

// NewService создает сервис расчёта цен.
func NewService(
	users UserRepository,
	plans PlanRepository,
	settings DiscountSettings,
	metrics QuoteRecorder,
	opts Options,
	log *slog.Logger,
) *Service {
	return &Service{
		users:    users,
		plans:    plans,
		settings: settings,
		metrics:  metrics,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// QuotePlan считает цену длительности тарифа для пользователя.
// Пробный и пригласительный тарифы всегда бесплатны.
func (s *Service) QuotePlan(ctx context.Context, telegramID, planID int64, days int, cur currency.Currency) (models.PriceDetails, error) {
	const op = "pricing.QuotePlan"

	user, err := s.users.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return models.PriceDetails{}, fmt.Errorf("%s: %w", op, err)
	}
	plan, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return models.PriceDetails{}, fmt.Errorf("%s: %w", op, err)
	}
	duration, ok := plan.Duration(days)
	if !ok {
		return models.PriceDetails{}, fmt.Errorf("%s: %w", op, ErrDurationNotFound)
	}
	price, ok := duration.Price(cur)
	if !ok {
		return models.PriceDetails{}, fmt.Errorf("%s: %w", op, ErrPriceNotFound)
	}
	if plan.Availability.IsSingleton() {
		price = decimal.Zero
	}

	return s.quote(ctx, op, *user, price, cur, models.ContextSubscription)
}

// QuoteExtraDevices считает цену докупки count устройств.
func (s *Service) QuoteExtraDevices(ctx context.Context, telegramID int64, count int, cur currency.Currency) (models.PriceDetails, error) {
	const op = "pricing.QuoteExtraDevices"

	if count <= 0 {
		return models.PriceDetails{}, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}
	unit, ok := s.opts.ExtraDevicePrice[cur]
	if !ok {
		return models.PriceDetails{}, fmt.Errorf("%s: %w", op, ErrPriceNotFound)
	}
	user, err := s.users.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return models.PriceDetails{}, fmt.Errorf("%s: %w", op, err)
	}

	return s.quote(ctx, op, *user, unit.Mul(decimal.NewFromInt(int64(count))), cur, models.ContextExtraDevices)
}

// QuoteTransferCommission считает комиссию за перевод amount с баланса пользователя.
func (s *Service) QuoteTransferCommission(ctx context.Context, telegramID int64, amount decimal.Decimal, cur currency.Currency) (models.BalanceTransfer, error) {
	const op = "pricing.QuoteTransferCommission"

	if !amount.IsPositive() {
		return models.BalanceTransfer{}, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}
	user, err := s.users.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return models.BalanceTransfer{}, fmt.Errorf("%s: %w", op, err)
	}

	commission := amount.Mul(s.opts.TransferCommissionPercent).Div(hundred)
	details, err := s.quote(ctx, op, *user, commission, cur, models.ContextTransferCommission)
	if err != nil {
		return models.BalanceTransfer{}, err
	}

	return models.BalanceTransfer{
		SenderID:   telegramID,
		Amount:     amount,
		Commission: details,
		Currency:   cur,
	}, nil
}

func (s *Service) quote(
	ctx context.Context,
	op string,
	user models.User,
	price decimal.Decimal,
	cur currency.Currency,
	pctx models.PurchaseContext,
) (models.PriceDetails, error) {
	global, err := s.settings.GlobalDiscount(ctx)
	if err != nil {
		s.log.Error("failed to load global discount", slog.String("op", op), sl.Err(err))
		return models.PriceDetails{}, fmt.Errorf("%s: %w", op, err)
	}

	details := s.Calculate(user, price, cur, global, pctx)
	if s.metrics != nil {
		s.metrics.ObserveQuote(string(pctx), details.DiscountPercent > 0)
	}
	return details, nil
}
