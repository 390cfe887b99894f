// Package pricing рассчитывает итоговую цену покупки с учётом персональной,
// разовой и глобальной скидок.
package pricing

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/remnashop/internal/lib/currency"
	"github.com/magabrotheeeer/remnashop/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Calculate считает цену для пользователя. Функция не имеет побочных эффектов,
// кроме отладочного лога принятого решения.
//
// Если глобальная скидка суммируется, она применяется первой, а персональная
// процентная скидка считается от остатка. Иначе выбирается большая из двух,
// при равенстве побеждает глобальная.
func (s *Service) Calculate(
	user models.User,
	price decimal.Decimal,
	cur currency.Currency,
	global *models.GlobalDiscountSettings,
	pctx models.PurchaseContext,
) models.PriceDetails {
	if !price.IsPositive() {
		return models.PriceDetails{
			OriginalAmount:       decimal.Zero,
			FinalAmount:          decimal.Zero,
			GlobalDiscountAmount: decimal.Zero,
			Currency:             cur,
		}
	}

	personal := personalPercent(user, s.now())
	applyGlobal := global != nil && global.Enabled &&
		global.DiscountValue.IsPositive() && global.AppliesTo(pctx)

	final := price
	globalAmount := decimal.Zero
	mode := "personal"

	switch {
	case applyGlobal && global.StackDiscounts:
		mode = "stack"
		globalAmount = globalDeduction(*global, price)
		final = applyPercent(price.Sub(globalAmount), personal)
	case applyGlobal:
		if globalPercent(*global, price).GreaterThanOrEqual(decimal.NewFromInt(int64(personal))) {
			mode = "global"
			globalAmount = globalDeduction(*global, price)
			final = price.Sub(globalAmount)
		} else {
			final = applyPercent(price, personal)
		}
	default:
		final = applyPercent(price, personal)
	}

	if final.IsNegative() {
		final = decimal.Zero
	}
	if !final.IsZero() {
		final = currency.Apply(final, cur)
	}

	percent := 0
	if final.GreaterThanOrEqual(price) {
		final = price
	} else {
		percent = int(decimal.NewFromInt(1).Sub(final.Div(price)).Mul(hundred).Floor().IntPart())
		percent = min(max(percent, 0), 100)
	}

	s.log.Debug("price calculated",
		slog.Int64("telegram_id", user.TelegramID),
		slog.String("context", string(pctx)),
		slog.String("mode", mode),
		slog.Int("personal_percent", personal),
		slog.String("original", price.String()),
		slog.String("final", final.String()),
		slog.Int("discount_percent", percent),
	)

	return models.PriceDetails{
		OriginalAmount:       price,
		DiscountPercent:      percent,
		FinalAmount:          final,
		GlobalDiscountAmount: globalAmount,
		Currency:             cur,
	}
}

// personalPercent разовая скидка, если она действует, иначе постоянная. Не больше 100.
func personalPercent(user models.User, now time.Time) int {
	p := user.ActivePurchaseDiscount(now)
	if p == 0 {
		p = user.PersonalDiscount
	}
	return min(max(p, 0), 100)
}

func globalDeduction(g models.GlobalDiscountSettings, price decimal.Decimal) decimal.Decimal {
	if g.DiscountType == models.DiscountFixed {
		return decimal.Min(g.DiscountValue, price)
	}
	p := decimal.Min(g.DiscountValue, hundred)
	return price.Mul(p).Div(hundred)
}

// globalPercent глобальная скидка в процентах от цены.
func globalPercent(g models.GlobalDiscountSettings, price decimal.Decimal) decimal.Decimal {
	if g.DiscountType == models.DiscountFixed {
		return decimal.Min(g.DiscountValue.Div(price).Mul(hundred), hundred)
	}
	return decimal.Min(g.DiscountValue, hundred)
}

func applyPercent(amount decimal.Decimal, percent int) decimal.Decimal {
	if percent <= 0 {
		return amount
	}
	return amount.Mul(decimal.NewFromInt(int64(100 - percent))).Div(hundred)
}
