// Package currency описывает поддерживаемые валюты и правила округления сумм:
// целочисленные валюты (рубли, Telegram Stars) округляются вниз до целого,
// остальные до сотых.
package currency

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency код валюты в верхнем регистре.
type Currency string

const (
	RUB  Currency = "RUB"
	XTR  Currency = "XTR" // Telegram Stars
	USD  Currency = "USD"
	EUR  Currency = "EUR"
	USDT Currency = "USDT"
	TON  Currency = "TON"
)

var (
	// ErrInvalidFormat строка не является числом.
	ErrInvalidFormat = errors.New("invalid price format")
	// ErrNegativeValue цена меньше нуля.
	ErrNegativeValue = errors.New("price must not be negative")
	// ErrUnknownCurrency код валюты не поддерживается.
	ErrUnknownCurrency = errors.New("unknown currency")
)

var (
	minInteger    = decimal.NewFromInt(1)
	minFractional = decimal.New(1, -2)
)

// All возвращает все поддерживаемые валюты.
func All() []Currency {
	return []Currency{RUB, XTR, USD, EUR, USDT, TON}
}

// Parse приводит строковый код к Currency.
func Parse(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	for _, known := range All() {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
}

// IsInteger сообщает, принимает ли валюта только целые суммы.
func (c Currency) IsInteger() bool {
	return c == RUB || c == XTR
}

func (c Currency) String() string {
	return string(c)
}

// Minimum минимальная ненулевая сумма в валюте.
func (c Currency) Minimum() decimal.Decimal {
	if c.IsInteger() {
		return minInteger
	}
	return minFractional
}

// Apply округляет сумму по правилам валюты и поднимает её до минимальной единицы.
// Повторное применение не меняет результат.
func Apply(amount decimal.Decimal, c Currency) decimal.Decimal {
	var rounded decimal.Decimal
	if c.IsInteger() {
		rounded = amount.Truncate(0)
	} else {
		rounded = amount.Round(2)
	}
	if rounded.LessThan(c.Minimum()) {
		return c.Minimum()
	}
	return rounded
}

// ParsePrice разбирает введённую администратором цену.
// Ноль возвращается как есть, остальные значения проходят через Apply.
func ParsePrice(text string, c Currency) (decimal.Decimal, error) {
	const op = "currency.ParsePrice"

	normalized := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	if normalized == "" {
		return decimal.Zero, fmt.Errorf("%s: %w", op, ErrInvalidFormat)
	}
	amount, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, ErrInvalidFormat)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s: %w", op, ErrNegativeValue)
	}
	if amount.IsZero() {
		return decimal.Zero, nil
	}
	return Apply(amount, c), nil
}
