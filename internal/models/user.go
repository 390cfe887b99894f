package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// User пользователь бота.
type User struct {
	TelegramID                int64
	Username                  string
	Name                      string
	Language                  string
	PersonalDiscount          int // постоянная скидка, %
	PurchaseDiscount          int // разовая скидка на покупку, %
	PurchaseDiscountExpiresAt *time.Time
	Balance                   decimal.Decimal
	CurrentSubscriptionID     *int64
	IsBlocked                 bool
	CreatedAt                 time.Time
}

// ActivePurchaseDiscount возвращает разовую скидку, если срок её действия не истёк.
func (u User) ActivePurchaseDiscount(now time.Time) int {
	if u.PurchaseDiscount <= 0 {
		return 0
	}
	if u.PurchaseDiscountExpiresAt != nil && !now.Before(*u.PurchaseDiscountExpiresAt) {
		return 0
	}
	return u.PurchaseDiscount
}

// Label человекочитаемая метка пользователя для логов и отчётов.
func (u User) Label() string {
	if u.Username != "" {
		return fmt.Sprintf("@%s (%d)", u.Username, u.TelegramID)
	}
	if u.Name != "" {
		return fmt.Sprintf("%s (%d)", u.Name, u.TelegramID)
	}
	return fmt.Sprintf("%d", u.TelegramID)
}
