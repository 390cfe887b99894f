package models

import (
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/remnashop/internal/lib/currency"
)

// PurchaseContext вид покупки, для которого считается цена.
type PurchaseContext string

const (
	ContextSubscription       PurchaseContext = "subscription"
	ContextExtraDevices       PurchaseContext = "extra_devices"
	ContextTransferCommission PurchaseContext = "transfer_commission"
)

// DiscountType вид глобальной скидки.
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

// GlobalDiscountSettings глобальная скидка, настраиваемая администратором.
type GlobalDiscountSettings struct {
	Enabled                   bool            `json:"enabled"`
	DiscountType              DiscountType    `json:"discount_type"`
	DiscountValue             decimal.Decimal `json:"discount_value"`
	StackDiscounts            bool            `json:"stack_discounts"`
	ApplyToSubscription       bool            `json:"apply_to_subscription"`
	ApplyToExtraDevices       bool            `json:"apply_to_extra_devices"`
	ApplyToTransferCommission bool            `json:"apply_to_transfer_commission"`
}

// AppliesTo сообщает, распространяется ли скидка на вид покупки.
func (g GlobalDiscountSettings) AppliesTo(ctx PurchaseContext) bool {
	switch ctx {
	case ContextSubscription:
		return g.ApplyToSubscription
	case ContextExtraDevices:
		return g.ApplyToExtraDevices
	case ContextTransferCommission:
		return g.ApplyToTransferCommission
	}
	return false
}

// PriceDetails результат расчёта цены.
type PriceDetails struct {
	OriginalAmount       decimal.Decimal   `json:"original_amount"`
	DiscountPercent      int               `json:"discount_percent"`
	FinalAmount          decimal.Decimal   `json:"final_amount"`
	GlobalDiscountAmount decimal.Decimal   `json:"global_discount_amount"`
	Currency             currency.Currency `json:"currency"`
}

// BalanceTransfer перевод баланса между пользователями с комиссией.
type BalanceTransfer struct {
	SenderID    int64             `json:"sender_id"`
	RecipientID int64             `json:"recipient_id,omitempty"`
	Amount      decimal.Decimal   `json:"amount"`
	Commission  PriceDetails      `json:"commission"`
	Currency    currency.Currency `json:"currency"`
}
