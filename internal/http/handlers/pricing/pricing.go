// Package pricing реализует HTTP-обработчики предварительного расчёта цен:
// подписки по тарифу, докупки устройств и комиссии за перевод баланса.
package pricing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/remnashop/internal/http/response"
	"github.com/magabrotheeeer/remnashop/internal/lib/currency"
	"github.com/magabrotheeeer/remnashop/internal/lib/sl"
	"github.com/magabrotheeeer/remnashop/internal/models"
	pricingsvc "github.com/magabrotheeeer/remnashop/internal/services/pricing"
	"github.com/magabrotheeeer/remnashop/internal/storage/repository"
)

// Service описывает расчёты, доступные через API.
type Service interface {
	QuotePlan(ctx context.Context, telegramID, planID int64, days int, cur currency.Currency) (models.PriceDetails, error)
	QuoteExtraDevices(ctx context.Context, telegramID int64, count int, cur currency.Currency) (models.PriceDetails, error)
	QuoteTransferCommission(ctx context.Context, telegramID int64, amount decimal.Decimal, cur currency.Currency) (models.BalanceTransfer, error)
}

// writeServiceError переводит ошибку расчёта в HTTP-ответ.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		log.Warn("quote target not found", sl.Err(err))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("user or plan not found"))
	case errors.Is(err, pricingsvc.ErrDurationNotFound):
		log.Warn("duration not found", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("plan has no such duration"))
	case errors.Is(err, pricingsvc.ErrPriceNotFound):
		log.Warn("price not found", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("no price in requested currency"))
	case errors.Is(err, pricingsvc.ErrInvalidAmount):
		log.Warn("invalid amount", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("amount must be positive"))
	default:
		log.Error("failed to calculate price", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not calculate price"))
	}
}

// parseCurrency пишет 400 и возвращает false, если код валюты не поддерживается.
func parseCurrency(w http.ResponseWriter, r *http.Request, log *slog.Logger, code string) (currency.Currency, bool) {
	cur, err := currency.Parse(code)
	if err != nil {
		log.Error("unknown currency", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("unknown currency"))
		return "", false
	}
	return cur, true
}
