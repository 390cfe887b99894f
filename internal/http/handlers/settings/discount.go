// Package settings реализует HTTP-обработчики чтения и изменения глобальной скидки.
package settings

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/remnashop/internal/http/middlewarectx"
	"github.com/magabrotheeeer/remnashop/internal/http/response"
	"github.com/magabrotheeeer/remnashop/internal/lib/sl"
	"github.com/magabrotheeeer/remnashop/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Service хранилище настроек глобальной скидки.
type Service interface {
	GlobalDiscount(ctx context.Context) (*models.GlobalDiscountSettings, error)
	SaveGlobalDiscount(ctx context.Context, g models.GlobalDiscountSettings) error
}

// DiscountRequest новые настройки глобальной скидки.
type DiscountRequest struct {
	Enabled                   bool            `json:"enabled"`
	DiscountType              string          `json:"discount_type" validate:"required,oneof=percent fixed"`
	DiscountValue             decimal.Decimal `json:"discount_value"`
	StackDiscounts            bool            `json:"stack_discounts"`
	ApplyToSubscription       bool            `json:"apply_to_subscription"`
	ApplyToExtraDevices       bool            `json:"apply_to_extra_devices"`
	ApplyToTransferCommission bool            `json:"apply_to_transfer_commission"`
}

func (req DiscountRequest) toModel() models.GlobalDiscountSettings {
	return models.GlobalDiscountSettings{
		Enabled:                   req.Enabled,
		DiscountType:              models.DiscountType(req.DiscountType),
		DiscountValue:             req.DiscountValue,
		StackDiscounts:            req.StackDiscounts,
		ApplyToSubscription:       req.ApplyToSubscription,
		ApplyToExtraDevices:       req.ApplyToExtraDevices,
		ApplyToTransferCommission: req.ApplyToTransferCommission,
	}
}

// ReadHandler отдаёт текущие настройки.
type ReadHandler struct {
	log     *slog.Logger
	service Service
}

// NewRead создает ReadHandler.
func NewRead(log *slog.Logger, service Service) *ReadHandler {
	return &ReadHandler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Глобальная скидка
// @Tags Settings
// @Produce  json
// @Success 200 {object} response.Response{data=models.GlobalDiscountSettings}
// @Failure 500 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /settings/discount [get]
func (h *ReadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.settings.read"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	g, err := h.service.GlobalDiscount(r.Context())
	if err != nil {
		log.Error("failed to load global discount", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not load settings"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(g))
}

// UpdateHandler заменяет настройки глобальной скидки.
type UpdateHandler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// NewUpdate создает UpdateHandler.
func NewUpdate(log *slog.Logger, service Service) *UpdateHandler {
	return &UpdateHandler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Изменить глобальную скидку
// @Description Процентная скидка задаётся в диапазоне 0..100, фиксированная неотрицательной суммой.
// @Tags Settings
// @Accept  json
// @Produce  json
// @Param request body DiscountRequest true "Настройки скидки"
// @Success 200 {object} response.Response{data=models.GlobalDiscountSettings}
// @Failure 400 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /settings/discount [put]
func (h *UpdateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.settings.update"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req DiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}
	if req.DiscountValue.IsNegative() ||
		(req.DiscountType == string(models.DiscountPercent) && req.DiscountValue.GreaterThan(hundred)) {
		log.Error("discount value out of range", slog.String("value", req.DiscountValue.String()))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("field DiscountValue is out of range"))
		return
	}

	adminID, _ := middlewarectx.AdminID(r.Context())
	g := req.toModel()
	if err := h.service.SaveGlobalDiscount(r.Context(), g); err != nil {
		log.Error("failed to save global discount", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not save settings"))
		return
	}

	log.Info("global discount changed", slog.Int64("admin_id", adminID))
	render.JSON(w, r, response.StatusOKWithData(g))
}
