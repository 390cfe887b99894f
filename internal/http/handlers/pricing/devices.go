package pricing

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/remnashop/internal/http/response"
	"github.com/magabrotheeeer/remnashop/internal/lib/sl"
)

// ExtraDevicesRequest запрос цены докупки устройств.
type ExtraDevicesRequest struct {
	TelegramID int64  `json:"telegram_id" validate:"required"`
	Count      int    `json:"count" validate:"gt=0"`
	Currency   string `json:"currency" validate:"required"`
}

// ExtraDevicesHandler считает цену дополнительных устройств.
type ExtraDevicesHandler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// NewExtraDevices создает ExtraDevicesHandler.
func NewExtraDevices(log *slog.Logger, service Service) *ExtraDevicesHandler {
	return &ExtraDevicesHandler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Цена дополнительных устройств
// @Tags Pricing
// @Accept  json
// @Produce  json
// @Param request body ExtraDevicesRequest true "Пользователь, количество и валюта"
// @Success 200 {object} response.Response{data=models.PriceDetails}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /pricing/extra-devices [post]
func (h *ExtraDevicesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.pricing.extradevices"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req ExtraDevicesRequest
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
	cur, ok := parseCurrency(w, r, log, req.Currency)
	if !ok {
		return
	}

	details, err := h.service.QuoteExtraDevices(r.Context(), req.TelegramID, req.Count, cur)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(details))
}
