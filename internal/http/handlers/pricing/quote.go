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

// QuoteRequest запрос цены длительности тарифа.
type QuoteRequest struct {
	TelegramID int64  `json:"telegram_id" validate:"required"`
	PlanID     int64  `json:"plan_id" validate:"required"`
	Days       int    `json:"days" validate:"required"`
	Currency   string `json:"currency" validate:"required"`
}

// QuoteHandler считает цену подписки для пользователя.
type QuoteHandler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// NewQuote создает QuoteHandler.
func NewQuote(log *slog.Logger, service Service) *QuoteHandler {
	return &QuoteHandler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Цена подписки
// @Description Считает итоговую цену длительности тарифа с учётом персональной и глобальной скидок.
// @Tags Pricing
// @Accept  json
// @Produce  json
// @Param request body QuoteRequest true "Пользователь, тариф, длительность и валюта"
// @Success 200 {object} response.Response{data=models.PriceDetails}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или валюта"
// @Failure 404 {object} response.ErrorResponse "Пользователь или тариф не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /pricing/quote [post]
func (h *QuoteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.pricing.quote"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req QuoteRequest
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

	details, err := h.service.QuotePlan(r.Context(), req.TelegramID, req.PlanID, req.Days, cur)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}

	log.Debug("plan price quoted",
		slog.Int64("plan_id", req.PlanID),
		slog.String("final", details.FinalAmount.String()),
	)
	render.JSON(w, r, response.StatusOKWithData(details))
}
