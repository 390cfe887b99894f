package pricing

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/remnashop/internal/http/response"
	"github.com/magabrotheeeer/remnashop/internal/lib/sl"
)

// TransferRequest запрос комиссии за перевод. Сумма передаётся строкой или числом.
type TransferRequest struct {
	TelegramID int64           `json:"telegram_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency" validate:"required"`
}

// TransferHandler считает комиссию за перевод баланса.
type TransferHandler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// NewTransfer создает TransferHandler.
func NewTransfer(log *slog.Logger, service Service) *TransferHandler {
	return &TransferHandler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Комиссия за перевод баланса
// @Tags Pricing
// @Accept  json
// @Produce  json
// @Param request body TransferRequest true "Отправитель, сумма и валюта"
// @Success 200 {object} response.Response{data=models.BalanceTransfer}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /pricing/transfer [post]
func (h *TransferHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.pricing.transfer"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req TransferRequest
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

	transfer, err := h.service.QuoteTransferCommission(r.Context(), req.TelegramID, req.Amount, cur)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(transfer))
}
