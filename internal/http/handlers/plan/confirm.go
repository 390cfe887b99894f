package plan

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/remnashop/internal/http/response"
	"github.com/magabrotheeeer/remnashop/internal/models"
)

// ConfirmResponse итог подтверждения черновика.
type ConfirmResponse struct {
	Plan                models.Plan `json:"plan"`
	Created             bool        `json:"created"`
	SyncedSubscriptions int         `json:"synced_subscriptions"`
	FailedSubscriptions int         `json:"failed_subscriptions"`
}

// ConfirmHandler применяет черновик к тарифу.
type ConfirmHandler struct {
	log     *slog.Logger
	service Service
}

// NewConfirm создает ConfirmHandler.
func NewConfirm(log *slog.Logger, service Service) *ConfirmHandler {
	return &ConfirmHandler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Подтвердить черновик тарифа
// @Description Создаёт или обновляет тариф. При отказе возвращает 422 с кодом причины в поле reason
// @Description (name_required, name_taken, tag_taken, squads_required, durations_required,
// @Description trial_single_duration, trial_not_unique, invalid_duration, negative_price, invalid_limit, invalid_type).
// @Tags Plans
// @Produce  json
// @Success 200 {object} response.Response{data=ConfirmResponse} "Тариф обновлён"
// @Success 201 {object} response.Response{data=ConfirmResponse} "Тариф создан"
// @Failure 404 {object} response.ErrorResponse "Черновика или тарифа нет"
// @Failure 422 {object} response.ErrorResponse "Тариф не прошёл проверку"
// @Failure 500 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /plans/drafts/confirm [post]
func (h *ConfirmHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.confirm"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	adminID, ok := adminFromContext(w, r, log)
	if !ok {
		return
	}

	res, err := h.service.Confirm(r.Context(), adminID)
	if err != nil {
		writeServiceError(w, r, log, err, "could not confirm plan draft")
		return
	}

	log.Info("plan confirmed",
		slog.Int64("plan_id", res.Plan.ID),
		slog.Bool("created", res.Created),
		slog.Int("synced", res.SyncedSubscriptions),
		slog.Int("failed", res.FailedSubscriptions),
	)
	if res.Created {
		render.Status(r, http.StatusCreated)
	}
	render.JSON(w, r, response.StatusOKWithData(ConfirmResponse{
		Plan:                res.Plan,
		Created:             res.Created,
		SyncedSubscriptions: res.SyncedSubscriptions,
		FailedSubscriptions: res.FailedSubscriptions,
	}))
}
