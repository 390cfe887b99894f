package plan

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/remnashop/internal/http/response"
	"github.com/magabrotheeeer/remnashop/internal/lib/sl"
	plansvc "github.com/magabrotheeeer/remnashop/internal/services/plan"
)

// StartRequest открытие сессии. Без plan_id создаётся новый тариф.
type StartRequest struct {
	PlanID *int64 `json:"plan_id,omitempty"`
}

// StartHandler открывает черновик, заменяя прежний.
type StartHandler struct {
	log     *slog.Logger
	service Service
}

// NewStart создает StartHandler.
func NewStart(log *slog.Logger, service Service) *StartHandler {
	return &StartHandler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Открыть черновик тарифа
// @Tags Plans
// @Accept  json
// @Produce  json
// @Param request body StartRequest false "Тариф для правки"
// @Success 201 {object} response.Response{data=plansvc.PlanDraft}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse "Тариф не найден"
// @Failure 500 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /plans/drafts [post]
func (h *StartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.start"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	adminID, ok := adminFromContext(w, r, log)
	if !ok {
		return
	}

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	d, err := h.service.StartSession(r.Context(), adminID, req.PlanID)
	if err != nil {
		writeServiceError(w, r, log, err, "could not start plan session")
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(d))
}

// ReadHandler отдаёт текущий черновик.
type ReadHandler struct {
	log     *slog.Logger
	service Service
}

// NewRead создает ReadHandler.
func NewRead(log *slog.Logger, service Service) *ReadHandler {
	return &ReadHandler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Текущий черновик тарифа
// @Tags Plans
// @Produce  json
// @Success 200 {object} response.Response{data=plansvc.PlanDraft}
// @Failure 404 {object} response.ErrorResponse "Черновика нет"
// @Security BearerAuth
// @Router /plans/drafts [get]
func (h *ReadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.read"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	adminID, ok := adminFromContext(w, r, log)
	if !ok {
		return
	}
	d, err := h.service.Draft(r.Context(), adminID)
	if err != nil {
		writeServiceError(w, r, log, err, "could not load plan draft")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(d))
}

// UpdateHandler применяет частичную правку к черновику.
type UpdateHandler struct {
	log     *slog.Logger
	service Service
}

// NewUpdate создает UpdateHandler.
func NewUpdate(log *slog.Logger, service Service) *UpdateHandler {
	return &UpdateHandler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Изменить черновик тарифа
// @Description Меняются только переданные поля. Проверка правил выполняется при подтверждении.
// @Tags Plans
// @Accept  json
// @Produce  json
// @Param request body plansvc.PlanDraft true "Изменённые поля"
// @Success 200 {object} response.Response{data=plansvc.PlanDraft}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse "Черновика нет"
// @Failure 500 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /plans/drafts [patch]
func (h *UpdateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.update"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	adminID, ok := adminFromContext(w, r, log)
	if !ok {
		return
	}

	var patch plansvc.PlanDraft
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	d, err := h.service.UpdateDraft(r.Context(), adminID, patch)
	if err != nil {
		writeServiceError(w, r, log, err, "could not update plan draft")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(d))
}

// CancelHandler удаляет черновик без сохранения.
type CancelHandler struct {
	log     *slog.Logger
	service Service
}

// NewCancel создает CancelHandler.
func NewCancel(log *slog.Logger, service Service) *CancelHandler {
	return &CancelHandler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Отменить черновик тарифа
// @Tags Plans
// @Success 204
// @Failure 500 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /plans/drafts [delete]
func (h *CancelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.cancel"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	adminID, ok := adminFromContext(w, r, log)
	if !ok {
		return
	}
	if err := h.service.Cancel(r.Context(), adminID); err != nil {
		writeServiceError(w, r, log, err, "could not cancel plan draft")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
