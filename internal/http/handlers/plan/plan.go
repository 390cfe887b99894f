// Package plan реализует HTTP-обработчики сессии редактирования тарифа:
// открытие черновика, правку, подтверждение и отмену. Черновик привязан к
// Telegram ID администратора из токена.
package plan

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/remnashop/internal/http/middlewarectx"
	"github.com/magabrotheeeer/remnashop/internal/http/response"
	"github.com/magabrotheeeer/remnashop/internal/lib/sl"
	plansvc "github.com/magabrotheeeer/remnashop/internal/services/plan"
)

// Service сессия редактирования тарифа.
type Service interface {
	StartSession(ctx context.Context, adminID int64, planID *int64) (*plansvc.PlanDraft, error)
	UpdateDraft(ctx context.Context, adminID int64, patch plansvc.PlanDraft) (*plansvc.PlanDraft, error)
	Draft(ctx context.Context, adminID int64) (*plansvc.PlanDraft, error)
	Confirm(ctx context.Context, adminID int64) (*plansvc.ConfirmResult, error)
	Cancel(ctx context.Context, adminID int64) error
}

func adminFromContext(w http.ResponseWriter, r *http.Request, log *slog.Logger) (int64, bool) {
	adminID, ok := middlewarectx.AdminID(r.Context())
	if !ok {
		log.Error("admin id not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return 0, false
	}
	return adminID, true
}

func writeServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error, msg string) {
	if reason, ok := plansvc.ReasonOf(err); ok {
		log.Warn("plan rejected", slog.String("reason", string(reason)))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Rejected("plan rejected", string(reason)))
		return
	}
	switch {
	case errors.Is(err, plansvc.ErrDraftNotFound):
		log.Warn("draft not found", sl.Err(err))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("no active plan draft"))
	case errors.Is(err, plansvc.ErrPlanNotFound):
		log.Warn("plan not found", sl.Err(err))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("plan not found"))
	default:
		log.Error(msg, sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error(msg))
	}
}
