// Package sync реализует HTTP-обработчик постановки задачи синхронизации
// с панелью в очередь sync-worker.
package sync

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/remnashop/internal/http/middlewarectx"
	"github.com/magabrotheeeer/remnashop/internal/http/response"
	"github.com/magabrotheeeer/remnashop/internal/lib/sl"
	"github.com/magabrotheeeer/remnashop/internal/notify"
)

// Queue принимает задачи синхронизации.
type Queue interface {
	QueueSync(ctx context.Context, kind notify.SyncKind, requestedBy int64) error
}

// Handler ставит задачу синхронизации. Результат придёт администратору уведомлением.
type Handler struct {
	log   *slog.Logger
	queue Queue
}

// New создает Handler.
func New(log *slog.Logger, queue Queue) *Handler {
	return &Handler{log: log, queue: queue}
}

// ServeHTTP godoc
// @Summary Запустить синхронизацию
// @Description kind: panel_to_bot, bot_to_panel, plans_squads, recover_intents.
// @Tags Sync
// @Produce  json
// @Param kind path string true "Вид синхронизации"
// @Success 202 {object} response.Response "Задача поставлена в очередь"
// @Failure 400 {object} response.ErrorResponse "Неизвестный вид"
// @Failure 503 {object} response.ErrorResponse "Очередь недоступна"
// @Security BearerAuth
// @Router /sync/{kind} [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.sync.trigger"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	kind := notify.SyncKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		log.Error("unknown sync kind", slog.String("kind", string(kind)))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("unknown sync kind"))
		return
	}

	adminID, _ := middlewarectx.AdminID(r.Context())
	if err := h.queue.QueueSync(r.Context(), kind, adminID); err != nil {
		log.Error("failed to queue sync job", sl.Err(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("could not queue sync job"))
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"kind": kind,
	}))
}
