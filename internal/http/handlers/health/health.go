// Package health отдаёт состояние admin API и его зависимостей.
package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/remnashop/internal/http/response"
	"github.com/magabrotheeeer/remnashop/internal/lib/sl"
)

// Checker проверка одной зависимости.
type Checker interface {
	Ping(ctx context.Context) error
}

// Handler опрашивает зависимости и отвечает 503, если хотя бы одна недоступна.
type Handler struct {
	log    *slog.Logger
	checks map[string]Checker
}

// New создает Handler. Ключ checks попадает в ответ как имя зависимости.
func New(log *slog.Logger, checks map[string]Checker) *Handler {
	return &Handler{
		log:    log,
		checks: checks,
	}
}

// ServeHTTP godoc
// @Summary Состояние сервиса
// @Tags Health
// @Produce  json
// @Success 200 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	status := make(map[string]string, len(h.checks))
	healthy := true
	for name, c := range h.checks {
		if err := c.Ping(r.Context()); err != nil {
			h.log.Warn("dependency is unavailable", slog.String("op", op), slog.String("dependency", name), sl.Err(err))
			status[name] = "unavailable"
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.Response{Status: response.StatusError, Data: status})
		return
	}
	render.JSON(w, r, response.StatusOKWithData(status))
}
