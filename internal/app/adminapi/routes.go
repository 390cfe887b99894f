package adminapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/remnashop/internal/http/handlers/health"
	planhandlers "github.com/magabrotheeeer/remnashop/internal/http/handlers/plan"
	pricinghandlers "github.com/magabrotheeeer/remnashop/internal/http/handlers/pricing"
	settingshandlers "github.com/magabrotheeeer/remnashop/internal/http/handlers/settings"
	synchandlers "github.com/magabrotheeeer/remnashop/internal/http/handlers/sync"
	"github.com/magabrotheeeer/remnashop/internal/http/middlewarectx"
)

// Services зависимости обработчиков admin API.
type Services struct {
	Pricing  pricinghandlers.Service
	Settings settingshandlers.Service
	Plans    planhandlers.Service
	Sync     synchandlers.Queue
	Tokens   middlewarectx.TokenParser
	Checks   map[string]health.Checker
	Limiter  *rate.Limiter
	Metrics  http.Handler
}

// RegisterRoutes регистрирует все маршруты admin API.
func RegisterRoutes(r chi.Router, logger *slog.Logger, s Services) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(s.Tokens, logger))
			r.Use(middlewarectx.RateLimitMiddleware(s.Limiter, logger))

			r.Post("/pricing/quote", pricinghandlers.NewQuote(logger, s.Pricing).ServeHTTP)
			r.Post("/pricing/extra-devices", pricinghandlers.NewExtraDevices(logger, s.Pricing).ServeHTTP)
			r.Post("/pricing/transfer", pricinghandlers.NewTransfer(logger, s.Pricing).ServeHTTP)

			r.Get("/settings/discount", settingshandlers.NewRead(logger, s.Settings).ServeHTTP)
			r.Put("/settings/discount", settingshandlers.NewUpdate(logger, s.Settings).ServeHTTP)

			r.Post("/plans/drafts", planhandlers.NewStart(logger, s.Plans).ServeHTTP)
			r.Get("/plans/drafts", planhandlers.NewRead(logger, s.Plans).ServeHTTP)
			r.Patch("/plans/drafts", planhandlers.NewUpdate(logger, s.Plans).ServeHTTP)
			r.Delete("/plans/drafts", planhandlers.NewCancel(logger, s.Plans).ServeHTTP)
			r.Post("/plans/drafts/confirm", planhandlers.NewConfirm(logger, s.Plans).ServeHTTP)

			r.Post("/sync/{kind}", synchandlers.New(logger, s.Sync).ServeHTTP)
		})
	})

	r.Get("/health", health.New(logger, s.Checks).ServeHTTP)

	metrics := s.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.Handle("/metrics", metrics)
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
