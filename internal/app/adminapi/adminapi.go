// Package adminapi собирает admin API витрины: хранилище, кеш, настройки,
// расчёт цен, сессии редактирования тарифов и постановку задач синхронизации.
package adminapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/streadway/amqp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/remnashop/internal/cache"
	"github.com/magabrotheeeer/remnashop/internal/config"
	"github.com/magabrotheeeer/remnashop/internal/http/handlers/health"
	"github.com/magabrotheeeer/remnashop/internal/lib/currency"
	"github.com/magabrotheeeer/remnashop/internal/lib/jwt"
	librabbit "github.com/magabrotheeeer/remnashop/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/remnashop/internal/lib/sl"
	"github.com/magabrotheeeer/remnashop/internal/lock"
	"github.com/magabrotheeeer/remnashop/internal/metrics"
	"github.com/magabrotheeeer/remnashop/internal/migrations"
	"github.com/magabrotheeeer/remnashop/internal/notify"
	"github.com/magabrotheeeer/remnashop/internal/rabbitmq"
	"github.com/magabrotheeeer/remnashop/internal/remnawave"
	plansvc "github.com/magabrotheeeer/remnashop/internal/services/plan"
	"github.com/magabrotheeeer/remnashop/internal/services/pricing"
	"github.com/magabrotheeeer/remnashop/internal/services/settings"
	"github.com/magabrotheeeer/remnashop/internal/storage/repository"
)

// App admin API.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New подключает зависимости и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "adminapi.New"

	opts, err := PricingOptions(cfg.Pricing)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		_ = db.Close()
		_ = cacheRedis.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, librabbit.Exchange, librabbit.AllQueues(), 0)
	if err != nil {
		_ = db.Close()
		_ = cacheRedis.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	settingsService := settings.NewService(db, cacheRedis, cfg.Pricing.SettingsCacheTTL, logger)
	notifier := notify.New(librabbit.NewPublisher(ch, librabbit.Exchange), settingsService, logger)
	panel := remnawave.NewClient(remnawave.Options{
		BaseURL:         cfg.Remnawave.URL,
		Token:           cfg.Remnawave.Token,
		Timeout:         cfg.Remnawave.Timeout,
		RetryMaxElapsed: cfg.Remnawave.RetryMaxElapsed,
	}, logger)

	pricingService := pricing.NewService(db, db, settingsService, m, opts, logger)
	planService := plansvc.NewService(plansvc.Deps{
		Plans:         db,
		Subscriptions: db,
		Tx:            db,
		Drafts:        plansvc.NewDraftStore(cacheRedis, plansvc.DefaultDraftTTL),
		Panel:         panel,
		Notifier:      notifier,
		Locker:        lock.New(cacheRedis.Db, cfg.Sync.LockTTL, logger),
		Metrics:       m,
	}, cfg.Remnawave.DefaultSquadUUID, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Services{
		Pricing:  pricingService,
		Settings: settingsService,
		Plans:    planService,
		Sync:     notifier,
		Tokens:   jwt.NewJWTMaker(cfg.JWTToken.SecretKey, cfg.JWTToken.TokenTTL),
		Checks: map[string]health.Checker{
			"postgres": db,
			"redis":    cacheRedis,
			"panel":    panel,
		},
		Limiter: rate.NewLimiter(rate.Limit(cfg.HTTPServer.RateLimit), cfg.HTTPServer.RateBurst),
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run обслуживает запросы до отмены ctx, затем плавно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}

// PricingOptions переводит цены из конфига в decimal с проверкой валют.
func PricingOptions(cfg config.Pricing) (pricing.Options, error) {
	const op = "adminapi.PricingOptions"

	opts := pricing.Options{
		ExtraDevicePrice: make(map[currency.Currency]decimal.Decimal, len(cfg.ExtraDevicePrice)),
	}
	for code, text := range cfg.ExtraDevicePrice {
		cur, err := currency.Parse(code)
		if err != nil {
			return pricing.Options{}, fmt.Errorf("%s: %w", op, err)
		}
		price, err := currency.ParsePrice(text, cur)
		if err != nil {
			return pricing.Options{}, fmt.Errorf("%s: extra device price %s: %w", op, cur, err)
		}
		opts.ExtraDevicePrice[cur] = price
	}

	percent, err := decimal.NewFromString(cfg.TransferCommissionPercent)
	if err != nil {
		return pricing.Options{}, fmt.Errorf("%s: transfer commission: %w", op, err)
	}
	if percent.IsNegative() {
		return pricing.Options{}, fmt.Errorf("%s: transfer commission: %w", op, currency.ErrNegativeValue)
	}
	opts.TransferCommissionPercent = percent
	return opts, nil
}
