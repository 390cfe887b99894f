// Package worker собирает sync-worker: читает задачи синхронизации из очереди,
// ставит плановые задачи по cron и отдаёт состояние через gRPC health.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/streadway/amqp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/magabrotheeeer/remnashop/internal/cache"
	"github.com/magabrotheeeer/remnashop/internal/config"
	librabbit "github.com/magabrotheeeer/remnashop/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/remnashop/internal/lib/sl"
	"github.com/magabrotheeeer/remnashop/internal/lock"
	"github.com/magabrotheeeer/remnashop/internal/metrics"
	"github.com/magabrotheeeer/remnashop/internal/notify"
	"github.com/magabrotheeeer/remnashop/internal/rabbitmq"
	"github.com/magabrotheeeer/remnashop/internal/remnawave"
	plansvc "github.com/magabrotheeeer/remnashop/internal/services/plan"
	"github.com/magabrotheeeer/remnashop/internal/services/settings"
	syncsvc "github.com/magabrotheeeer/remnashop/internal/services/sync"
	"github.com/magabrotheeeer/remnashop/internal/storage/repository"
)

// HealthService имя сервиса в gRPC health.
const HealthService = "remnashop.SyncWorker"

// App sync-worker.
type App struct {
	runner    *Runner
	scheduler *cron.Cron
	db        *repository.Storage
	cache     *cache.Cache
	conn      *amqp.Connection
	ch        *amqp.Channel
	grpc      *grpc.Server
	health    *health.Server
	listener  net.Listener
	logger    *slog.Logger
}

// New подключает зависимости. Миграции применяет admin-api, worker только
// проверяет, что схема готова.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "worker.New"

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := repository.CheckDatabaseReady(ctx, db); err != nil {
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
	ch, err := rabbitmq.SetupChannel(conn, librabbit.Exchange, librabbit.AllQueues(), 1)
	if err != nil {
		_ = db.Close()
		_ = cacheRedis.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lis, err := net.Listen("tcp", cfg.Sync.GRPCHealthAddress)
	if err != nil {
		_ = db.Close()
		_ = cacheRedis.Close()
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	settingsService := settings.NewService(db, cacheRedis, cfg.Pricing.SettingsCacheTTL, logger)
	notifier := notify.New(librabbit.NewPublisher(ch, librabbit.Exchange), settingsService, logger)
	locker := lock.New(cacheRedis.Db, cfg.Sync.LockTTL, logger)
	panel := remnawave.NewClient(remnawave.Options{
		BaseURL:         cfg.Remnawave.URL,
		Token:           cfg.Remnawave.Token,
		Timeout:         cfg.Remnawave.Timeout,
		RetryMaxElapsed: cfg.Remnawave.RetryMaxElapsed,
	}, logger)

	engine := syncsvc.NewEngine(syncsvc.Deps{
		Users:         db,
		Subscriptions: db,
		Intents:       db,
		Tx:            db,
		Panel:         panel,
		Notifier:      notifier,
		Locker:        locker,
		Metrics:       m,
	}, cfg.Remnawave.PageSize, logger)
	planService := plansvc.NewService(plansvc.Deps{
		Plans:         db,
		Subscriptions: db,
		Tx:            db,
		Drafts:        plansvc.NewDraftStore(cacheRedis, plansvc.DefaultDraftTTL),
		Panel:         panel,
		Notifier:      notifier,
		Locker:        locker,
		Metrics:       m,
	}, cfg.Remnawave.DefaultSquadUUID, logger)

	scheduler, err := NewScheduler(ctx, notifier, []Schedule{
		{Spec: cfg.Sync.SquadsSchedule, Kind: notify.SyncPlansSquads},
		{Spec: cfg.Sync.IntentsSchedule, Kind: notify.SyncRecoverIntents},
	}, logger)
	if err != nil {
		_ = lis.Close()
		_ = db.Close()
		_ = cacheRedis.Close()
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	return &App{
		runner:    NewRunner(engine, planService, notifier, cfg.Sync.AdminTelegramID, logger),
		scheduler: scheduler,
		db:        db,
		cache:     cacheRedis,
		conn:      conn,
		ch:        ch,
		grpc:      grpcServer,
		health:    healthServer,
		listener:  lis,
		logger:    logger,
	}, nil
}

// Run читает очередь задач до отмены ctx или закрытия канала брокера.
func (a *App) Run(ctx context.Context) error {
	const op = "worker.Run"

	done, err := rabbitmq.ConsumerMessage(ctx, a.ch, librabbit.SyncQueue().QueueName, 1, a.runner.Handle, a.logger)
	if err != nil {
		a.closeChannel()
		a.close()
		return fmt.Errorf("%s: %w", op, err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("gRPC health server listening", slog.String("address", a.listener.Addr().String()))
		errCh <- a.grpc.Serve(a.listener)
	}()
	a.health.SetServingStatus(HealthService, healthpb.HealthCheckResponse_SERVING)
	a.scheduler.Start()
	a.logger.Info("sync worker started")

	var runErr error
	select {
	case <-ctx.Done():
	case <-done:
		runErr = fmt.Errorf("%s: delivery channel closed", op)
	case err := <-errCh:
		runErr = fmt.Errorf("%s: %w", op, err)
	}

	a.logger.Info("shutting down sync worker")
	a.health.Shutdown()
	<-a.scheduler.Stop().Done()
	a.grpc.GracefulStop()
	// закрытие канала останавливает доставку; базу закрываем после текущей задачи
	a.closeChannel()
	<-done
	a.close()
	return runErr
}

func (a *App) closeChannel() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
}

func (a *App) close() {
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
