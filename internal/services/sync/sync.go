// Package sync сверяет пользователей и подписки бота с панелью Remnawave.
//
// Синхронизация выполняется двумя независимыми проходами: PanelToBot переносит
// состояние панели в базу бота, BotToPanel отправляет локальные подписки на
// панель. Оба прохода используют общие проекции из projection.go, работают
// постранично и никогда не прерываются из-за ошибки одного пользователя.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/magabrotheeeer/remnashop/internal/lib/sl"
	"github.com/magabrotheeeer/remnashop/internal/lock"
	"github.com/magabrotheeeer/remnashop/internal/models"
	"github.com/magabrotheeeer/remnashop/internal/remnawave"
)

// ErrSyncInProgress другой процесс уже выполняет синхронизацию.
var ErrSyncInProgress = errors.New("sync is already in progress")

// DefaultPageSize размер страницы при обходе пользователей.
const DefaultPageSize = 50

// Direction направление синхронизации.
type Direction string

const (
	DirectionPanelToBot     Direction = "panel_to_bot"
	DirectionBotToPanel     Direction = "bot_to_panel"
	DirectionRecoverIntents Direction = "recover_intents"
)

// Шаблоны уведомлений об ошибках.
const (
	templateSyncError         = "ntf-sync-error"
	templateShortUUIDMismatch = "ntf-sync-short-uuid-mismatch"
)

// UserRepository пользователи бота.
type UserRepository interface {
	CreateUser(ctx context.Context, u models.User) error
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	ListUsersPage(ctx context.Context, afterID int64, limit int) ([]models.User, error)
	UpdateUser(ctx context.Context, u models.User) error
}

// SubscriptionRepository подписки бота.
type SubscriptionRepository interface {
	CreateSubscription(ctx context.Context, sub models.Subscription) (int64, error)
	GetSubscription(ctx context.Context, id int64) (*models.Subscription, error)
	GetCurrentSubscription(ctx context.Context, telegramID int64) (*models.Subscription, error)
	UpdateSubscription(ctx context.Context, sub models.Subscription) error
}

// IntentRepository журнал пересоздания пользователей панели.
type IntentRepository interface {
	RecordIntent(ctx context.Context, in models.RecreateIntent) (int64, error)
	MarkIntentDeleted(ctx context.Context, id int64) error
	CompleteIntent(ctx context.Context, id int64, newRemnaID string) error
	ListPendingIntents(ctx context.Context) ([]models.RecreateIntent, error)
}

// TxRunner выполняет fn в одной транзакции.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Panel методы панели, нужные синхронизации.
type Panel interface {
	ListUsers(ctx context.Context, start, size int) (*remnawave.UsersPage, error)
	GetUserByUUID(ctx context.Context, uuid string) (*remnawave.User, error)
	GetUsersByTelegramID(ctx context.Context, telegramID int64) ([]remnawave.User, error)
	CreateUser(ctx context.Context, req remnawave.CreateUserRequest) (*remnawave.User, error)
	UpdateUser(ctx context.Context, req remnawave.UpdateUserRequest) (*remnawave.User, error)
	DeleteUser(ctx context.Context, uuid string) error
}

// Notifier отправляет администраторам ошибки синхронизации.
type Notifier interface {
	NotifyError(ctx context.Context, id, template string, err error, params map[string]string)
}

// Locker блокировка задач.
type Locker interface {
	WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// Metrics учёт результатов синхронизации.
type Metrics interface {
	ObserveSyncItems(direction, outcome string, n int)
	ObserveSyncDuration(direction string, d time.Duration)
}

// Engine выполняет синхронизацию с панелью.
type Engine struct {
	users    UserRepository
	subs     SubscriptionRepository
	intents  IntentRepository
	tx       TxRunner
	panel    Panel
	notifier Notifier
	locker   Locker
	metrics  Metrics
	pageSize int
	log      *slog.Logger
	now      func() time.Time
}

// Deps зависимости Engine.
type Deps struct {
	Users         UserRepository
	Subscriptions SubscriptionRepository
	Intents       IntentRepository
	Tx            TxRunner
	Panel         Panel
	Notifier      Notifier
	Locker        Locker
	Metrics       Metrics
}

// NewEngine создает Engine. pageSize <= 0 заменяется на DefaultPageSize.
func NewEngine(d Deps, pageSize int, log *slog.Logger) *Engine {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Engine{
		users:    d.Users,
		subs:     d.Subscriptions,
		intents:  d.Intents,
		tx:       d.Tx,
		panel:    d.Panel,
		notifier: d.Notifier,
		locker:   d.Locker,
		metrics:  d.Metrics,
		pageSize: pageSize,
		log:      log,
		now:      time.Now,
	}
}

// Result итог прохода синхронизации.
type Result struct {
	Direction         Direction
	Total             int
	Created           int
	Updated           int
	Recreated         int
	Skipped           int
	SkippedNoTelegram int
	SkippedInactive   int
	Errors            int
	ErrorDetails      map[string]string
	Duration          time.Duration
}

func newResult(d Direction) *Result {
	return &Result{Direction: d, ErrorDetails: make(map[string]string)}
}

// Summary счётчики результата для уведомления администратора.
func (r *Result) Summary() map[string]string {
	return map[string]string{
		"direction":           string(r.Direction),
		"total":               strconv.Itoa(r.Total),
		"created":             strconv.Itoa(r.Created),
		"updated":             strconv.Itoa(r.Updated),
		"recreated":           strconv.Itoa(r.Recreated),
		"skipped":             strconv.Itoa(r.Skipped),
		"skipped_no_telegram": strconv.Itoa(r.SkippedNoTelegram),
		"skipped_inactive":    strconv.Itoa(r.SkippedInactive),
		"errors":              strconv.Itoa(r.Errors),
		"duration":            r.Duration.Round(time.Millisecond).String(),
	}
}

type outcome string

const (
	outcomeCreated           outcome = "created"
	outcomeUpdated           outcome = "updated"
	outcomeRecreated         outcome = "recreated"
	outcomeSkipped           outcome = "skipped"
	outcomeSkippedNoTelegram outcome = "skipped_no_telegram"
	outcomeSkippedInactive   outcome = "skipped_inactive"
	outcomeError             outcome = "error"
)

func (r *Result) count(o outcome) {
	switch o {
	case outcomeCreated:
		r.Created++
	case outcomeUpdated:
		r.Updated++
	case outcomeRecreated:
		r.Recreated++
	case outcomeSkipped:
		r.Skipped++
	case outcomeSkippedNoTelegram:
		r.SkippedNoTelegram++
	case outcomeSkippedInactive:
		r.SkippedInactive++
	case outcomeError:
		r.Errors++
	}
}

// run выполняет проход под общей блокировкой синхронизации пользователей.
func (e *Engine) run(ctx context.Context, op string, d Direction, fn func(ctx context.Context, res *Result) error) (*Result, error) {
	log := e.log.With(slog.String("op", op))
	res := newResult(d)
	started := e.now()

	err := e.locker.WithLock(ctx, lock.SyncUsers, func(ctx context.Context) error {
		log.Info("sync started")
		return fn(ctx, res)
	})
	res.Duration = e.now().Sub(started)
	if errors.Is(err, lock.ErrLocked) {
		log.Warn("sync skipped: another run holds the lock")
		return nil, fmt.Errorf("%s: %w", op, ErrSyncInProgress)
	}

	e.observe(res)
	if err != nil {
		log.Error("sync aborted", sl.Err(err), slog.Int("processed", res.Total))
		return res, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("sync finished",
		slog.Int("total", res.Total),
		slog.Int("created", res.Created),
		slog.Int("updated", res.Updated),
		slog.Int("recreated", res.Recreated),
		slog.Int("skipped", res.Skipped),
		slog.Int("skipped_no_telegram", res.SkippedNoTelegram),
		slog.Int("skipped_inactive", res.SkippedInactive),
		slog.Int("errors", res.Errors),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}

// process выполняет обработку одного элемента. Ошибка или паника элемента
// учитывается в результате и не прерывает проход.
func (e *Engine) process(ctx context.Context, res *Result, label string, notify bool, fn func(ctx context.Context) (outcome, error)) {
	res.Total++

	defer func() {
		if r := recover(); r != nil {
			e.fail(ctx, res, label, notify, fmt.Errorf("panic: %v", r))
		}
	}()

	o, err := fn(ctx)
	switch {
	case err == nil:
		res.count(o)
	case errors.Is(err, remnawave.ErrInactiveSubscription):
		e.log.Debug("panel rejected inactive subscription", slog.String("user", label))
		res.count(outcomeSkippedInactive)
	default:
		e.fail(ctx, res, label, notify, err)
	}
}

func (e *Engine) fail(ctx context.Context, res *Result, label string, notify bool, err error) {
	res.count(outcomeError)
	res.ErrorDetails[label] = err.Error()
	e.log.Error("failed to sync user",
		slog.String("direction", string(res.Direction)),
		slog.String("user", label),
		sl.Err(err),
	)
	if notify {
		e.notifier.NotifyError(ctx, label, templateSyncError, err, map[string]string{
			"direction": string(res.Direction),
			"user":      label,
		})
	}
}

func (e *Engine) observe(res *Result) {
	if e.metrics == nil {
		return
	}
	d := string(res.Direction)
	e.metrics.ObserveSyncItems(d, string(outcomeCreated), res.Created)
	e.metrics.ObserveSyncItems(d, string(outcomeUpdated), res.Updated)
	e.metrics.ObserveSyncItems(d, string(outcomeRecreated), res.Recreated)
	e.metrics.ObserveSyncItems(d, string(outcomeSkipped), res.Skipped+res.SkippedNoTelegram+res.SkippedInactive)
	e.metrics.ObserveSyncItems(d, string(outcomeError), res.Errors)
	e.metrics.ObserveSyncDuration(d, res.Duration)
}
