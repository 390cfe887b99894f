// Package lock распределённые блокировки фоновых задач поверх redis (redsync).
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/remnashop/internal/lib/sl"
)

var (
	// ErrLocked блокировку держит другой процесс.
	ErrLocked = errors.New("lock is held by another worker")
	// ErrLockLost блокировку не удалось продлить, задача прерывается.
	ErrLockLost = errors.New("lock lost")
)

// Имена блокировок задач.
const (
	SyncUsers = "remnashop:lock:sync:users"
	SyncPlans = "remnashop:lock:sync:plans"
)

// Locker выдаёт блокировки задач.
type Locker struct {
	rs          *redsync.Redsync
	ttl         time.Duration
	extendEvery time.Duration
	log         *slog.Logger
}

// New создаёт Locker. Пока задача выполняется, блокировка продлевается
// на ttl каждые ttl/3.
func New(client *redis.Client, ttl time.Duration, log *slog.Logger) *Locker {
	return &Locker{
		rs:          redsync.New(goredis.NewPool(client)),
		ttl:         ttl,
		extendEvery: ttl / 3,
		log:         log,
	}
}

// WithLock выполняет fn, удерживая блокировку name. Если блокировка занята,
// fn не вызывается и возвращается ErrLocked. Если продлить блокировку не
// удалось, контекст fn отменяется с причиной ErrLockLost.
func (l *Locker) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	const op = "lock.WithLock"

	m := l.rs.NewMutex(name, redsync.WithExpiry(l.ttl), redsync.WithTries(1))
	if err := m.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed) {
			return fmt.Errorf("%s: %s: %w", op, name, ErrLocked)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if _, err := m.UnlockContext(context.WithoutCancel(ctx)); err != nil {
			l.log.Warn("failed to release lock", slog.String("op", op), slog.String("name", name), sl.Err(err))
		}
	}()

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	done := make(chan struct{})
	go l.keepAlive(runCtx, m, name, cancel, done)
	defer close(done)

	err := fn(runCtx)
	if errors.Is(context.Cause(runCtx), ErrLockLost) {
		if err != nil {
			return fmt.Errorf("%s: %s: %w: %w", op, name, ErrLockLost, err)
		}
		return fmt.Errorf("%s: %s: %w", op, name, ErrLockLost)
	}
	return err
}

func (l *Locker) keepAlive(ctx context.Context, m *redsync.Mutex, name string, cancel context.CancelCauseFunc, done <-chan struct{}) {
	const op = "lock.keepAlive"

	ticker := time.NewTicker(l.extendEvery)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := m.ExtendContext(ctx)
			if err == nil && ok {
				continue
			}
			if err == nil {
				err = redsync.ErrExtendFailed
			}
			l.log.Error("failed to extend lock, aborting job",
				slog.String("op", op), slog.String("name", name), sl.Err(err))
			cancel(ErrLockLost)
			return
		}
	}
}
