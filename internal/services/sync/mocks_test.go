package sync

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/remnashop/internal/models"
	"github.com/magabrotheeeer/remnashop/internal/remnawave"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type UsersMock struct{ mock.Mock }

func (m *UsersMock) CreateUser(ctx context.Context, u models.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *UsersMock) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UsersMock) ListUsersPage(ctx context.Context, afterID int64, limit int) ([]models.User, error) {
	args := m.Called(ctx, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *UsersMock) UpdateUser(ctx context.Context, u models.User) error {
	return m.Called(ctx, u).Error(0)
}

type SubscriptionsMock struct{ mock.Mock }

func (m *SubscriptionsMock) CreateSubscription(ctx context.Context, sub models.Subscription) (int64, error) {
	args := m.Called(ctx, sub)
	return args.Get(0).(int64), args.Error(1)
}

func (m *SubscriptionsMock) GetSubscription(ctx context.Context, id int64) (*models.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *SubscriptionsMock) GetCurrentSubscription(ctx context.Context, telegramID int64) (*models.Subscription, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *SubscriptionsMock) UpdateSubscription(ctx context.Context, sub models.Subscription) error {
	return m.Called(ctx, sub).Error(0)
}

type IntentsMock struct{ mock.Mock }

func (m *IntentsMock) RecordIntent(ctx context.Context, in models.RecreateIntent) (int64, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(int64), args.Error(1)
}

func (m *IntentsMock) MarkIntentDeleted(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *IntentsMock) CompleteIntent(ctx context.Context, id int64, newRemnaID string) error {
	return m.Called(ctx, id, newRemnaID).Error(0)
}

func (m *IntentsMock) ListPendingIntents(ctx context.Context) ([]models.RecreateIntent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RecreateIntent), args.Error(1)
}

type PanelMock struct{ mock.Mock }

func (m *PanelMock) ListUsers(ctx context.Context, start, size int) (*remnawave.UsersPage, error) {
	args := m.Called(ctx, start, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remnawave.UsersPage), args.Error(1)
}

func (m *PanelMock) GetUserByUUID(ctx context.Context, uuid string) (*remnawave.User, error) {
	args := m.Called(ctx, uuid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remnawave.User), args.Error(1)
}

func (m *PanelMock) GetUsersByTelegramID(ctx context.Context, telegramID int64) ([]remnawave.User, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]remnawave.User), args.Error(1)
}

func (m *PanelMock) CreateUser(ctx context.Context, req remnawave.CreateUserRequest) (*remnawave.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remnawave.User), args.Error(1)
}

func (m *PanelMock) UpdateUser(ctx context.Context, req remnawave.UpdateUserRequest) (*remnawave.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remnawave.User), args.Error(1)
}

func (m *PanelMock) DeleteUser(ctx context.Context, uuid string) error {
	return m.Called(ctx, uuid).Error(0)
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) NotifyError(ctx context.Context, id, template string, err error, params map[string]string) {
	m.Called(ctx, id, template, err, params)
}

// txPassthrough выполняет fn без транзакции.
type txPassthrough struct{}

func (txPassthrough) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type stubLocker struct{ err error }

func (l stubLocker) WithLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	if l.err != nil {
		return l.err
	}
	return fn(ctx)
}

type metricsRecorder struct {
	items     map[string]int
	durations int
}

func (m *metricsRecorder) ObserveSyncItems(direction, outcome string, n int) {
	if m.items == nil {
		m.items = make(map[string]int)
	}
	m.items[direction+"/"+outcome] += n
}

func (m *metricsRecorder) ObserveSyncDuration(string, time.Duration) {
	m.durations++
}

type testDeps struct {
	users    *UsersMock
	subs     *SubscriptionsMock
	intents  *IntentsMock
	panel    *PanelMock
	notifier *NotifierMock
	metrics  *metricsRecorder
	locker   stubLocker
}

func newTestDeps() *testDeps {
	return &testDeps{
		users:    new(UsersMock),
		subs:     new(SubscriptionsMock),
		intents:  new(IntentsMock),
		panel:    new(PanelMock),
		notifier: new(NotifierMock),
		metrics:  new(metricsRecorder),
	}
}

func (d *testDeps) engine(pageSize int) *Engine {
	return NewEngine(Deps{
		Users:         d.users,
		Subscriptions: d.subs,
		Intents:       d.intents,
		Tx:            txPassthrough{},
		Panel:         d.panel,
		Notifier:      d.notifier,
		Locker:        d.locker,
		Metrics:       d.metrics,
	}, pageSize, newNoopLogger())
}

func (d *testDeps) assertExpectations(t mock.TestingT) {
	d.users.AssertExpectations(t)
	d.subs.AssertExpectations(t)
	d.intents.AssertExpectations(t)
	d.panel.AssertExpectations(t)
	d.notifier.AssertExpectations(t)
}
