package plan

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/remnashop/internal/cache"
	"github.com/magabrotheeeer/remnashop/internal/models"
	"github.com/magabrotheeeer/remnashop/internal/remnawave"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDraftStore(t *testing.T) *DraftStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewDraftStore(&cache.Cache{Db: client}, 0)
}

type PlansMock struct{ mock.Mock }

func (m *PlansMock) CreatePlan(ctx context.Context, p models.Plan) (int64, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(int64), args.Error(1)
}

func (m *PlansMock) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Plan), args.Error(1)
}

func (m *PlansMock) GetPlanByName(ctx context.Context, name string) (*models.Plan, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Plan), args.Error(1)
}

func (m *PlansMock) GetPlanByTag(ctx context.Context, tag string) (*models.Plan, error) {
	args := m.Called(ctx, tag)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Plan), args.Error(1)
}

func (m *PlansMock) ListActivePlansByAvailability(ctx context.Context, a models.PlanAvailability) ([]models.Plan, error) {
	args := m.Called(ctx, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Plan), args.Error(1)
}

func (m *PlansMock) ListPlans(ctx context.Context) ([]models.Plan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Plan), args.Error(1)
}

func (m *PlansMock) UpdatePlan(ctx context.Context, p models.Plan) error {
	return m.Called(ctx, p).Error(0)
}

type SubscriptionsMock struct{ mock.Mock }

func (m *SubscriptionsMock) ListActiveSubscriptionsByPlan(ctx context.Context, planID int64) ([]models.Subscription, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Subscription), args.Error(1)
}

func (m *SubscriptionsMock) UpdateSubscription(ctx context.Context, sub models.Subscription) error {
	return m.Called(ctx, sub).Error(0)
}

type PanelMock struct{ mock.Mock }

func (m *PanelMock) ListInternalSquads(ctx context.Context) ([]remnawave.Squad, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]remnawave.Squad), args.Error(1)
}

func (m *PanelMock) UpdateUser(ctx context.Context, req remnawave.UpdateUserRequest) (*remnawave.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remnawave.User), args.Error(1)
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) QueueRedirect(ctx context.Context, telegramID int64) {
	m.Called(ctx, telegramID)
}

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

type squadMetrics struct{ updated, unchanged int }

func (m *squadMetrics) ObserveSquadsReconciled(updated, unchanged int) {
	m.updated += updated
	m.unchanged += unchanged
}
