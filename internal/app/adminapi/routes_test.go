package adminapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/remnashop/internal/config"
	"github.com/magabrotheeeer/remnashop/internal/http/handlers/health"
	"github.com/magabrotheeeer/remnashop/internal/lib/currency"
	"github.com/magabrotheeeer/remnashop/internal/lib/jwt"
	"github.com/magabrotheeeer/remnashop/internal/models"
	"github.com/magabrotheeeer/remnashop/internal/notify"
	plansvc "github.com/magabrotheeeer/remnashop/internal/services/plan"
)

type settingsMock struct {
	mock.Mock
}

func (m *settingsMock) GlobalDiscount(ctx context.Context) (*models.GlobalDiscountSettings, error) {
	args := m.Called(ctx)
	return args.Get(0).(*models.GlobalDiscountSettings), args.Error(1)
}

func (m *settingsMock) SaveGlobalDiscount(ctx context.Context, g models.GlobalDiscountSettings) error {
	return m.Called(ctx, g).Error(0)
}

type queueMock struct {
	mock.Mock
}

func (m *queueMock) QueueSync(ctx context.Context, kind notify.SyncKind, requestedBy int64) error {
	return m.Called(ctx, kind, requestedBy).Error(0)
}

type pricingStub struct{}

func (pricingStub) QuotePlan(context.Context, int64, int64, int, currency.Currency) (models.PriceDetails, error) {
	return models.PriceDetails{}, nil
}

func (pricingStub) QuoteExtraDevices(context.Context, int64, int, currency.Currency) (models.PriceDetails, error) {
	return models.PriceDetails{}, nil
}

func (pricingStub) QuoteTransferCommission(context.Context, int64, decimal.Decimal, currency.Currency) (models.BalanceTransfer, error) {
	return models.BalanceTransfer{}, nil
}

type plansStub struct{}

func (plansStub) StartSession(context.Context, int64, *int64) (*plansvc.PlanDraft, error) {
	return &plansvc.PlanDraft{}, nil
}

func (plansStub) UpdateDraft(context.Context, int64, plansvc.PlanDraft) (*plansvc.PlanDraft, error) {
	return &plansvc.PlanDraft{}, nil
}

func (plansStub) Draft(context.Context, int64) (*plansvc.PlanDraft, error) {
	return nil, plansvc.ErrDraftNotFound
}

func (plansStub) Confirm(context.Context, int64) (*plansvc.ConfirmResult, error) {
	return nil, plansvc.ErrDraftNotFound
}

func (plansStub) Cancel(context.Context, int64) error { return nil }

type okChecker struct{}

func (okChecker) Ping(context.Context) error { return nil }

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testRouter struct {
	router   chi.Router
	maker    *jwt.MakerImpl
	settings *settingsMock
	queue    *queueMock
}

func newTestRouter(limiter *rate.Limiter) *testRouter {
	tr := &testRouter{
		router:   chi.NewRouter(),
		maker:    jwt.NewJWTMaker("test-secret", time.Hour),
		settings: new(settingsMock),
		queue:    new(queueMock),
	}
	RegisterRoutes(tr.router, newNoopLogger(), Services{
		Pricing:  pricingStub{},
		Settings: tr.settings,
		Plans:    plansStub{},
		Sync:     tr.queue,
		Tokens:   tr.maker,
		Checks:   map[string]health.Checker{"postgres": okChecker{}},
		Limiter:  limiter,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "remnashop_sync_items_total 0")
		}),
	})
	return tr
}

func (tr *testRouter) do(t *testing.T, method, path, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(""))
	if role != "" {
		token, err := tr.maker.GenerateToken(42, role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	tr.router.ServeHTTP(w, req)
	return w
}

func TestRoutes_Auth(t *testing.T) {
	tr := newTestRouter(rate.NewLimiter(rate.Inf, 1))
	tr.settings.On("GlobalDiscount", mock.Anything).Return(&models.GlobalDiscountSettings{Enabled: true}, nil)

	assert.Equal(t, http.StatusUnauthorized, tr.do(t, http.MethodGet, "/api/v1/settings/discount", "").Code)
	assert.Equal(t, http.StatusForbidden, tr.do(t, http.MethodGet, "/api/v1/settings/discount", "user").Code)

	w := tr.do(t, http.MethodGet, "/api/v1/settings/discount", jwt.RoleAdmin)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"enabled":true`)
}

func TestRoutes_SyncTriggerUsesAdminFromToken(t *testing.T) {
	tr := newTestRouter(rate.NewLimiter(rate.Inf, 1))
	tr.queue.On("QueueSync", mock.Anything, notify.SyncRecoverIntents, int64(42)).Return(nil)

	w := tr.do(t, http.MethodPost, "/api/v1/sync/recover_intents", jwt.RoleAdmin)

	assert.Equal(t, http.StatusAccepted, w.Code)
	tr.queue.AssertExpectations(t)
}

func TestRoutes_DraftNotFound(t *testing.T) {
	tr := newTestRouter(rate.NewLimiter(rate.Inf, 1))

	w := tr.do(t, http.MethodPost, "/api/v1/plans/drafts/confirm", jwt.RoleAdmin)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoutes_RateLimit(t *testing.T) {
	tr := newTestRouter(rate.NewLimiter(rate.Limit(0), 1))

	assert.Equal(t, http.StatusNoContent, tr.do(t, http.MethodDelete, "/api/v1/plans/drafts", jwt.RoleAdmin).Code)
	assert.Equal(t, http.StatusTooManyRequests, tr.do(t, http.MethodDelete, "/api/v1/plans/drafts", jwt.RoleAdmin).Code)
}

func TestRoutes_Public(t *testing.T) {
	tr := newTestRouter(rate.NewLimiter(rate.Limit(0), 0))

	w := tr.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"postgres":"ok"`)

	w = tr.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "remnashop_sync_items_total")
}

func TestPricingOptions(t *testing.T) {
	opts, err := PricingOptions(config.Pricing{
		ExtraDevicePrice:          map[string]string{"rub": "99.90", "USD": "1,5"},
		TransferCommissionPercent: "5",
	})
	require.NoError(t, err)

	assert.True(t, opts.ExtraDevicePrice[currency.RUB].Equal(decimal.NewFromInt(99)))
	assert.True(t, opts.ExtraDevicePrice[currency.USD].Equal(decimal.RequireFromString("1.5")))
	assert.True(t, opts.TransferCommissionPercent.Equal(decimal.NewFromInt(5)))

	_, err = PricingOptions(config.Pricing{ExtraDevicePrice: map[string]string{"BTC": "1"}, TransferCommissionPercent: "0"})
	assert.ErrorIs(t, err, currency.ErrUnknownCurrency)

	_, err = PricingOptions(config.Pricing{TransferCommissionPercent: "-1"})
	assert.ErrorIs(t, err, currency.ErrNegativeValue)

	_, err = PricingOptions(config.Pricing{TransferCommissionPercent: "abc"})
	assert.Error(t, err)
}
