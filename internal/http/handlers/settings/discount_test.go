package settings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/remnashop/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) GlobalDiscount(ctx context.Context) (*models.GlobalDiscountSettings, error) {
	args := m.Called(ctx)
	if g := args.Get(0); g != nil {
		return g.(*models.GlobalDiscountSettings), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) SaveGlobalDiscount(ctx context.Context, g models.GlobalDiscountSettings) error {
	args := m.Called(ctx, g)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReadHandler(t *testing.T) {
	t.Run("настройки загружены", func(t *testing.T) {
		svc := new(MockService)
		svc.On("GlobalDiscount", mock.Anything).Return(&models.GlobalDiscountSettings{
			Enabled:       true,
			DiscountType:  models.DiscountPercent,
			DiscountValue: decimal.NewFromInt(15),
		}, nil)

		w := httptest.NewRecorder()
		NewRead(newNoopLogger(), svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/settings/discount", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"discount_value":"15"`)
		svc.AssertExpectations(t)
	})

	t.Run("ошибка хранилища", func(t *testing.T) {
		svc := new(MockService)
		svc.On("GlobalDiscount", mock.Anything).Return(nil, errors.New("db down"))

		w := httptest.NewRecorder()
		NewRead(newNoopLogger(), svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/settings/discount", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "could not load settings")
	})
}

func TestUpdateHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "сохранение процентной скидки",
			body: `{"enabled":true,"discount_type":"percent","discount_value":"20","apply_to_subscription":true}`,
			setupMock: func(m *MockService) {
				m.On("SaveGlobalDiscount", mock.Anything, mock.MatchedBy(func(g models.GlobalDiscountSettings) bool {
					return g.Enabled && g.DiscountType == models.DiscountPercent &&
						g.DiscountValue.Equal(decimal.NewFromInt(20)) && g.ApplyToSubscription
				})).Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"OK"`,
		},
		{
			name:           "неизвестный тип",
			body:           `{"enabled":true,"discount_type":"bonus","discount_value":"20"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field DiscountType must be one of [percent fixed]`,
		},
		{
			name:           "процент больше 100",
			body:           `{"enabled":true,"discount_type":"percent","discount_value":"150"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `out of range`,
		},
		{
			name: "фиксированная скидка больше 100 допустима",
			body: `{"enabled":true,"discount_type":"fixed","discount_value":"500"}`,
			setupMock: func(m *MockService) {
				m.On("SaveGlobalDiscount", mock.Anything, mock.Anything).Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"discount_type":"fixed"`,
		},
		{
			name:           "некорректный JSON",
			body:           `[]`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `invalid request body`,
		},
		{
			name: "ошибка сохранения",
			body: `{"discount_type":"fixed","discount_value":"1"}`,
			setupMock: func(m *MockService) {
				m.On("SaveGlobalDiscount", mock.Anything, mock.Anything).Return(errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `could not save settings`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPut, "/api/v1/settings/discount", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			NewUpdate(newNoopLogger(), svc).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}
