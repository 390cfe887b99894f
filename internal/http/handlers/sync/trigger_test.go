package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/remnashop/internal/http/middlewarectx"
	"github.com/magabrotheeeer/remnashop/internal/notify"
)

type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) QueueSync(ctx context.Context, kind notify.SyncKind, requestedBy int64) error {
	return m.Called(ctx, kind, requestedBy).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTriggerHandler(t *testing.T) {
	tests := []struct {
		name           string
		kind           string
		setupMock      func(*MockQueue)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "задача поставлена",
			kind: "bot_to_panel",
			setupMock: func(m *MockQueue) {
				m.On("QueueSync", mock.Anything, notify.SyncBotToPanel, int64(42)).Return(nil)
			},
			expectedStatus: http.StatusAccepted,
			expectedBody:   `"kind":"bot_to_panel"`,
		},
		{
			name:           "неизвестный вид",
			kind:           "everything",
			setupMock:      func(_ *MockQueue) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `unknown sync kind`,
		},
		{
			name: "брокер недоступен",
			kind: "plans_squads",
			setupMock: func(m *MockQueue) {
				m.On("QueueSync", mock.Anything, notify.SyncPlansSquads, int64(42)).Return(errors.New("channel closed"))
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `could not queue sync job`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := new(MockQueue)
			tt.setupMock(queue)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/"+tt.kind, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("kind", tt.kind)
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			ctx = context.WithValue(ctx, middlewarectx.TelegramID, int64(42))
			req = req.WithContext(ctx)

			w := httptest.NewRecorder()
			New(newNoopLogger(), queue).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			queue.AssertExpectations(t)
		})
	}
}
