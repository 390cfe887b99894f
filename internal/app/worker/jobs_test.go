package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/remnashop/internal/lock"
	"github.com/magabrotheeeer/remnashop/internal/notify"
	plansvc "github.com/magabrotheeeer/remnashop/internal/services/plan"
	syncsvc "github.com/magabrotheeeer/remnashop/internal/services/sync"
)

type EngineMock struct {
	mock.Mock
}

func (m *EngineMock) result(args mock.Arguments) (*syncsvc.Result, error) {
	if r := args.Get(0); r != nil {
		return r.(*syncsvc.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *EngineMock) PanelToBot(ctx context.Context) (*syncsvc.Result, error) {
	return m.result(m.Called(ctx))
}

func (m *EngineMock) BotToPanel(ctx context.Context) (*syncsvc.Result, error) {
	return m.result(m.Called(ctx))
}

func (m *EngineMock) RecoverIntents(ctx context.Context) (*syncsvc.Result, error) {
	return m.result(m.Called(ctx))
}

type SquadsMock struct {
	mock.Mock
}

func (m *SquadsMock) ReconcileSquads(ctx context.Context) (plansvc.SquadSyncResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(plansvc.SquadSyncResult), args.Error(1)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) NotifySyncResult(ctx context.Context, adminID int64, kind notify.SyncKind, summary map[string]string) {
	m.Called(ctx, adminID, kind, summary)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func jobBody(t *testing.T, kind notify.SyncKind, requestedBy int64) []byte {
	t.Helper()
	body, err := json.Marshal(notify.SyncJob{Kind: kind, RequestedBy: requestedBy, RequestedAt: time.Now()})
	require.NoError(t, err)
	return body
}

func withStatus(status string) any {
	return mock.MatchedBy(func(s map[string]string) bool { return s["status"] == status })
}

func TestRunner_Handle(t *testing.T) {
	const defaultAdmin int64 = 100

	tests := []struct {
		name      string
		kind      notify.SyncKind
		requester int64
		setup     func(*EngineMock, *SquadsMock, *NotifierMock)
	}{
		{
			name:      "bot_to_panel по запросу администратора",
			kind:      notify.SyncBotToPanel,
			requester: 7,
			setup: func(e *EngineMock, _ *SquadsMock, n *NotifierMock) {
				e.On("BotToPanel", mock.Anything).Return(&syncsvc.Result{Direction: syncsvc.DirectionBotToPanel, Total: 3, Updated: 3}, nil)
				n.On("NotifySyncResult", mock.Anything, int64(7), notify.SyncBotToPanel, mock.MatchedBy(func(s map[string]string) bool {
					return s["status"] == "completed" && s["updated"] == "3"
				})).Return()
			},
		},
		{
			name: "panel_to_bot по расписанию уходит администратору из конфига",
			kind: notify.SyncPanelToBot,
			setup: func(e *EngineMock, _ *SquadsMock, n *NotifierMock) {
				e.On("PanelToBot", mock.Anything).Return(&syncsvc.Result{Direction: syncsvc.DirectionPanelToBot}, nil)
				n.On("NotifySyncResult", mock.Anything, defaultAdmin, notify.SyncPanelToBot, withStatus("completed")).Return()
			},
		},
		{
			name: "сверка сквадов",
			kind: notify.SyncPlansSquads,
			setup: func(_ *EngineMock, s *SquadsMock, n *NotifierMock) {
				s.On("ReconcileSquads", mock.Anything).Return(plansvc.SquadSyncResult{Updated: 2, Unchanged: 5}, nil)
				n.On("NotifySyncResult", mock.Anything, defaultAdmin, notify.SyncPlansSquads, mock.MatchedBy(func(s map[string]string) bool {
					return s["updated"] == "2" && s["unchanged"] == "5" && s["status"] == "completed"
				})).Return()
			},
		},
		{
			name: "синхронизация уже идёт",
			kind: notify.SyncRecoverIntents,
			setup: func(e *EngineMock, _ *SquadsMock, n *NotifierMock) {
				e.On("RecoverIntents", mock.Anything).Return(nil, fmt.Errorf("sync.RecoverIntents: %w", syncsvc.ErrSyncInProgress))
				n.On("NotifySyncResult", mock.Anything, defaultAdmin, notify.SyncRecoverIntents, withStatus("skipped")).Return()
			},
		},
		{
			name: "сверка сквадов заблокирована",
			kind: notify.SyncPlansSquads,
			setup: func(_ *EngineMock, s *SquadsMock, n *NotifierMock) {
				s.On("ReconcileSquads", mock.Anything).Return(plansvc.SquadSyncResult{}, fmt.Errorf("plan.ReconcileSquads: %w", lock.ErrLocked))
				n.On("NotifySyncResult", mock.Anything, defaultAdmin, notify.SyncPlansSquads, withStatus("skipped")).Return()
			},
		},
		{
			name:      "ошибка прохода",
			kind:      notify.SyncBotToPanel,
			requester: 7,
			setup: func(e *EngineMock, _ *SquadsMock, n *NotifierMock) {
				e.On("BotToPanel", mock.Anything).Return(nil, errors.New("panel unavailable"))
				n.On("NotifySyncResult", mock.Anything, int64(7), notify.SyncBotToPanel, mock.MatchedBy(func(s map[string]string) bool {
					return s["status"] == "failed" && s["error"] == "panel unavailable"
				})).Return()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, squads, notifier := new(EngineMock), new(SquadsMock), new(NotifierMock)
			tt.setup(engine, squads, notifier)

			r := NewRunner(engine, squads, notifier, defaultAdmin, newNoopLogger())
			err := r.Handle(context.Background(), jobBody(t, tt.kind, tt.requester))

			require.NoError(t, err)
			engine.AssertExpectations(t)
			squads.AssertExpectations(t)
			notifier.AssertExpectations(t)
		})
	}
}

func TestRunner_HandleDropsBadJobs(t *testing.T) {
	engine, squads, notifier := new(EngineMock), new(SquadsMock), new(NotifierMock)
	r := NewRunner(engine, squads, notifier, 100, newNoopLogger())

	assert.NoError(t, r.Handle(context.Background(), []byte("{not json")))
	assert.NoError(t, r.Handle(context.Background(), []byte(`{"kind":"drop_tables"}`)))

	engine.AssertNotCalled(t, "BotToPanel", mock.Anything)
	notifier.AssertNotCalled(t, "NotifySyncResult", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunner_NoAdminNoNotification(t *testing.T) {
	engine, squads, notifier := new(EngineMock), new(SquadsMock), new(NotifierMock)
	engine.On("RecoverIntents", mock.Anything).Return(&syncsvc.Result{}, nil)

	r := NewRunner(engine, squads, notifier, 0, newNoopLogger())
	require.NoError(t, r.Handle(context.Background(), jobBody(t, notify.SyncRecoverIntents, 0)))

	notifier.AssertNotCalled(t, "NotifySyncResult", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
