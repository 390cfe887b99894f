package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	librabbit "github.com/magabrotheeeer/remnashop/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/remnashop/internal/models"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(routingKey string, message any) error {
	return m.Called(routingKey, message).Error(0)
}

type SettingsMock struct{ mock.Mock }

func (m *SettingsMock) NotificationSettings(ctx context.Context) (*models.NotificationSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.NotificationSettings), args.Error(1)
}

var fixedNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestNotifier(pub Publisher, settings SettingsProvider) *Notifier {
	n := New(pub, settings, newNoopLogger())
	n.now = func() time.Time { return fixedNow }
	return n
}

func TestNotifyUser(t *testing.T) {
	pub := new(PublisherMock)
	pub.On("Publish", librabbit.RoutingNotifyUser, UserMessage{
		TelegramID: 42,
		Template:   "ntf-plan-updated",
		Params:     map[string]string{"plan": "Pro"},
		CreatedAt:  fixedNow,
	}).Return(nil).Once()

	newTestNotifier(pub, nil).NotifyUser(context.Background(), 42, "ntf-plan-updated", map[string]string{"plan": "Pro"})
	pub.AssertExpectations(t)
}

func TestNotifyUser_PublishErrorIsSwallowed(t *testing.T) {
	pub := new(PublisherMock)
	pub.On("Publish", librabbit.RoutingNotifyUser, mock.Anything).Return(errors.New("broker down"))

	assert.NotPanics(t, func() {
		newTestNotifier(pub, nil).NotifyUser(context.Background(), 1, "tpl", nil)
	})
	pub.AssertNumberOfCalls(t, "Publish", 1)
}

func TestNotifyError(t *testing.T) {
	ctx := context.Background()

	t.Run("enabled", func(t *testing.T) {
		pub, settings := new(PublisherMock), new(SettingsMock)
		all := models.DefaultNotificationSettings()
		settings.On("NotificationSettings", ctx).Return(&all, nil)
		pub.On("Publish", librabbit.RoutingNotifyError, mock.MatchedBy(func(m ErrorMessage) bool {
			return m.ID == "@alice (1)" && m.Error == "boom" && m.Trace != ""
		})).Return(nil).Once()

		newTestNotifier(pub, settings).NotifyError(ctx, "@alice (1)", "ntf-sync-error", errors.New("boom"), nil)
		pub.AssertExpectations(t)
	})

	t.Run("disabled", func(t *testing.T) {
		pub, settings := new(PublisherMock), new(SettingsMock)
		s := models.DefaultNotificationSettings()
		s.SyncError = false
		settings.On("NotificationSettings", ctx).Return(&s, nil)

		newTestNotifier(pub, settings).NotifyError(ctx, "id", "tpl", errors.New("boom"), nil)
		pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("settings failure still notifies", func(t *testing.T) {
		pub, settings := new(PublisherMock), new(SettingsMock)
		settings.On("NotificationSettings", ctx).Return(nil, errors.New("db down"))
		pub.On("Publish", librabbit.RoutingNotifyError, mock.Anything).Return(nil).Once()

		newTestNotifier(pub, settings).NotifyError(ctx, "id", "tpl", errors.New("boom"), nil)
		pub.AssertExpectations(t)
	})
}

func TestNotifySyncResult(t *testing.T) {
	ctx := context.Background()
	pub, settings := new(PublisherMock), new(SettingsMock)
	all := models.DefaultNotificationSettings()
	settings.On("NotificationSettings", ctx).Return(&all, nil)
	pub.On("Publish", librabbit.RoutingNotifyUser, UserMessage{
		TelegramID: 7,
		Type:       string(models.NotifySyncCompleted),
		Template:   "ntf-sync-bot_to_panel",
		Params:     map[string]string{"errors": "0"},
		CreatedAt:  fixedNow,
	}).Return(nil).Once()

	newTestNotifier(pub, settings).NotifySyncResult(ctx, 7, SyncBotToPanel, map[string]string{"errors": "0"})
	pub.AssertExpectations(t)
}

func TestQueueRedirect(t *testing.T) {
	pub := new(PublisherMock)
	pub.On("Publish", librabbit.RoutingTaskRedirect, RedirectTask{TelegramID: 9}).Return(nil).Once()

	newTestNotifier(pub, nil).QueueRedirect(context.Background(), 9)
	pub.AssertExpectations(t)
}

func TestQueueSync(t *testing.T) {
	ctx := context.Background()

	pub := new(PublisherMock)
	pub.On("Publish", librabbit.RoutingTaskSync, SyncJob{Kind: SyncBotToPanel, RequestedBy: 1, RequestedAt: fixedNow}).Return(nil).Once()
	n := newTestNotifier(pub, nil)
	require.NoError(t, n.QueueSync(ctx, SyncBotToPanel, 1))

	assert.Error(t, n.QueueSync(ctx, SyncKind("everything"), 1))

	failing := new(PublisherMock)
	failing.On("Publish", librabbit.RoutingTaskSync, mock.Anything).Return(errors.New("broker down"))
	assert.Error(t, newTestNotifier(failing, nil).QueueSync(ctx, SyncPanelToBot, 1))
}
