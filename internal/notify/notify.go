// Package notify отправляет уведомления и задачи боту через RabbitMQ.
// Уведомления работают по принципу fire-and-forget: ошибка публикации
// пишется в лог и не возвращается вызывающему коду.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	librabbit "github.com/magabrotheeeer/remnashop/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/remnashop/internal/lib/sl"
	"github.com/magabrotheeeer/remnashop/internal/models"
)

// Publisher публикует сообщение с ключом маршрутизации.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// SettingsProvider источник включённых типов уведомлений.
type SettingsProvider interface {
	NotificationSettings(ctx context.Context) (*models.NotificationSettings, error)
}

// UserMessage уведомление пользователю по шаблону.
type UserMessage struct {
	TelegramID int64             `json:"telegram_id"`
	Type       string            `json:"type,omitempty"`
	Template   string            `json:"template"`
	Params     map[string]string `json:"params,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ErrorMessage уведомление об ошибке для администраторов.
type ErrorMessage struct {
	ID        string            `json:"id"`
	Template  string            `json:"template"`
	Error     string            `json:"error"`
	Trace     string            `json:"trace"`
	Params    map[string]string `json:"params,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// RedirectTask просит бота вернуть пользователя в главное меню.
type RedirectTask struct {
	TelegramID int64 `json:"telegram_id"`
}

// SyncKind вид задачи синхронизации.
type SyncKind string

const (
	SyncPanelToBot     SyncKind = "panel_to_bot"
	SyncBotToPanel     SyncKind = "bot_to_panel"
	SyncPlansSquads    SyncKind = "plans_squads"
	SyncRecoverIntents SyncKind = "recover_intents"
)

// Valid сообщает, известен ли вид задачи.
func (k SyncKind) Valid() bool {
	switch k {
	case SyncPanelToBot, SyncBotToPanel, SyncPlansSquads, SyncRecoverIntents:
		return true
	}
	return false
}

// SyncJob задача для sync-worker.
type SyncJob struct {
	Kind        SyncKind  `json:"kind"`
	RequestedBy int64     `json:"requested_by,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// Notifier публикует уведомления и задачи.
type Notifier struct {
	pub      Publisher
	settings SettingsProvider
	log      *slog.Logger
	now      func() time.Time
}

// New создаёт Notifier.
func New(pub Publisher, settings SettingsProvider, log *slog.Logger) *Notifier {
	return &Notifier{
		pub:      pub,
		settings: settings,
		log:      log,
		now:      time.Now,
	}
}

// NotifyUser отправляет пользователю уведомление по шаблону.
func (n *Notifier) NotifyUser(ctx context.Context, telegramID int64, template string, params map[string]string) {
	const op = "notify.NotifyUser"
	n.publish(ctx, op, librabbit.RoutingNotifyUser, UserMessage{
		TelegramID: telegramID,
		Template:   template,
		Params:     params,
		CreatedAt:  n.now(),
	})
}

// NotifySystem отправляет администратору системное уведомление, если его тип включён.
func (n *Notifier) NotifySystem(ctx context.Context, t models.NotificationType, adminID int64, template string, params map[string]string) {
	const op = "notify.NotifySystem"
	if !n.enabled(ctx, op, t) {
		return
	}
	n.publish(ctx, op, librabbit.RoutingNotifyUser, UserMessage{
		TelegramID: adminID,
		Type:       string(t),
		Template:   template,
		Params:     params,
		CreatedAt:  n.now(),
	})
}

// NotifyError отправляет администраторам ошибку со стеком вызова.
func (n *Notifier) NotifyError(ctx context.Context, id, template string, err error, params map[string]string) {
	const op = "notify.NotifyError"
	if !n.enabled(ctx, op, models.NotifySyncError) {
		return
	}
	msg := ErrorMessage{
		ID:        id,
		Template:  template,
		Trace:     string(debug.Stack()),
		Params:    params,
		CreatedAt: n.now(),
	}
	if err != nil {
		msg.Error = fmt.Sprintf("%+v", err)
	}
	n.publish(ctx, op, librabbit.RoutingNotifyError, msg)
}

// NotifySyncResult сообщает администратору итог синхронизации.
func (n *Notifier) NotifySyncResult(ctx context.Context, adminID int64, kind SyncKind, summary map[string]string) {
	n.NotifySystem(ctx, models.NotifySyncCompleted, adminID, "ntf-sync-"+string(kind), summary)
}

// QueueRedirect ставит задачу вернуть пользователя в главное меню.
func (n *Notifier) QueueRedirect(ctx context.Context, telegramID int64) {
	const op = "notify.QueueRedirect"
	n.publish(ctx, op, librabbit.RoutingTaskRedirect, RedirectTask{TelegramID: telegramID})
}

// QueueSync ставит задачу синхронизации. В отличие от уведомлений, ошибка
// возвращается: администратор должен узнать, что задача не принята.
func (n *Notifier) QueueSync(ctx context.Context, kind SyncKind, requestedBy int64) error {
	const op = "notify.QueueSync"
	if !kind.Valid() {
		return fmt.Errorf("%s: unknown sync kind %q", op, kind)
	}
	job := SyncJob{Kind: kind, RequestedBy: requestedBy, RequestedAt: n.now()}
	if err := n.pub.Publish(librabbit.RoutingTaskSync, job); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n.log.InfoContext(ctx, "sync job queued", slog.String("kind", string(kind)), slog.Int64("requested_by", requestedBy))
	return nil
}

func (n *Notifier) publish(ctx context.Context, op, routingKey string, msg any) {
	if err := n.pub.Publish(routingKey, msg); err != nil {
		n.log.ErrorContext(ctx, "failed to publish notification",
			slog.String("op", op),
			slog.String("routing_key", routingKey),
			sl.Err(err),
		)
	}
}

// enabled при ошибке чтения настроек уведомление отправляется.
func (n *Notifier) enabled(ctx context.Context, op string, t models.NotificationType) bool {
	if n.settings == nil {
		return true
	}
	s, err := n.settings.NotificationSettings(ctx)
	if err != nil {
		n.log.WarnContext(ctx, "failed to load notification settings", slog.String("op", op), sl.Err(err))
		return true
	}
	return s.Enabled(t)
}
