// Package rabbitmq описывает топологию очередей витрины и публикацию сообщений.
package rabbitmq

// Exchange обменник витрины (direct).
const Exchange = "remnashop"

// Ключи маршрутизации.
const (
	RoutingNotifyUser   = "notify.user"
	RoutingNotifyError  = "notify.error"
	RoutingTaskRedirect = "task.redirect"
	RoutingTaskSync     = "task.sync"
)

// QueueConfig очередь и ключ, по которому она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// NotificationQueues очереди, которые читает бот: уведомления и перенаправления в меню.
func NotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "remnashop.notify.user", RoutingKey: RoutingNotifyUser},
		{QueueName: "remnashop.notify.error", RoutingKey: RoutingNotifyError},
		{QueueName: "remnashop.task.redirect", RoutingKey: RoutingTaskRedirect},
	}
}

// SyncQueue очередь задач синхронизации, которую читает sync-worker.
func SyncQueue() QueueConfig {
	return QueueConfig{QueueName: "remnashop.task.sync", RoutingKey: RoutingTaskSync}
}

// AllQueues полная топология.
func AllQueues() []QueueConfig {
	return append(NotificationQueues(), SyncQueue())
}
