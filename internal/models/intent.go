package models

import "time"

// IntentStage этап пересоздания пользователя на панели.
type IntentStage string

const (
	// IntentRecorded намерение записано, пользователь на панели ещё не удалён.
	IntentRecorded IntentStage = "RECORDED"
	// IntentDeleted старый пользователь удалён, новый ещё не создан или не сохранён локально.
	IntentDeleted IntentStage = "DELETED"
	// IntentCompleted новый пользователь создан и сохранён в подписке.
	IntentCompleted IntentStage = "COMPLETED"
)

// RecreateIntent журнал пересоздания пользователя панели с прежним short uuid.
// Удаление на панели необратимо, поэтому каждое пересоздание сначала
// записывается, а незавершённые записи доводятся до конца при восстановлении.
type RecreateIntent struct {
	ID               int64
	SubscriptionID   int64
	UserTelegramID   int64
	OldRemnaID       string
	DesiredShortUUID string
	Stage            IntentStage
	NewRemnaID       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
