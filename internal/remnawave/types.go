package remnawave

import "time"

// Статусы пользователя на панели.
const (
	StatusActive   = "ACTIVE"
	StatusDisabled = "DISABLED"
	StatusLimited  = "LIMITED"
	StatusExpired  = "EXPIRED"
)

// SquadRef ссылка на сквад в карточке пользователя.
type SquadRef struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// User пользователь панели.
type User struct {
	UUID                 string     `json:"uuid"`
	ShortUUID            string     `json:"shortUuid"`
	Username             string     `json:"username"`
	Status               string     `json:"status"`
	TrafficLimitBytes    int64      `json:"trafficLimitBytes"`
	TrafficLimitStrategy string     `json:"trafficLimitStrategy"`
	ExpireAt             time.Time  `json:"expireAt"`
	TelegramID           *int64     `json:"telegramId"`
	Description          *string    `json:"description"`
	Tag                  *string    `json:"tag"`
	HwidDeviceLimit      *int       `json:"hwidDeviceLimit"`
	SubscriptionURL      string     `json:"subscriptionUrl"`
	ActiveInternalSquads []SquadRef `json:"activeInternalSquads"`
	ExternalSquadUUID    *string    `json:"externalSquadUuid"`
	CreatedAt            time.Time  `json:"createdAt"`
}

// InternalSquadUUIDs UUID активных внутренних сквадов в порядке панели.
func (u User) InternalSquadUUIDs() []string {
	out := make([]string, 0, len(u.ActiveInternalSquads))
	for _, s := range u.ActiveInternalSquads {
		out = append(out, s.UUID)
	}
	return out
}

// UsersPage страница списка пользователей.
type UsersPage struct {
	Users []User `json:"users"`
	Total int    `json:"total"`
}

// CreateUserRequest тело POST /api/users. ShortUUID задаётся, когда нужно
// сохранить прежнюю ссылку подписки.
type CreateUserRequest struct {
	Username             string    `json:"username"`
	ShortUUID            string    `json:"shortUuid,omitempty"`
	Status               string    `json:"status,omitempty"`
	TrafficLimitBytes    int64     `json:"trafficLimitBytes"`
	TrafficLimitStrategy string    `json:"trafficLimitStrategy,omitempty"`
	ExpireAt             time.Time `json:"expireAt"`
	TelegramID           *int64    `json:"telegramId,omitempty"`
	Description          string    `json:"description,omitempty"`
	Tag                  *string   `json:"tag,omitempty"`
	HwidDeviceLimit      int       `json:"hwidDeviceLimit"`
	ActiveInternalSquads []string  `json:"activeInternalSquads"`
	ExternalSquadUUID    *string   `json:"externalSquadUuid,omitempty"`
}

// UpdateUserRequest тело PATCH /api/users.
type UpdateUserRequest struct {
	UUID                 string    `json:"uuid"`
	Status               string    `json:"status,omitempty"`
	TrafficLimitBytes    int64     `json:"trafficLimitBytes"`
	TrafficLimitStrategy string    `json:"trafficLimitStrategy,omitempty"`
	ExpireAt             time.Time `json:"expireAt"`
	TelegramID           *int64    `json:"telegramId,omitempty"`
	Tag                  *string   `json:"tag"`
	HwidDeviceLimit      int       `json:"hwidDeviceLimit"`
	ActiveInternalSquads []string  `json:"activeInternalSquads"`
	ExternalSquadUUID    *string   `json:"externalSquadUuid"`
}

// Squad внутренний или внешний сквад.
type Squad struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// Stats системная статистика панели.
type Stats struct {
	Users struct {
		TotalUsers int `json:"totalUsers"`
	} `json:"users"`
}

type envelope[T any] struct {
	Response T `json:"response"`
}

type internalSquads struct {
	Total          int     `json:"total"`
	InternalSquads []Squad `json:"internalSquads"`
}

type externalSquads struct {
	Total          int     `json:"total"`
	ExternalSquads []Squad `json:"externalSquads"`
}

type deleteResult struct {
	IsDeleted bool `json:"isDeleted"`
}

// errorBody тело ответа с ошибкой.
type errorBody struct {
	Message    string          `json:"message"`
	StatusCode int             `json:"statusCode"`
	ErrorCode  string          `json:"errorCode"`
	Errors     []validationErr `json:"errors"`
}

type validationErr struct {
	Message string   `json:"message"`
	Path    []string `json:"path"`
}

const bytesInGB = 1024 * 1024 * 1024

// GBToBytes переводит лимит трафика бота в байты панели. Безлимит на панели равен нулю.
func GBToBytes(gb int) int64 {
	if gb <= 0 {
		return 0
	}
	return int64(gb) * bytesInGB
}

// BytesToGB переводит лимит трафика панели в гигабайты, ноль означает безлимит.
// Неполный гигабайт округляется вверх: лимит меньше 1 ГБ не должен стать безлимитом.
func BytesToGB(b int64) int {
	if b <= 0 {
		return -1
	}
	return int((b + bytesInGB - 1) / bytesInGB)
}

// DeviceLimitToPanel на панели ноль означает отсутствие лимита.
func DeviceLimitToPanel(limit int) int {
	if limit < 0 {
		return 0
	}
	return limit
}

// DeviceLimitFromPanel обратное преобразование для DeviceLimitToPanel.
func DeviceLimitFromPanel(limit *int) int {
	if limit == nil || *limit <= 0 {
		return -1
	}
	return *limit
}
