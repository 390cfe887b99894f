package models

import (
	"slices"
	"time"
)

// SubscriptionStatus статус подписки, синхронизируемый с панелью.
type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "ACTIVE"
	StatusDisabled SubscriptionStatus = "DISABLED"
	StatusLimited  SubscriptionStatus = "LIMITED"
	StatusExpired  SubscriptionStatus = "EXPIRED"
	StatusDeleted  SubscriptionStatus = "DELETED"
)

// IsTerminal true для подписки, которую нельзя вернуть в работу.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == StatusDeleted
}

// PlanSnapshot неизменяемая копия параметров тарифа на момент покупки.
// Подписка не ссылается на живой тариф: правка тарифа меняет снимок только
// при явной синхронизации подписок с обновлённым тарифом.
type PlanSnapshot struct {
	ID                   int64                `json:"id"`
	Name                 string               `json:"name"`
	Tag                  string               `json:"tag,omitempty"`
	Type                 PlanType             `json:"type"`
	TrafficLimit         int                  `json:"traffic_limit"`
	DeviceLimit          int                  `json:"device_limit"`
	TrafficLimitStrategy TrafficLimitStrategy `json:"traffic_limit_strategy"`
	Duration             int                  `json:"duration"`
	InternalSquads       []string             `json:"internal_squads"`
	ExternalSquad        []string             `json:"external_squad,omitempty"`
}

// NewPlanSnapshot снимает копию тарифа для выбранной длительности.
func NewPlanSnapshot(p Plan, days int) PlanSnapshot {
	return PlanSnapshot{
		ID:                   p.ID,
		Name:                 p.Name,
		Tag:                  p.Tag,
		Type:                 p.Type,
		TrafficLimit:         p.TrafficLimit,
		DeviceLimit:          p.DeviceLimit,
		TrafficLimitStrategy: p.TrafficLimitStrategy,
		Duration:             days,
		InternalSquads:       slices.Clone(p.InternalSquads),
		ExternalSquad:        slices.Clone(p.ExternalSquad),
	}
}

// Subscription подписка пользователя.
// Поля лимитов, сквадов и тега дублируют снимок и именно они отправляются на панель.
type Subscription struct {
	ID                   int64
	UserTelegramID       int64
	UserRemnaID          string // UUID пользователя на панели
	Status               SubscriptionStatus
	IsTrial              bool
	TrafficLimit         int
	DeviceLimit          int
	ExtraDevices         int
	TrafficLimitStrategy TrafficLimitStrategy
	Tag                  string
	InternalSquads       []string
	ExternalSquad        []string
	ExpireAt             time.Time
	URL                  string
	Plan                 PlanSnapshot
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ApplySnapshot записывает снимок в подписку и переносит его параметры в поля,
// которые уходят на панель.
func (s *Subscription) ApplySnapshot(snap PlanSnapshot) {
	s.Plan = snap
	s.TrafficLimit = snap.TrafficLimit
	s.DeviceLimit = snap.DeviceLimit
	s.TrafficLimitStrategy = snap.TrafficLimitStrategy
	s.Tag = snap.Tag
	s.InternalSquads = slices.Clone(snap.InternalSquads)
	s.ExternalSquad = slices.Clone(snap.ExternalSquad)
}

// TotalDeviceLimit лимит устройств с учётом докупленных. Безлимит остаётся безлимитом.
func (s Subscription) TotalDeviceLimit() int {
	if s.DeviceLimit == Unlimited {
		return Unlimited
	}
	return s.DeviceLimit + s.ExtraDevices
}

// IsActive true для действующей подписки.
func (s Subscription) IsActive() bool {
	return s.Status == StatusActive
}
