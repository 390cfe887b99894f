// Package models содержит доменные структуры витрины: тарифы, подписки,
// пользователей, настройки скидок и результаты расчёта цены.
// Структуры используются в бизнес-логике, хранилище и при обмене с панелью.
package models

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/remnashop/internal/lib/currency"
)

// Unlimited значение лимита трафика, устройств или длительности без ограничения.
const Unlimited = -1

// PlanType определяет, какие лимиты действуют в тарифе.
type PlanType string

const (
	PlanTypeTraffic   PlanType = "TRAFFIC"
	PlanTypeDevices   PlanType = "DEVICES"
	PlanTypeBoth      PlanType = "BOTH"
	PlanTypeUnlimited PlanType = "UNLIMITED"
)

// Valid сообщает, входит ли тип в допустимый набор.
func (t PlanType) Valid() bool {
	switch t {
	case PlanTypeTraffic, PlanTypeDevices, PlanTypeBoth, PlanTypeUnlimited:
		return true
	}
	return false
}

// PlanAvailability определяет, каким пользователям доступен тариф.
type PlanAvailability string

const (
	AvailabilityAll      PlanAvailability = "ALL"
	AvailabilityNew      PlanAvailability = "NEW"
	AvailabilityExisting PlanAvailability = "EXISTING"
	AvailabilityTrial    PlanAvailability = "TRIAL"
	AvailabilityInvited  PlanAvailability = "INVITED"
	AvailabilityAllowed  PlanAvailability = "ALLOWED"
)

// Valid сообщает, входит ли доступность в допустимый набор.
func (a PlanAvailability) Valid() bool {
	switch a {
	case AvailabilityAll, AvailabilityNew, AvailabilityExisting,
		AvailabilityTrial, AvailabilityInvited, AvailabilityAllowed:
		return true
	}
	return false
}

// IsSingleton true для пробного и пригласительного тарифов:
// активным может быть только один такой тариф, у него одна длительность и нулевая цена.
func (a PlanAvailability) IsSingleton() bool {
	return a == AvailabilityTrial || a == AvailabilityInvited
}

// TrafficLimitStrategy период сброса счётчика трафика на панели.
type TrafficLimitStrategy string

const (
	StrategyNoReset TrafficLimitStrategy = "NO_RESET"
	StrategyDay     TrafficLimitStrategy = "DAY"
	StrategyWeek    TrafficLimitStrategy = "WEEK"
	StrategyMonth   TrafficLimitStrategy = "MONTH"
)

// PlanPrice цена длительности в конкретной валюте.
type PlanPrice struct {
	Currency currency.Currency `json:"currency"`
	Amount   decimal.Decimal   `json:"amount"`
}

// PlanDuration вариант длительности тарифа со списком цен.
type PlanDuration struct {
	Days   int         `json:"days"`
	Prices []PlanPrice `json:"prices"`
}

// Price возвращает цену в валюте c.
func (d PlanDuration) Price(c currency.Currency) (decimal.Decimal, bool) {
	for _, p := range d.Prices {
		if p.Currency == c {
			return p.Amount, true
		}
	}
	return decimal.Zero, false
}

// Plan тариф, который можно купить в боте.
type Plan struct {
	ID                   int64                `json:"id"`
	OrderIndex           int                  `json:"order_index"`
	IsActive             bool                 `json:"is_active"`
	Name                 string               `json:"name"`
	Description          string               `json:"description"`
	Tag                  string               `json:"tag,omitempty"`
	Type                 PlanType             `json:"type"`
	Availability         PlanAvailability     `json:"availability"`
	TrafficLimit         int                  `json:"traffic_limit"` // ГБ, Unlimited означает без ограничения
	DeviceLimit          int                  `json:"device_limit"`
	TrafficLimitStrategy TrafficLimitStrategy `json:"traffic_limit_strategy"`
	InternalSquads       []string             `json:"internal_squads"` // упорядоченное множество UUID внутренних сквадов панели
	ExternalSquad        []string             `json:"external_squad"`  // ноль или один UUID внешнего сквада
	AllowedUserIDs       []int64              `json:"allowed_user_ids"`
	Durations            []PlanDuration       `json:"durations"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

// Duration возвращает вариант длительности по количеству дней.
func (p Plan) Duration(days int) (PlanDuration, bool) {
	for _, d := range p.Durations {
		if d.Days == days {
			return d, true
		}
	}
	return PlanDuration{}, false
}

// Clone возвращает копию тарифа, не разделяющую срезы с исходным.
func (p Plan) Clone() Plan {
	c := p
	c.InternalSquads = slices.Clone(p.InternalSquads)
	c.ExternalSquad = slices.Clone(p.ExternalSquad)
	c.AllowedUserIDs = slices.Clone(p.AllowedUserIDs)
	c.Durations = cloneDurations(p.Durations)
	return c
}

func cloneDurations(src []PlanDuration) []PlanDuration {
	if src == nil {
		return nil
	}
	out := make([]PlanDuration, len(src))
	for i, d := range src {
		out[i] = PlanDuration{Days: d.Days, Prices: slices.Clone(d.Prices)}
	}
	return out
}

// ApplyTypeLimits приводит лимиты в соответствие с типом тарифа.
func (p *Plan) ApplyTypeLimits() {
	switch p.Type {
	case PlanTypeTraffic:
		p.DeviceLimit = Unlimited
	case PlanTypeDevices:
		p.TrafficLimit = Unlimited
	case PlanTypeUnlimited:
		p.TrafficLimit = Unlimited
		p.DeviceLimit = Unlimited
	}
}

// ZeroPrices обнуляет все цены тарифа.
func (p *Plan) ZeroPrices() {
	for i := range p.Durations {
		for j := range p.Durations[i].Prices {
			p.Durations[i].Prices[j].Amount = decimal.Zero
		}
	}
}
