package sync

import (
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/remnashop/internal/models"
	"github.com/magabrotheeeer/remnashop/internal/remnawave"
)

// importedPlanName имя снимка для подписки, пришедшей с панели без тарифа бота.
const importedPlanName = "imported"

// panelUsernamePrefix префикс имени пользователя, которое бот задаёт на панели.
const panelUsernamePrefix = "rs_"

// PanelUsername имя пользователя панели для telegram id.
func PanelUsername(telegramID int64) string {
	return panelUsernamePrefix + strconv.FormatInt(telegramID, 10)
}

// ShortUUIDFromURL достаёт short uuid из ссылки подписки: это последний сегмент пути.
func ShortUUIDFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	return path.Base(p)
}

// ApplyPanelUser переносит состояние пользователя панели в локальную подписку.
// sub может быть nil, тогда строится новая подписка. Исходная подписка не меняется.
func ApplyPanelUser(sub *models.Subscription, pu remnawave.User, now time.Time) models.Subscription {
	var out models.Subscription
	if sub != nil {
		out = *sub
		out.InternalSquads = slices.Clone(sub.InternalSquads)
		out.ExternalSquad = slices.Clone(sub.ExternalSquad)
	} else {
		out.CreatedAt = now
	}
	if pu.TelegramID != nil {
		out.UserTelegramID = *pu.TelegramID
	}

	out.UserRemnaID = pu.UUID
	out.Status = statusFromPanel(pu.Status)
	out.ExpireAt = pu.ExpireAt
	out.URL = pu.SubscriptionURL
	out.TrafficLimit = remnawave.BytesToGB(pu.TrafficLimitBytes)
	out.TrafficLimitStrategy = strategyFromPanel(pu.TrafficLimitStrategy)
	out.InternalSquads = pu.InternalSquadUUIDs()
	out.ExternalSquad = nil
	if pu.ExternalSquadUUID != nil && *pu.ExternalSquadUUID != "" {
		out.ExternalSquad = []string{*pu.ExternalSquadUUID}
	}
	out.Tag = ""
	if pu.Tag != nil {
		out.Tag = *pu.Tag
	}

	// на панели хранится лимит вместе с докупленными устройствами
	total := remnawave.DeviceLimitFromPanel(pu.HwidDeviceLimit)
	switch {
	case total == models.Unlimited:
		out.DeviceLimit = models.Unlimited
	case total-out.ExtraDevices >= 1:
		out.DeviceLimit = total - out.ExtraDevices
	default:
		out.DeviceLimit = total
		out.ExtraDevices = 0
	}

	if out.Plan.ID == 0 && out.Plan.Name == "" {
		out.Plan = models.PlanSnapshot{
			Name:     importedPlanName,
			Type:     planTypeFor(out.TrafficLimit, out.DeviceLimit),
			Duration: importedDuration(pu.CreatedAt, pu.ExpireAt),
		}
	}
	out.Plan.Tag = out.Tag
	out.Plan.TrafficLimit = out.TrafficLimit
	out.Plan.DeviceLimit = out.DeviceLimit
	out.Plan.TrafficLimitStrategy = out.TrafficLimitStrategy
	out.Plan.InternalSquads = slices.Clone(out.InternalSquads)
	out.Plan.ExternalSquad = slices.Clone(out.ExternalSquad)

	out.UpdatedAt = now
	return out
}

// BuildUpdateRequest строит PATCH пользователя панели из локальной подписки.
func BuildUpdateRequest(sub models.Subscription) remnawave.UpdateUserRequest {
	telegramID := sub.UserTelegramID
	return remnawave.UpdateUserRequest{
		UUID:                 sub.UserRemnaID,
		Status:               statusToPanel(sub.Status),
		TrafficLimitBytes:    remnawave.GBToBytes(sub.TrafficLimit),
		TrafficLimitStrategy: string(strategyOrDefault(sub.TrafficLimitStrategy)),
		ExpireAt:             sub.ExpireAt,
		TelegramID:           &telegramID,
		Tag:                  optional(sub.Tag),
		HwidDeviceLimit:      remnawave.DeviceLimitToPanel(sub.TotalDeviceLimit()),
		ActiveInternalSquads: squadsOrEmpty(sub.InternalSquads),
		ExternalSquadUUID:    firstOrNil(sub.ExternalSquad),
	}
}

// BuildCreateRequest строит создание пользователя панели. shortUUID задаётся,
// когда нужно сохранить прежнюю ссылку подписки.
func BuildCreateRequest(user models.User, sub models.Subscription, shortUUID string) remnawave.CreateUserRequest {
	telegramID := user.TelegramID
	return remnawave.CreateUserRequest{
		Username:             PanelUsername(user.TelegramID),
		ShortUUID:            shortUUID,
		Status:               statusToPanel(sub.Status),
		TrafficLimitBytes:    remnawave.GBToBytes(sub.TrafficLimit),
		TrafficLimitStrategy: string(strategyOrDefault(sub.TrafficLimitStrategy)),
		ExpireAt:             sub.ExpireAt,
		TelegramID:           &telegramID,
		Description:          user.Name,
		Tag:                  optional(sub.Tag),
		HwidDeviceLimit:      remnawave.DeviceLimitToPanel(sub.TotalDeviceLimit()),
		ActiveInternalSquads: squadsOrEmpty(sub.InternalSquads),
		ExternalSquadUUID:    firstOrNil(sub.ExternalSquad),
	}
}

func statusFromPanel(s string) models.SubscriptionStatus {
	switch s {
	case remnawave.StatusActive:
		return models.StatusActive
	case remnawave.StatusLimited:
		return models.StatusLimited
	case remnawave.StatusExpired:
		return models.StatusExpired
	default:
		return models.StatusDisabled
	}
}

// statusToPanel панель принимает на запись только ACTIVE и DISABLED,
// LIMITED и EXPIRED она выставляет сама.
func statusToPanel(s models.SubscriptionStatus) string {
	switch s {
	case models.StatusActive:
		return remnawave.StatusActive
	case models.StatusDisabled, models.StatusDeleted:
		return remnawave.StatusDisabled
	default:
		return ""
	}
}

func strategyFromPanel(s string) models.TrafficLimitStrategy {
	st := models.TrafficLimitStrategy(s)
	switch st {
	case models.StrategyDay, models.StrategyWeek, models.StrategyMonth:
		return st
	default:
		return models.StrategyNoReset
	}
}

func strategyOrDefault(s models.TrafficLimitStrategy) models.TrafficLimitStrategy {
	if s == "" {
		return models.StrategyNoReset
	}
	return s
}

func planTypeFor(traffic, devices int) models.PlanType {
	switch {
	case traffic != models.Unlimited && devices != models.Unlimited:
		return models.PlanTypeBoth
	case traffic != models.Unlimited:
		return models.PlanTypeTraffic
	case devices != models.Unlimited:
		return models.PlanTypeDevices
	default:
		return models.PlanTypeUnlimited
	}
}

func importedDuration(created, expire time.Time) int {
	if created.IsZero() || !expire.After(created) {
		return models.Unlimited
	}
	days := int(expire.Sub(created).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func firstOrNil(s []string) *string {
	if len(s) == 0 {
		return nil
	}
	v := s[0]
	return &v
}

func squadsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}
