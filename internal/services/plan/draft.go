package plan

import (
	"slices"
	"strings"
	"time"

	"github.com/magabrotheeeer/remnashop/internal/models"
)

// PlanDraft правки тарифа, накопленные администратором до подтверждения.
// Заполнены только изменённые поля, остальные берутся из тарифа при Merge.
type PlanDraft struct {
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
	PlanID    *int64    `json:"plan_id,omitempty"`

	Name                 *string                      `json:"name,omitempty"`
	Description          *string                      `json:"description,omitempty"`
	Tag                  *string                      `json:"tag,omitempty"`
	Type                 *models.PlanType             `json:"type,omitempty"`
	Availability         *models.PlanAvailability     `json:"availability,omitempty"`
	TrafficLimit         *int                         `json:"traffic_limit,omitempty"`
	DeviceLimit          *int                         `json:"device_limit,omitempty"`
	TrafficLimitStrategy *models.TrafficLimitStrategy `json:"traffic_limit_strategy,omitempty"`
	InternalSquads       *[]string                    `json:"internal_squads,omitempty"`
	ExternalSquad        *[]string                    `json:"external_squad,omitempty"`
	AllowedUserIDs       *[]int64                     `json:"allowed_user_ids,omitempty"`
	Durations            *[]models.PlanDuration       `json:"durations,omitempty"`
	IsActive             *bool                        `json:"is_active,omitempty"`
	OrderIndex           *int                         `json:"order_index,omitempty"`
}

// IsNew true, если черновик создаёт новый тариф.
func (d PlanDraft) IsNew() bool {
	return d.PlanID == nil
}

// Apply переносит в черновик заданные поля patch. Поля сессии не меняются.
func (d *PlanDraft) Apply(patch PlanDraft) {
	if patch.Name != nil {
		d.Name = patch.Name
	}
	if patch.Description != nil {
		d.Description = patch.Description
	}
	if patch.Tag != nil {
		d.Tag = patch.Tag
	}
	if patch.Type != nil {
		d.Type = patch.Type
	}
	if patch.Availability != nil {
		d.Availability = patch.Availability
	}
	if patch.TrafficLimit != nil {
		d.TrafficLimit = patch.TrafficLimit
	}
	if patch.DeviceLimit != nil {
		d.DeviceLimit = patch.DeviceLimit
	}
	if patch.TrafficLimitStrategy != nil {
		d.TrafficLimitStrategy = patch.TrafficLimitStrategy
	}
	if patch.InternalSquads != nil {
		d.InternalSquads = patch.InternalSquads
	}
	if patch.ExternalSquad != nil {
		d.ExternalSquad = patch.ExternalSquad
	}
	if patch.AllowedUserIDs != nil {
		d.AllowedUserIDs = patch.AllowedUserIDs
	}
	if patch.Durations != nil {
		d.Durations = patch.Durations
	}
	if patch.IsActive != nil {
		d.IsActive = patch.IsActive
	}
	if patch.OrderIndex != nil {
		d.OrderIndex = patch.OrderIndex
	}
}

// Merge возвращает копию base с применёнными правками. base не меняется.
func (d PlanDraft) Merge(base models.Plan) models.Plan {
	p := base.Clone()
	if d.Name != nil {
		p.Name = strings.TrimSpace(*d.Name)
	}
	if d.Description != nil {
		p.Description = *d.Description
	}
	if d.Tag != nil {
		p.Tag = strings.TrimSpace(*d.Tag)
	}
	if d.Type != nil {
		p.Type = *d.Type
	}
	if d.Availability != nil {
		p.Availability = *d.Availability
	}
	if d.TrafficLimit != nil {
		p.TrafficLimit = *d.TrafficLimit
	}
	if d.DeviceLimit != nil {
		p.DeviceLimit = *d.DeviceLimit
	}
	if d.TrafficLimitStrategy != nil {
		p.TrafficLimitStrategy = *d.TrafficLimitStrategy
	}
	if d.InternalSquads != nil {
		p.InternalSquads = slices.Clone(*d.InternalSquads)
	}
	if d.ExternalSquad != nil {
		p.ExternalSquad = slices.Clone(*d.ExternalSquad)
	}
	if d.AllowedUserIDs != nil {
		p.AllowedUserIDs = slices.Clone(*d.AllowedUserIDs)
	}
	if d.Durations != nil {
		p.Durations = models.Plan{Durations: *d.Durations}.Clone().Durations
	}
	if d.IsActive != nil {
		p.IsActive = *d.IsActive
	}
	if d.OrderIndex != nil {
		p.OrderIndex = *d.OrderIndex
	}
	return p
}

// NewPlanDefaults основа нового тарифа: безлимитный, доступный всем, выключенный.
func NewPlanDefaults() models.Plan {
	return models.Plan{
		Type:                 models.PlanTypeUnlimited,
		Availability:         models.AvailabilityAll,
		TrafficLimit:         models.Unlimited,
		DeviceLimit:          models.Unlimited,
		TrafficLimitStrategy: models.StrategyNoReset,
	}
}
