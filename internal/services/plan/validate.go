package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/magabrotheeeer/remnashop/internal/models"
	"github.com/magabrotheeeer/remnashop/internal/storage/repository"
)

// Reason код причины отказа в сохранении тарифа. Бот показывает по нему сообщение.
type Reason string

const (
	ReasonNameRequired        Reason = "name_required"
	ReasonNameTaken           Reason = "name_taken"
	ReasonTagTaken            Reason = "tag_taken"
	ReasonSquadsRequired      Reason = "squads_required"
	ReasonDurationsRequired   Reason = "durations_required"
	ReasonTrialSingleDuration Reason = "trial_single_duration"
	ReasonTrialNotUnique      Reason = "trial_not_unique"
	ReasonInvalidDuration     Reason = "invalid_duration"
	ReasonNegativePrice       Reason = "negative_price"
	ReasonInvalidLimit        Reason = "invalid_limit"
	ReasonInvalidType         Reason = "invalid_type"
)

// ValidationError тариф нарушает правило и не может быть сохранён.
type ValidationError struct {
	Reason Reason
}

func (e *ValidationError) Error() string {
	return "invalid plan: " + string(e.Reason)
}

func invalid(r Reason) error {
	return &ValidationError{Reason: r}
}

// ReasonOf возвращает код причины, если err содержит ValidationError.
func ReasonOf(err error) (Reason, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason, true
	}
	return "", false
}

// checkPlan проверяет правила, не требующие обращения к хранилищу.
func checkPlan(p models.Plan) error {
	if strings.TrimSpace(p.Name) == "" {
		return invalid(ReasonNameRequired)
	}
	if !p.Type.Valid() || !p.Availability.Valid() {
		return invalid(ReasonInvalidType)
	}
	if !validLimit(p.TrafficLimit) || !validLimit(p.DeviceLimit) {
		return invalid(ReasonInvalidLimit)
	}
	if len(p.InternalSquads) == 0 {
		return invalid(ReasonSquadsRequired)
	}
	if len(p.Durations) == 0 {
		return invalid(ReasonDurationsRequired)
	}
	if p.Availability.IsSingleton() && len(p.Durations) != 1 {
		return invalid(ReasonTrialSingleDuration)
	}

	seen := make(map[int]struct{}, len(p.Durations))
	for _, d := range p.Durations {
		if d.Days == 0 || d.Days < models.Unlimited {
			return invalid(ReasonInvalidDuration)
		}
		if _, dup := seen[d.Days]; dup {
			return invalid(ReasonInvalidDuration)
		}
		seen[d.Days] = struct{}{}
		for _, price := range d.Prices {
			if price.Amount.IsNegative() {
				return invalid(ReasonNegativePrice)
			}
		}
	}
	return nil
}

func validLimit(v int) bool {
	return v == models.Unlimited || v > 0
}

// validate проверяет тариф целиком, включая уникальность имени, тега
// и единственность активного пробного или пригласительного тарифа.
func (s *Service) validate(ctx context.Context, p models.Plan) error {
	const op = "plan.validate"

	if err := checkPlan(p); err != nil {
		return err
	}

	other, err := s.plans.GetPlanByName(ctx, p.Name)
	switch {
	case err == nil && other.ID != p.ID:
		return invalid(ReasonNameTaken)
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w", op, err)
	}

	if p.Tag != "" {
		other, err := s.plans.GetPlanByTag(ctx, p.Tag)
		switch {
		case err == nil && other.ID != p.ID:
			return invalid(ReasonTagTaken)
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if p.Availability.IsSingleton() && p.IsActive {
		active, err := s.plans.ListActivePlansByAvailability(ctx, p.Availability)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if lo.ContainsBy(active, func(o models.Plan) bool { return o.ID != p.ID }) {
			return invalid(ReasonTrialNotUnique)
		}
	}
	return nil
}
