package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/magabrotheeeer/remnashop/internal/models"
)

const planColumns = `id, order_index, is_active, name, description, tag, type, availability,
	traffic_limit, device_limit, traffic_limit_strategy, internal_squads, external_squad,
	allowed_user_ids, durations, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*models.Plan, error) {
	var (
		p                                         models.Plan
		tag                                       sql.NullString
		internal, external, allowed, durationsRaw []byte
	)
	if err := row.Scan(&p.ID, &p.OrderIndex, &p.IsActive, &p.Name, &p.Description, &tag, &p.Type,
		&p.Availability, &p.TrafficLimit, &p.DeviceLimit, &p.TrafficLimitStrategy,
		&internal, &external, &allowed, &durationsRaw, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Tag = tag.String
	if err := json.Unmarshal(internal, &p.InternalSquads); err != nil {
		return nil, fmt.Errorf("internal_squads: %w", err)
	}
	if err := json.Unmarshal(external, &p.ExternalSquad); err != nil {
		return nil, fmt.Errorf("external_squad: %w", err)
	}
	if err := json.Unmarshal(allowed, &p.AllowedUserIDs); err != nil {
		return nil, fmt.Errorf("allowed_user_ids: %w", err)
	}
	if err := json.Unmarshal(durationsRaw, &p.Durations); err != nil {
		return nil, fmt.Errorf("durations: %w", err)
	}
	return &p, nil
}

type planJSON struct {
	internal, external, allowed, durations []byte
}

func encodePlan(p models.Plan) (planJSON, error) {
	var (
		out planJSON
		err error
	)
	if out.internal, err = toJSON(p.InternalSquads); err != nil {
		return out, err
	}
	if out.external, err = toJSON(p.ExternalSquad); err != nil {
		return out, err
	}
	if out.allowed, err = toJSON(p.AllowedUserIDs); err != nil {
		return out, err
	}
	if out.durations, err = toJSON(p.Durations); err != nil {
		return out, err
	}
	return out, nil
}

// CreatePlan сохраняет новый тариф и возвращает его ID.
func (s *Storage) CreatePlan(ctx context.Context, p models.Plan) (int64, error) {
	const op = "storage.CreatePlan"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	enc, err := encodePlan(p)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO plans (order_index, is_active, name, description, tag, type, availability,
			      traffic_limit, device_limit, traffic_limit_strategy, internal_squads, external_squad,
			      allowed_user_ids, durations)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			  RETURNING id`
	var id int64
	err = s.conn(ctx).QueryRowContext(ctx, query,
		p.OrderIndex, p.IsActive, p.Name, p.Description, nullString(p.Tag), p.Type, p.Availability,
		p.TrafficLimit, p.DeviceLimit, p.TrafficLimitStrategy, enc.internal, enc.external,
		enc.allowed, enc.durations).Scan(&id)
	if err != nil {
		return 0, mapErr(op, err)
	}
	return id, nil
}

// GetPlan возвращает тариф по ID.
func (s *Storage) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	const op = "storage.GetPlan"
	return s.getPlanBy(ctx, op, "id = $1", id)
}

// GetPlanByName возвращает тариф по имени.
func (s *Storage) GetPlanByName(ctx context.Context, name string) (*models.Plan, error) {
	const op = "storage.GetPlanByName"
	return s.getPlanBy(ctx, op, "name = $1", name)
}

// GetPlanByTag возвращает тариф по тегу.
func (s *Storage) GetPlanByTag(ctx context.Context, tag string) (*models.Plan, error) {
	const op = "storage.GetPlanByTag"
	return s.getPlanBy(ctx, op, "tag = $1", tag)
}

func (s *Storage) getPlanBy(ctx context.Context, op, where string, arg any) (*models.Plan, error) {
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE `+where, arg)
	p, err := scanPlan(row)
	if err != nil {
		return nil, mapErr(op, err)
	}
	return p, nil
}

// ListActivePlansByAvailability возвращает активные тарифы с указанной доступностью.
func (s *Storage) ListActivePlansByAvailability(ctx context.Context, a models.PlanAvailability) ([]models.Plan, error) {
	const op = "storage.ListActivePlansByAvailability"
	return s.listPlans(ctx, op, `WHERE is_active AND availability = $1`, a)
}

// ListPlans возвращает все тарифы в порядке отображения.
func (s *Storage) ListPlans(ctx context.Context) ([]models.Plan, error) {
	const op = "storage.ListPlans"
	return s.listPlans(ctx, op, "")
}

func (s *Storage) listPlans(ctx context.Context, op, where string, args ...any) ([]models.Plan, error) {
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+planColumns+` FROM plans `+where+` ORDER BY order_index, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var plans []models.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		plans = append(plans, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return plans, nil
}

// UpdatePlan перезаписывает тариф целиком.
func (s *Storage) UpdatePlan(ctx context.Context, p models.Plan) error {
	const op = "storage.UpdatePlan"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	enc, err := encodePlan(p)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `UPDATE plans SET order_index = $1, is_active = $2, name = $3, description = $4, tag = $5,
				type = $6, availability = $7, traffic_limit = $8, device_limit = $9,
				traffic_limit_strategy = $10, internal_squads = $11, external_squad = $12,
				allowed_user_ids = $13, durations = $14, updated_at = NOW()
			  WHERE id = $15`
	res, err := s.conn(ctx).ExecContext(ctx, query,
		p.OrderIndex, p.IsActive, p.Name, p.Description, nullString(p.Tag), p.Type, p.Availability,
		p.TrafficLimit, p.DeviceLimit, p.TrafficLimitStrategy, enc.internal, enc.external,
		enc.allowed, enc.durations, p.ID)
	if err != nil {
		return mapErr(op, err)
	}
	return expectOneRow(op, res)
}

// DeletePlan удаляет тариф.
func (s *Storage) DeletePlan(ctx context.Context, id int64) error {
	const op = "storage.DeletePlan"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM plans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectOneRow(op, res)
}

// CountPlans возвращает количество тарифов.
func (s *Storage) CountPlans(ctx context.Context) (int, error) {
	const op = "storage.CountPlans"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	var n int
	if err := s.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM plans`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func expectOneRow(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
