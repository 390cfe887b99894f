package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/magabrotheeeer/remnashop/internal/models"
)

const subscriptionColumns = `id, user_telegram_id, user_remna_id, status, is_trial, traffic_limit,
	device_limit, extra_devices, traffic_limit_strategy, tag, internal_squads, external_squad,
	expire_at, url, plan, created_at, updated_at`

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var (
		sub                      models.Subscription
		internal, external, plan []byte
	)
	if err := row.Scan(&sub.ID, &sub.UserTelegramID, &sub.UserRemnaID, &sub.Status, &sub.IsTrial,
		&sub.TrafficLimit, &sub.DeviceLimit, &sub.ExtraDevices, &sub.TrafficLimitStrategy, &sub.Tag,
		&internal, &external, &sub.ExpireAt, &sub.URL, &plan, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(internal, &sub.InternalSquads); err != nil {
		return nil, fmt.Errorf("internal_squads: %w", err)
	}
	if err := json.Unmarshal(external, &sub.ExternalSquad); err != nil {
		return nil, fmt.Errorf("external_squad: %w", err)
	}
	if err := json.Unmarshal(plan, &sub.Plan); err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	return &sub, nil
}

func encodeSubscription(sub models.Subscription) (internal, external, plan []byte, err error) {
	if internal, err = toJSON(sub.InternalSquads); err != nil {
		return
	}
	if external, err = toJSON(sub.ExternalSquad); err != nil {
		return
	}
	plan, err = json.Marshal(sub.Plan)
	return
}

// CreateSubscription сохраняет подписку и возвращает её ID.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (int64, error) {
	const op = "storage.CreateSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	internal, external, plan, err := encodeSubscription(sub)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	query := `INSERT INTO subscriptions (user_telegram_id, user_remna_id, status, is_trial, traffic_limit,
				device_limit, extra_devices, traffic_limit_strategy, tag, internal_squads, external_squad,
				expire_at, url, plan)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			  RETURNING id`
	var id int64
	err = s.conn(ctx).QueryRowContext(ctx, query,
		sub.UserTelegramID, sub.UserRemnaID, sub.Status, sub.IsTrial, sub.TrafficLimit,
		sub.DeviceLimit, sub.ExtraDevices, sub.TrafficLimitStrategy, sub.Tag, internal, external,
		sub.ExpireAt, sub.URL, plan).Scan(&id)
	if err != nil {
		return 0, mapErr(op, err)
	}
	return id, nil
}

// GetSubscription возвращает подписку по ID.
func (s *Storage) GetSubscription(ctx context.Context, id int64) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, mapErr(op, err)
	}
	return sub, nil
}

// GetCurrentSubscription возвращает текущую подписку пользователя.
func (s *Storage) GetCurrentSubscription(ctx context.Context, telegramID int64) (*models.Subscription, error) {
	const op = "storage.GetCurrentSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
			  WHERE id = (SELECT current_subscription_id FROM users WHERE telegram_id = $1)`
	sub, err := scanSubscription(s.conn(ctx).QueryRowContext(ctx, query, telegramID))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return sub, nil
}

// ListActiveSubscriptionsByPlan возвращает активные подписки, купленные по тарифу planID.
func (s *Storage) ListActiveSubscriptionsByPlan(ctx context.Context, planID int64) ([]models.Subscription, error) {
	const op = "storage.ListActiveSubscriptionsByPlan"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
			  WHERE status = $1 AND (plan ->> 'id')::BIGINT = $2
			  ORDER BY id`
	rows, err := s.conn(ctx).QueryContext(ctx, query, models.StatusActive, planID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// UpdateSubscription перезаписывает подписку целиком.
func (s *Storage) UpdateSubscription(ctx context.Context, sub models.Subscription) error {
	const op = "storage.UpdateSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	internal, external, plan, err := encodeSubscription(sub)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	query := `UPDATE subscriptions SET user_remna_id = $1, status = $2, is_trial = $3, traffic_limit = $4,
				device_limit = $5, extra_devices = $6, traffic_limit_strategy = $7, tag = $8,
				internal_squads = $9, external_squad = $10, expire_at = $11, url = $12, plan = $13,
				updated_at = NOW()
			  WHERE id = $14`
	res, err := s.conn(ctx).ExecContext(ctx, query,
		sub.UserRemnaID, sub.Status, sub.IsTrial, sub.TrafficLimit, sub.DeviceLimit, sub.ExtraDevices,
		sub.TrafficLimitStrategy, sub.Tag, internal, external, sub.ExpireAt, sub.URL, plan, sub.ID)
	if err != nil {
		return mapErr(op, err)
	}
	return expectOneRow(op, res)
}
