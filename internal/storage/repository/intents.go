package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/remnashop/internal/models"
)

// RecordIntent записывает намерение пересоздать пользователя панели и возвращает ID записи.
func (s *Storage) RecordIntent(ctx context.Context, in models.RecreateIntent) (int64, error) {
	const op = "storage.RecordIntent"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	query := `INSERT INTO recreate_intents (subscription_id, user_telegram_id, old_remna_id, desired_short_uuid, stage)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`
	var id int64
	err := s.conn(ctx).QueryRowContext(ctx, query,
		in.SubscriptionID, in.UserTelegramID, in.OldRemnaID, in.DesiredShortUUID, models.IntentRecorded).Scan(&id)
	if err != nil {
		return 0, mapErr(op, err)
	}
	return id, nil
}

// MarkIntentDeleted отмечает, что старый пользователь панели удалён.
func (s *Storage) MarkIntentDeleted(ctx context.Context, id int64) error {
	const op = "storage.MarkIntentDeleted"
	return s.setIntentStage(ctx, op, id, models.IntentDeleted, "")
}

// CompleteIntent закрывает запись после сохранения нового пользователя в подписке.
func (s *Storage) CompleteIntent(ctx context.Context, id int64, newRemnaID string) error {
	const op = "storage.CompleteIntent"
	return s.setIntentStage(ctx, op, id, models.IntentCompleted, newRemnaID)
}

func (s *Storage) setIntentStage(ctx context.Context, op string, id int64, stage models.IntentStage, newRemnaID string) error {
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE recreate_intents SET stage = $1, new_remna_id = COALESCE(NULLIF($2, ''), new_remna_id), updated_at = NOW()
		 WHERE id = $3`,
		stage, newRemnaID, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectOneRow(op, res)
}

// ListPendingIntents возвращает незавершённые записи в порядке создания.
func (s *Storage) ListPendingIntents(ctx context.Context) ([]models.RecreateIntent, error) {
	const op = "storage.ListPendingIntents"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT id, subscription_id, user_telegram_id, old_remna_id, desired_short_uuid, stage,
				new_remna_id, created_at, updated_at
		 FROM recreate_intents WHERE stage <> $1 ORDER BY id`, models.IntentCompleted)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var intents []models.RecreateIntent
	for rows.Next() {
		var in models.RecreateIntent
		if err := rows.Scan(&in.ID, &in.SubscriptionID, &in.UserTelegramID, &in.OldRemnaID,
			&in.DesiredShortUUID, &in.Stage, &in.NewRemnaID, &in.CreatedAt, &in.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		intents = append(intents, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return intents, nil
}
