package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/remnashop/internal/models"
)

const userColumns = `telegram_id, username, name, language, personal_discount, purchase_discount,
	purchase_discount_expires_at, balance, current_subscription_id, is_blocked, created_at`

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u       models.User
		expires sql.NullTime
		current sql.NullInt64
	)
	if err := row.Scan(&u.TelegramID, &u.Username, &u.Name, &u.Language, &u.PersonalDiscount,
		&u.PurchaseDiscount, &expires, &u.Balance, &current, &u.IsBlocked, &u.CreatedAt); err != nil {
		return nil, err
	}
	if expires.Valid {
		t := expires.Time
		u.PurchaseDiscountExpiresAt = &t
	}
	if current.Valid {
		id := current.Int64
		u.CurrentSubscriptionID = &id
	}
	return &u, nil
}

// CreateUser сохраняет нового пользователя.
func (s *Storage) CreateUser(ctx context.Context, u models.User) error {
	const op = "storage.CreateUser"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	language := u.Language
	if language == "" {
		language = "ru"
	}
	query := `INSERT INTO users (telegram_id, username, name, language, personal_discount,
				purchase_discount, purchase_discount_expires_at, balance, current_subscription_id, is_blocked)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.conn(ctx).ExecContext(ctx, query,
		u.TelegramID, u.Username, u.Name, language, u.PersonalDiscount, u.PurchaseDiscount,
		u.PurchaseDiscountExpiresAt, u.Balance, u.CurrentSubscriptionID, u.IsBlocked)
	if err != nil {
		return mapErr(op, err)
	}
	return nil
}

// GetUserByTelegramID возвращает пользователя по telegram id.
func (s *Storage) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	const op = "storage.GetUserByTelegramID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID)
	u, err := scanUser(row)
	if err != nil {
		return nil, mapErr(op, err)
	}
	return u, nil
}

// ListUsersPage возвращает пользователей с telegram id больше afterID, не более limit.
func (s *Storage) ListUsersPage(ctx context.Context, afterID int64, limit int) ([]models.User, error) {
	const op = "storage.ListUsersPage"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE telegram_id > $1 ORDER BY telegram_id LIMIT $2`,
		afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// UpdateUser перезаписывает изменяемые поля пользователя.
func (s *Storage) UpdateUser(ctx context.Context, u models.User) error {
	const op = "storage.UpdateUser"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	query := `UPDATE users SET username = $1, name = $2, language = $3, personal_discount = $4,
				purchase_discount = $5, purchase_discount_expires_at = $6, balance = $7,
				current_subscription_id = $8, is_blocked = $9
			  WHERE telegram_id = $10`
	res, err := s.conn(ctx).ExecContext(ctx, query,
		u.Username, u.Name, u.Language, u.PersonalDiscount, u.PurchaseDiscount,
		u.PurchaseDiscountExpiresAt, u.Balance, u.CurrentSubscriptionID, u.IsBlocked, u.TelegramID)
	if err != nil {
		return mapErr(op, err)
	}
	return expectOneRow(op, res)
}

// CountUsers возвращает количество пользователей.
func (s *Storage) CountUsers(ctx context.Context) (int, error) {
	const op = "storage.CountUsers"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	var n int
	if err := s.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
