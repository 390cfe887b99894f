// Package jwt выпускает и проверяет токены администраторов витрины.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin роль, которой разрешён доступ к admin API.
const RoleAdmin = "admin"

// ErrInvalidToken токен не прошёл проверку.
var ErrInvalidToken = errors.New("invalid token")

// AdminClaims данные администратора в токене.
type AdminClaims struct {
	TelegramID int64  `json:"tg_id"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin true для токена с ролью администратора.
func (c AdminClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Maker выпускает и проверяет токены.
type Maker interface {
	GenerateToken(telegramID int64, role string) (string, error)
	ParseToken(tokenStr string) (*AdminClaims, error)
}

// MakerImpl подписывает токены HS256 общим секретом.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
	now       func() time.Time
}

// NewJWTMaker создаёт MakerImpl с секретом и временем жизни токена.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
		now:       time.Now,
	}
}
