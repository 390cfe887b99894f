package remnawave

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotFound пользователь или сквад отсутствует на панели.
	ErrNotFound = errors.New("remnawave: not found")
	// ErrValidation панель отклонила тело запроса валидацией (400 со списком errors).
	ErrValidation = errors.New("remnawave: rejected by validation")
	// ErrInactiveSubscription отказ валидацией при изменении неактивной подписки.
	// Не считается ошибкой синхронизации.
	ErrInactiveSubscription = errors.New("remnawave: subscription is not active")
)

// InactiveRejection помечает отказ валидацией как ErrInactiveSubscription, если
// подписка пользователя на панели не активна. Прочие ошибки возвращаются как есть.
func InactiveRejection(err error, panelStatus string) error {
	if err == nil || !errors.Is(err, ErrValidation) {
		return err
	}
	if panelStatus == "" || panelStatus == StatusActive {
		return err
	}
	return fmt.Errorf("%w: %w", ErrInactiveSubscription, err)
}

// TransientError временная ошибка: сеть, 5xx, 429. Запрос можно повторить.
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("remnawave: transient: %v", e.Err)
	}
	return fmt.Sprintf("remnawave: transient: status %d: %v", e.StatusCode, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError панель отклонила запрос, повтор не поможет.
type PermanentError struct {
	StatusCode int
	Message    string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("remnawave: status %d: %s", e.StatusCode, e.Message)
}

// IsTransient сообщает, стоит ли повторять запрос.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// classify переводит неуспешный ответ в типизированную ошибку.
func classify(status int, body errorBody) error {
	msg := body.Message
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return &TransientError{StatusCode: status, Err: errors.New(msg)}
	case status == http.StatusBadRequest && len(body.Errors) > 0:
		parts := make([]string, 0, len(body.Errors))
		for _, e := range body.Errors {
			parts = append(parts, e.Message)
		}
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(parts, "; "))
	}
	return &PermanentError{StatusCode: status, Message: msg}
}
