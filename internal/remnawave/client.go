// Package remnawave HTTP-клиент панели Remnawave, которая является источником
// истины для выдачи VPN-доступа. Ошибки панели классифицируются здесь:
// вызывающий код получает ErrNotFound, ErrValidation,
// *TransientError или *PermanentError.
package remnawave

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/magabrotheeeer/remnashop/internal/lib/sl"
)

// Options параметры подключения к панели.
type Options struct {
	BaseURL         string
	Token           string
	Timeout         time.Duration
	RetryMaxElapsed time.Duration
}

// Client клиент API панели.
type Client struct {
	baseURL         string
	token           string
	retryMaxElapsed time.Duration
	httpClient      *http.Client
	log             *slog.Logger
}

// NewClient создаёт клиент панели.
func NewClient(opts Options, log *slog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		token:           opts.Token,
		retryMaxElapsed: opts.RetryMaxElapsed,
		httpClient:      &http.Client{Timeout: timeout},
		log:             log,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		buf = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do выполняет запрос с повторами временных ошибок и раскрывает конверт {response: ...}.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	operation := func() error {
		err := c.doOnce(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		if IsTransient(err) {
			c.log.Warn("remnawave request failed, retrying",
				slog.String("method", method),
				slog.String("path", path),
				sl.Err(err),
			)
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = c.retryMaxElapsed
	if c.retryMaxElapsed <= 0 {
		bo.MaxElapsedTime = 30 * time.Second
	}

	return backoff.Retry(operation, backoff.WithContext(bo, ctx))
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		return classify(resp.StatusCode, eb)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ListUsers возвращает страницу пользователей, начиная с позиции start.
func (c *Client) ListUsers(ctx context.Context, start, size int) (*UsersPage, error) {
	const op = "remnawave.ListUsers"

	q := url.Values{}
	q.Set("start", strconv.Itoa(start))
	q.Set("size", strconv.Itoa(size))

	var env envelope[UsersPage]
	if err := c.do(ctx, http.MethodGet, "/api/users?"+q.Encode(), nil, &env); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &env.Response, nil
}

// GetUserByUUID возвращает пользователя по UUID.
func (c *Client) GetUserByUUID(ctx context.Context, uuid string) (*User, error) {
	const op = "remnawave.GetUserByUUID"

	var env envelope[User]
	if err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(uuid), nil, &env); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &env.Response, nil
}

// GetUsersByTelegramID возвращает пользователей, привязанных к telegram id.
// Отсутствие пользователей не является ошибкой.
func (c *Client) GetUsersByTelegramID(ctx context.Context, telegramID int64) ([]User, error) {
	const op = "remnawave.GetUsersByTelegramID"

	var env envelope[[]User]
	err := c.do(ctx, http.MethodGet, "/api/users/by-telegram-id/"+strconv.FormatInt(telegramID, 10), nil, &env)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return env.Response, nil
}

// CreateUser создаёт пользователя на панели.
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	const op = "remnawave.CreateUser"

	var env envelope[User]
	if err := c.do(ctx, http.MethodPost, "/api/users", req, &env); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &env.Response, nil
}

// UpdateUser обновляет пользователя на панели.
func (c *Client) UpdateUser(ctx context.Context, req UpdateUserRequest) (*User, error) {
	const op = "remnawave.UpdateUser"

	var env envelope[User]
	if err := c.do(ctx, http.MethodPatch, "/api/users", req, &env); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &env.Response, nil
}

// DeleteUser удаляет пользователя. Операция необратима.
func (c *Client) DeleteUser(ctx context.Context, uuid string) error {
	const op = "remnawave.DeleteUser"

	var env envelope[deleteResult]
	if err := c.do(ctx, http.MethodDelete, "/api/users/"+url.PathEscape(uuid), nil, &env); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !env.Response.IsDeleted {
		return fmt.Errorf("%s: %w", op, &PermanentError{StatusCode: http.StatusOK, Message: "user was not deleted"})
	}
	return nil
}

// ListInternalSquads возвращает внутренние сквады панели.
func (c *Client) ListInternalSquads(ctx context.Context) ([]Squad, error) {
	const op = "remnawave.ListInternalSquads"

	var env envelope[internalSquads]
	if err := c.do(ctx, http.MethodGet, "/api/internal-squads", nil, &env); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return env.Response.InternalSquads, nil
}

// ListExternalSquads возвращает внешние сквады панели.
func (c *Client) ListExternalSquads(ctx context.Context) ([]Squad, error) {
	const op = "remnawave.ListExternalSquads"

	var env envelope[externalSquads]
	if err := c.do(ctx, http.MethodGet, "/api/external-squads", nil, &env); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return env.Response.ExternalSquads, nil
}

// GetStats возвращает системную статистику.
func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	const op = "remnawave.GetStats"

	var env envelope[Stats]
	if err := c.do(ctx, http.MethodGet, "/api/system/stats", nil, &env); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &env.Response, nil
}

// Ping проверяет доступность панели и валидность токена.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.GetStats(ctx)
	return err
}
