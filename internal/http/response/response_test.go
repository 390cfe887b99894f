package response

import (
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quoteRequest struct {
	TelegramID int64  `validate:"required"`
	Days       int    `validate:"gt=0"`
	Currency   string `validate:"required,oneof=RUB XTR"`
}

func TestValidationError(t *testing.T) {
	err := validator.New().Struct(quoteRequest{Days: 0, Currency: "BTC"})
	require.Error(t, err)

	resp := ValidationError(err.(validator.ValidationErrors))

	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "field TelegramID is a required field")
	assert.Contains(t, resp.Error, "field Days must be greater than 0")
	assert.Contains(t, resp.Error, "field Currency must be one of [RUB XTR]")
}

func TestRejected(t *testing.T) {
	resp := Rejected("plan rejected", "name_taken")

	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "plan rejected", resp.Error)
	assert.Equal(t, "name_taken", resp.Reason)
}

func TestStatusOKWithData(t *testing.T) {
	resp := StatusOKWithData(map[string]int{"count": 1})

	assert.Equal(t, StatusOK, resp.Status)
	assert.Empty(t, resp.Error)
	assert.Equal(t, map[string]int{"count": 1}, resp.Data)
}
