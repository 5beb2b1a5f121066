package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_HTTPStatus(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
		code   string
	}{
		{RateLimitExceeded, http.StatusTooManyRequests, "rate_limit_exceeded"},
		{InvalidAPIKey, http.StatusUnauthorized, "invalid_api_key"},
		{InsufficientFunds, http.StatusPaymentRequired, "insufficient_funds"},
		{UserLocked, http.StatusForbidden, "user_locked"},
		{ProviderError, http.StatusBadGateway, "provider_error"},
		{UserAlreadyExists, http.StatusConflict, "user_already_exists"},
		{UserNotFound, http.StatusNotFound, "user_not_found"},
		{InvalidRequest, http.StatusBadRequest, "invalid_request"},
		{Internal, http.StatusInternalServerError, "internal_server_error"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := tt.kind.HTTPStatus(); got != tt.status {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.status)
			}
			if got := tt.kind.Code(); got != tt.code {
				t.Errorf("Code() = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestKindOf_ThroughWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("pipeline: %w", Wrap(ProviderError, cause, "upstream failed"))

	assert.Equal(t, ProviderError, KindOf(err))
	assert.True(t, Is(err, ProviderError))
	assert.False(t, Is(err, Internal))
	assert.ErrorIs(t, err, cause)
}

func TestKindOf_UnknownIsInternal(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("boom")))
	assert.Equal(t, Internal, From(errors.New("boom")).Kind)
}

func TestPublicMessage_HidesInternalCause(t *testing.T) {
	err := Wrap(Internal, errors.New("pq: relation does not exist"), "ledger append failed")
	assert.Equal(t, "internal server error", err.PublicMessage())

	userErr := New(InvalidRequest, "amount must be positive")
	assert.Equal(t, "amount must be positive", userErr.PublicMessage())
}

func TestNew_DefaultMessage(t *testing.T) {
	err := New(InsufficientFunds, "")
	assert.Equal(t, "insufficient funds", err.Message)
	assert.Equal(t, "insufficient_funds: insufficient funds", err.Error())
}
