package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorIs(t *testing.T) {
	t.Run("matches type and message", func(t *testing.T) {
		err := WrapInternal("database write failed", errors.New("boom"))
		assert.True(t, errors.Is(err, NewDomainError(ErrorTypeInternal, "database write failed", nil)))
		assert.False(t, errors.Is(err, ErrChatbotNotFound))
	})

	t.Run("empty target message matches any message of the type", func(t *testing.T) {
		err := WrapError(ErrorTypeRateLimit, "provider returned 429", nil)
		assert.True(t, errors.Is(err, NewDomainError(ErrorTypeRateLimit, "", nil)))
	})

	t.Run("sentinels match themselves", func(t *testing.T) {
		assert.ErrorIs(t, ErrProviderRateLimited, ErrProviderRateLimited)
		assert.NotErrorIs(t, ErrProviderRateLimited, ErrRateLimitExhausted)
	})
}

func TestDomainErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapExternal("provider request failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "provider request failed")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestErrorTypeHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"not found", ErrChatbotNotFound, IsNotFoundError, true},
		{"validation", ErrEmptyMessage, IsValidationError, true},
		{"configuration", ErrProviderNotConfigured, IsConfigurationError, true},
		{"rate limit", ErrRateLimitExhausted, IsRateLimitError, true},
		{"retrieval", ErrVectorSearchFailed, IsRetrievalError, true},
		{"streaming", ErrStreamIdleTimeout, IsStreamingError, true},
		{"wrong category", ErrChatbotNotFound, IsValidationError, false},
		{"plain error", errors.New("boom"), IsInternalError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestGetErrorType(t *testing.T) {
	assert.Equal(t, ErrorTypeNotFound, GetErrorType(ErrChatbotNotFound))
	assert.Equal(t, ErrorType(""), GetErrorType(errors.New("boom")))
}

func TestGetErrorDetails(t *testing.T) {
	err := NewDomainError(ErrorTypeValidation, "invalid field", nil).
		WithDetail("field", "chatbot_id")

	details := GetErrorDetails(err)
	assert.Equal(t, "chatbot_id", details["field"])

	assert.Nil(t, GetErrorDetails(errors.New("boom")))
}
