package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/docubot/backend/services"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestHandleServiceError(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "not found maps to 404",
			err:        services.ErrChatbotNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "validation maps to 400",
			err:        services.ErrEmptyMessage,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "rate limit maps to 429",
			err:        services.ErrProviderRateLimited,
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "configuration maps to 503",
			err:        services.ErrProviderNotConfigured,
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "external maps to 502",
			err:        services.WrapExternal("provider request failed", errors.New("boom")),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "internal maps to 500",
			err:        services.WrapInternal("database write failed", errors.New("boom")),
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "retrieval maps to 500",
			err:        services.ErrVectorSearchFailed,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "plain errors map to 500",
			err:        errors.New("unexpected"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleServiceError(w, tt.err, logger)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}

	t.Run("nil error writes nothing", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleServiceError(w, nil, logger)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
	})
}
