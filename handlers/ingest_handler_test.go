package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/docubot/backend/services"
	"github.com/docubot/backend/services/ingestion"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeIngestionService struct {
	processFn func(ctx context.Context, chatbotID uuid.UUID) (*ingestion.Summary, error)
	itemsFn   func(ctx context.Context, chatbotID uuid.UUID, items []ingestion.NewItem) (*ingestion.Summary, error)

	lastItems []ingestion.NewItem
}

func (f *fakeIngestionService) ProcessChatbot(ctx context.Context, chatbotID uuid.UUID) (*ingestion.Summary, error) {
	return f.processFn(ctx, chatbotID)
}

func (f *fakeIngestionService) ProcessItems(ctx context.Context, chatbotID uuid.UUID, items []ingestion.NewItem) (*ingestion.Summary, error) {
	f.lastItems = items
	return f.itemsFn(ctx, chatbotID, items)
}

func postIngest(t *testing.T, handler *IngestHandler, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	handler.HandleIngest(w, req)
	return w
}

func TestHandleIngest(t *testing.T) {
	logger := zaptest.NewLogger(t)
	chatbotID := uuid.New()

	t.Run("processes pending items", func(t *testing.T) {
		svc := &fakeIngestionService{
			processFn: func(ctx context.Context, id uuid.UUID) (*ingestion.Summary, error) {
				assert.Equal(t, chatbotID, id)
				return &ingestion.Summary{ItemsProcessed: 2, ChunksStored: 7, EmbeddingTokens: 310}, nil
			},
		}
		handler := NewIngestHandler(svc, logger)

		w := postIngest(t, handler, map[string]interface{}{
			"chatbot_id": chatbotID.String(),
		})

		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Data ingestion.Summary `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, 2, response.Data.ItemsProcessed)
		assert.Equal(t, 7, response.Data.ChunksStored)
	})

	t.Run("uploads new items before processing", func(t *testing.T) {
		svc := &fakeIngestionService{
			itemsFn: func(ctx context.Context, id uuid.UUID, items []ingestion.NewItem) (*ingestion.Summary, error) {
				return &ingestion.Summary{ItemsProcessed: 1, ChunksStored: 3}, nil
			},
		}
		handler := NewIngestHandler(svc, logger)

		w := postIngest(t, handler, map[string]interface{}{
			"chatbot_id": chatbotID.String(),
			"items": []map[string]interface{}{
				{"content": "Our refund policy is 30 days.", "content_type": "text"},
			},
		})

		assert.Equal(t, http.StatusOK, w.Code)
		require.Len(t, svc.lastItems, 1)
		assert.Equal(t, "Our refund policy is 30 days.", svc.lastItems[0].Content)
	})

	t.Run("rejects unknown content type", func(t *testing.T) {
		handler := NewIngestHandler(&fakeIngestionService{}, logger)

		w := postIngest(t, handler, map[string]interface{}{
			"chatbot_id": chatbotID.String(),
			"items": []map[string]interface{}{
				{"content": "hello", "content_type": "spreadsheet"},
			},
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("maps unconfigured provider to 503", func(t *testing.T) {
		svc := &fakeIngestionService{
			processFn: func(ctx context.Context, id uuid.UUID) (*ingestion.Summary, error) {
				return nil, services.ErrProviderNotConfigured
			},
		}
		handler := NewIngestHandler(svc, logger)

		w := postIngest(t, handler, map[string]interface{}{
			"chatbot_id": chatbotID.String(),
		})

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("maps exhausted rate limit to 429", func(t *testing.T) {
		svc := &fakeIngestionService{
			processFn: func(ctx context.Context, id uuid.UUID) (*ingestion.Summary, error) {
				return nil, services.ErrRateLimitExhausted
			},
		}
		handler := NewIngestHandler(svc, logger)

		w := postIngest(t, handler, map[string]interface{}{
			"chatbot_id": chatbotID.String(),
		})

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})
}
