package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/docubot/backend/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	client := NewClient(Config{
		APIKey:  "test-key",
		BaseURL: ts.URL,
		Model:   "text-embedding-3-small",
	}, zaptest.NewLogger(t))
	return client, ts
}

func TestEmbedBatch(t *testing.T) {
	t.Run("returns vectors in input order with usage", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/embeddings", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var req embeddingRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Len(t, req.Input, 2)

			// Deliberately out of order; the client must reorder by index.
			resp := embeddingResponse{
				Data: []embeddingData{
					{Index: 1, Embedding: []float32{0.3, 0.4}},
					{Index: 0, Embedding: []float32{0.1, 0.2}},
				},
				Usage: embeddingUsage{PromptTokens: 7, TotalTokens: 7},
			}
			_ = json.NewEncoder(w).Encode(resp)
		})

		result, err := client.EmbedBatch(context.Background(), []string{"alpha", "beta"})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, result.Vectors)
		assert.Equal(t, 7, result.PromptTokens)
	})

	t.Run("empty batch makes no request", func(t *testing.T) {
		called := false
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			called = true
		})

		result, err := client.EmbedBatch(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, result.Vectors)
		assert.False(t, called)
	})

	t.Run("missing credential is a configuration error", func(t *testing.T) {
		client := NewClient(Config{BaseURL: "http://localhost:1", Model: "m"}, zaptest.NewLogger(t))
		_, err := client.EmbedBatch(context.Background(), []string{"text"})
		assert.True(t, services.IsConfigurationError(err))
	})

	t.Run("429 is a rate limit error", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit_error"}}`))
		})

		_, err := client.EmbedBatch(context.Background(), []string{"text"})
		assert.True(t, services.IsRateLimitError(err))
	})

	t.Run("401 is a configuration error", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
		})

		_, err := client.EmbedBatch(context.Background(), []string{"text"})
		assert.True(t, services.IsConfigurationError(err))
		assert.Contains(t, err.Error(), "embedding provider is not configured")
	})

	t.Run("5xx is an external error", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := client.EmbedBatch(context.Background(), []string{"text"})
		assert.True(t, services.IsExternalError(err))
	})
}

func TestEmbedQuery(t *testing.T) {
	t.Run("single vector", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			resp := embeddingResponse{
				Data:  []embeddingData{{Index: 0, Embedding: []float32{1, 2, 3}}},
				Usage: embeddingUsage{PromptTokens: 3},
			}
			_ = json.NewEncoder(w).Encode(resp)
		})

		vec, tokens, err := client.EmbedQuery(context.Background(), "question")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2, 3}, vec)
		assert.Equal(t, 3, tokens)
	})

	t.Run("empty data is an external error", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(embeddingResponse{})
		})

		_, _, err := client.EmbedQuery(context.Background(), "question")
		assert.True(t, services.IsExternalError(err))
	})
}
