package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/docubot/backend/services"
	"go.uber.org/zap"
)

// DefaultBatchSize is the number of texts embedded per provider call
const DefaultBatchSize = 20

// Config holds the embedding provider configuration
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// BatchResult carries the vectors and provider-reported usage for one batch
type BatchResult struct {
	Vectors      [][]float32
	PromptTokens int
}

// Client wraps a remote OpenAI-compatible embedding capability
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an embedding client. A missing API key is reported on
// first use, not here, so ingestion can degrade per item.
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

// Configured reports whether the provider credential is present
func (c *Client) Configured() bool {
	return c.config.APIKey != ""
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Usage embeddingUsage  `json:"usage"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// EmbedBatch embeds a batch of texts in one provider call. Vectors are
// returned in input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) (*BatchResult, error) {
	if len(texts) == 0 {
		return &BatchResult{}, nil
	}
	if !c.Configured() {
		return nil, services.ErrProviderNotConfigured
	}

	reqBody, err := json.Marshal(embeddingRequest{
		Input: texts,
		Model: c.config.Model,
	})
	if err != nil {
		return nil, services.WrapInternal("failed to marshal embedding request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, services.WrapInternal("failed to create embedding request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, services.WrapExternal("embedding request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.WrapExternal("failed to read embedding response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, body)
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, services.WrapExternal("failed to decode embedding response", err)
	}
	if embResp.Error != nil {
		return nil, services.WrapExternal(embResp.Error.Message, nil)
	}

	vectors := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index >= 0 && data.Index < len(vectors) {
			vectors[data.Index] = data.Embedding
		}
	}

	c.logger.Debug("embedded batch",
		zap.Int("texts", len(texts)),
		zap.Int("prompt_tokens", embResp.Usage.PromptTokens))

	return &BatchResult{
		Vectors:      vectors,
		PromptTokens: embResp.Usage.PromptTokens,
	}, nil
}

// EmbedQuery embeds a single query string
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, int, error) {
	result, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, 0, err
	}
	if len(result.Vectors) == 0 || result.Vectors[0] == nil {
		return nil, 0, services.WrapExternal("provider returned no embedding", nil)
	}
	return result.Vectors[0], result.PromptTokens, nil
}

// classifyStatus maps a provider HTTP status to the domain error taxonomy
func classifyStatus(status int, body []byte) error {
	var errResp struct {
		Error apiError `json:"error"`
	}
	message := string(body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.NewDomainError(services.ErrorTypeConfiguration, "embedding provider is not configured",
			fmt.Errorf("provider rejected credential: %s", message))
	case status == http.StatusTooManyRequests:
		return services.NewDomainError(services.ErrorTypeRateLimit, "provider rate limit hit",
			fmt.Errorf("status 429: %s", message))
	case status >= 500:
		return services.NewDomainError(services.ErrorTypeExternal, "provider unavailable",
			fmt.Errorf("status %d: %s", status, message))
	default:
		return services.NewDomainError(services.ErrorTypeExternal, "provider error",
			fmt.Errorf("status %d: %s", status, message))
	}
}
