package generation

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/docubot/backend/services"
	"go.uber.org/zap"
)

// streamDone is the sentinel terminating an incremental response
const streamDone = "[DONE]"

// Config holds the chat completion provider configuration
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Message is a single chat message sent to the provider
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a chat completion request
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Result is a completed generation with provider-reported usage.
// CompletionTokens is zero when the provider did not report usage
// (the incremental mode usually does not).
type Result struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Client wraps a remote chat-completion capability in two modes:
// single-shot and incremental.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a generation client
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
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

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// Complete sends system+user messages and returns the full response.
// A 429 or 5xx is retried at most once before surfacing failure.
func (c *Client) Complete(ctx context.Context, req Request) (*Result, error) {
	resp, err := c.send(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.WrapExternal("failed to read completion response", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(raw, &chatResp); err != nil {
		return nil, services.WrapExternal("failed to decode completion response", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, services.WrapExternal("provider returned no choices", nil)
	}

	return &Result{
		Text:             chatResp.Choices[0].Message.Content,
		PromptTokens:     chatResp.Usage.PromptTokens,
		CompletionTokens: chatResp.Usage.CompletionTokens,
	}, nil
}

// Stream requests an incremental response and forwards each plain-text delta
// in order. The aggregated text is returned once the provider's terminating
// sentinel is observed. A delta callback error aborts the transport.
func (c *Client) Stream(ctx context.Context, req Request, onDelta func(delta string) error) (*Result, error) {
	resp, err := c.send(ctx, req, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var full strings.Builder
	var dataLines []string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			continue
		}
		if line != "" {
			// Other event fields carry nothing for this protocol.
			continue
		}
		done, err := c.consumeFrame(dataLines, &full, onDelta)
		dataLines = dataLines[:0]
		if err != nil {
			return nil, err
		}
		if done {
			return &Result{Text: full.String()}, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, services.NewDomainError(services.ErrorTypeStreaming, "stream aborted", err)
	}
	// Frame without a terminating blank line at EOF.
	if done, err := c.consumeFrame(dataLines, &full, onDelta); err != nil || done {
		if err != nil {
			return nil, err
		}
		return &Result{Text: full.String()}, nil
	}

	// Connection closed without the sentinel; return what was accumulated.
	return &Result{Text: full.String()}, nil
}

// consumeFrame decodes one event frame. Multiple data lines are joined with
// a newline before parsing. Reports whether the terminating sentinel was
// seen.
func (c *Client) consumeFrame(dataLines []string, full *strings.Builder, onDelta func(delta string) error) (bool, error) {
	payload := strings.TrimSpace(strings.Join(dataLines, "\n"))
	if payload == "" {
		return false, nil
	}
	if payload == streamDone {
		return true, nil
	}

	var chunk chatStreamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		c.logger.Warn("skipping malformed stream chunk", zap.Error(err))
		return false, nil
	}
	if len(chunk.Choices) == 0 {
		return false, nil
	}
	delta := chunk.Choices[0].Delta.Content
	if delta == "" {
		return false, nil
	}
	full.WriteString(delta)
	if err := onDelta(delta); err != nil {
		return false, services.NewDomainError(services.ErrorTypeStreaming, "stream aborted", err)
	}
	return false, nil
}

// send builds and executes the provider request, retrying a retryable
// failure at most once.
func (c *Client) send(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	if !c.Configured() {
		return nil, services.ErrProviderNotConfigured
	}

	payload := chatRequest{
		Model:    c.config.Model,
		Messages: req.Messages,
		Stream:   stream,
	}
	if req.Temperature > 0 {
		payload.Temperature = &req.Temperature
	}
	if req.MaxTokens > 0 {
		payload.MaxTokens = &req.MaxTokens
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, services.WrapInternal("failed to marshal completion request", err)
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying completion request", zap.Int("attempt", attempt))
			time.Sleep(time.Second)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(reqBody))
		if err != nil {
			return nil, services.WrapInternal("failed to create completion request", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		if stream {
			httpReq.Header.Set("Accept", "text/event-stream")
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = services.WrapExternal("completion request failed", err)
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		lastErr = classifyStatus(resp.StatusCode, raw)
		if !retryable(resp.StatusCode) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// classifyStatus maps a provider HTTP status to the domain error taxonomy
func classifyStatus(status int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	message := string(body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.NewDomainError(services.ErrorTypeConfiguration, "generation provider is not configured",
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
