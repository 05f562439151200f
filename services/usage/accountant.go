package usage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/docubot/backend/models"
	"github.com/docubot/backend/repositories"
	"github.com/docubot/backend/services"
	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// perMessageOverhead is the fixed token overhead the provider adds for each
// chat message's framing.
const perMessageOverhead = 4

// TokenCounter estimates the token count of a piece of text
type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens with the model's actual tokenizer, falling
// back to the chars/4 heuristic when the encoding is unavailable (offline,
// unknown model).
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter creates a counter for the given model
func NewTiktokenCounter(model string) *TiktokenCounter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return &TiktokenCounter{}
	}
	return &TiktokenCounter{encoding: enc}
}

// Count returns the token count of text
func (c *TiktokenCounter) Count(text string) int {
	if c.encoding == nil {
		return HeuristicCount(text)
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// HeuristicCount is the chars/4 estimate used when no tokenizer is available
func HeuristicCount(text string) int {
	return len(text) / 4
}

// Accountant records token consumption per completed request. It is
// independent of message persistence: a failed message insert never skips
// the usage increment, and vice versa.
type Accountant struct {
	usage   repositories.UsageRepository
	counter TokenCounter
	logger  *zap.Logger
}

// NewAccountant creates a usage accountant
func NewAccountant(usage repositories.UsageRepository, counter TokenCounter, logger *zap.Logger) *Accountant {
	if counter == nil {
		counter = &TiktokenCounter{}
	}
	return &Accountant{usage: usage, counter: counter, logger: logger}
}

// ChatUsage describes one completed generation call
type ChatUsage struct {
	UserID           uuid.UUID
	ChatbotID        uuid.UUID
	Model            string
	Messages         []string
	Response         string
	PromptTokens     int
	CompletionTokens int
}

// RecordChat records exactly one chat token increment for a completed
// generation call. Provider-reported counts are preferred; estimates fill
// the gaps (prompt text with per-message overhead, response length for
// completions).
func (a *Accountant) RecordChat(ctx context.Context, u ChatUsage) error {
	prompt := u.PromptTokens
	if prompt == 0 {
		for _, m := range u.Messages {
			prompt += a.counter.Count(m) + perMessageOverhead
		}
	}
	completion := u.CompletionTokens
	if completion == 0 {
		completion = a.counter.Count(u.Response)
	}

	total := int64(prompt + completion)
	if total <= 0 {
		return nil
	}

	metadata, _ := json.Marshal(map[string]string{
		"chatbot_id": u.ChatbotID.String(),
		"model":      u.Model,
	})
	if err := a.increment(ctx, u.UserID, models.MetricChatTokens, total, metadata); err != nil {
		return err
	}

	a.logger.Debug("chat usage recorded",
		zap.String("user_id", u.UserID.String()),
		zap.Int("prompt_tokens", prompt),
		zap.Int("completion_tokens", completion),
	)
	return nil
}

// RecordEmbedding records token consumption for an embedding call during
// ingestion.
func (a *Accountant) RecordEmbedding(ctx context.Context, userID, chatbotID uuid.UUID, promptTokens int) error {
	if promptTokens <= 0 {
		return nil
	}
	metadata, _ := json.Marshal(map[string]string{"chatbot_id": chatbotID.String()})
	return a.increment(ctx, userID, models.MetricEmbeddingTokens, int64(promptTokens), metadata)
}

func (a *Accountant) increment(ctx context.Context, userID uuid.UUID, metric string, value int64, metadata json.RawMessage) error {
	start, end := models.CurrentPeriod(time.Now().UTC())
	record := &models.UsageRecord{
		ID:          uuid.New(),
		UserID:      userID,
		MetricName:  metric,
		MetricValue: value,
		PeriodStart: start,
		PeriodEnd:   end,
		Metadata:    metadata,
	}
	if err := a.usage.Increment(ctx, record); err != nil {
		return services.WrapInternal("failed to record usage", err)
	}
	return nil
}
