package ingestion

import (
	"context"
	"time"

	"github.com/docubot/backend/models"
	"github.com/docubot/backend/repositories"
	"github.com/docubot/backend/services"
	"github.com/docubot/backend/services/chunker"
	"github.com/docubot/backend/services/embedding"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// insertBatchSize bounds rows per bulk insert
	insertBatchSize = 100

	// interBatchDelay is the pause between successful embedding batches
	interBatchDelay = 500 * time.Millisecond

	// rateLimitBackoff is the initial backoff after a 429; it doubles on
	// each retry of the same batch
	rateLimitBackoff = 10 * time.Second

	// maxBatchAttempts caps retries of one embedding batch before the
	// owning knowledge item is failed
	maxBatchAttempts = 5
)

// Embedder is the slice of the embedding client the orchestrator needs
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) (*embedding.BatchResult, error)
	Configured() bool
}

// UsageRecorder records embedding token consumption
type UsageRecorder interface {
	RecordEmbedding(ctx context.Context, userID, chatbotID uuid.UUID, promptTokens int) error
}

// Summary reports the outcome of one ingestion job
type Summary struct {
	ItemsProcessed  int `json:"items_processed"`
	ItemsFailed     int `json:"items_failed"`
	ItemsDegraded   int `json:"items_degraded"`
	ChunksStored    int `json:"chunks_stored"`
	EmbeddingTokens int `json:"embedding_tokens"`
}

// Service drives the ingestion pipeline: chunk each knowledge item, embed
// the chunks in bounded batches, bulk-insert the rows, then flip the item
// to processed. Items are handled sequentially; chunk index assignment is
// deterministic.
type Service struct {
	chatbots   repositories.ChatbotRepository
	knowledge  repositories.KnowledgeRepository
	chunks     repositories.ChunkRepository
	tx         repositories.TransactionManager
	embedder   Embedder
	usage      UsageRecorder
	chunkOpts  chunker.Options
	batchSize  int
	logger     *zap.Logger

	// sleep is replaceable in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService creates an ingestion service
func NewService(
	chatbots repositories.ChatbotRepository,
	knowledge repositories.KnowledgeRepository,
	chunks repositories.ChunkRepository,
	tx repositories.TransactionManager,
	embedder Embedder,
	usage UsageRecorder,
	logger *zap.Logger,
) *Service {
	return &Service{
		chatbots:  chatbots,
		knowledge: knowledge,
		chunks:    chunks,
		tx:        tx,
		embedder:  embedder,
		usage:     usage,
		chunkOpts: chunker.DefaultOptions(),
		batchSize: embedding.DefaultBatchSize,
		logger:    logger,
		sleep:     sleepCtx,
	}
}

// ProcessChatbot ingests every unprocessed knowledge item of the chatbot.
// A missing provider credential at the start is fatal for the whole call;
// per-item failures are recorded in the summary and do not stop the job.
func (s *Service) ProcessChatbot(ctx context.Context, chatbotID uuid.UUID) (*Summary, error) {
	if !s.embedder.Configured() {
		return nil, services.ErrProviderNotConfigured
	}

	bot, err := s.chatbots.GetByID(ctx, chatbotID)
	if err != nil {
		return nil, err
	}

	items, err := s.knowledge.GetUnprocessed(ctx, chatbotID)
	if err != nil {
		return nil, services.WrapInternal("failed to load knowledge items", err)
	}

	summary := &Summary{}
	for _, item := range items {
		outcome, err := s.processItem(ctx, bot, item)
		if err != nil {
			summary.ItemsFailed++
			s.logger.Error("knowledge item failed",
				zap.String("item_id", item.ID.String()),
				zap.String("chatbot_id", chatbotID.String()),
				zap.Error(err),
			)
			continue
		}
		summary.ItemsProcessed++
		summary.ChunksStored += outcome.chunksStored
		summary.EmbeddingTokens += outcome.tokens
		if outcome.degraded {
			summary.ItemsDegraded++
		}
	}

	if summary.EmbeddingTokens > 0 {
		if err := s.usage.RecordEmbedding(ctx, bot.UserID, chatbotID, summary.EmbeddingTokens); err != nil {
			s.logger.Error("failed to record embedding usage", zap.Error(err))
		}
	}

	status := models.ChatbotStatusReady
	if len(items) > 0 && summary.ItemsProcessed == 0 {
		status = models.ChatbotStatusFailed
	}
	if err := s.chatbots.UpdateStatus(ctx, chatbotID, status); err != nil {
		s.logger.Error("failed to update chatbot status", zap.Error(err))
	}

	s.logger.Info("ingestion finished",
		zap.String("chatbot_id", chatbotID.String()),
		zap.Int("items_processed", summary.ItemsProcessed),
		zap.Int("items_failed", summary.ItemsFailed),
		zap.Int("chunks_stored", summary.ChunksStored),
	)
	return summary, nil
}

// NewItem is one element of a pre-collected ingestion batch
type NewItem struct {
	Content     string             `json:"content"`
	ContentType models.ContentType `json:"content_type"`
	Filename    *string            `json:"filename,omitempty"`
}

// ProcessItems stores a pre-collected batch of knowledge items for the
// chatbot and then runs the regular ingestion pass over everything still
// unprocessed.
func (s *Service) ProcessItems(ctx context.Context, chatbotID uuid.UUID, items []NewItem) (*Summary, error) {
	for _, in := range items {
		item := models.NewKnowledgeItem(chatbotID, in.Content, in.ContentType, in.Filename)
		if err := item.Validate(); err != nil {
			return nil, services.WrapError(services.ErrorTypeValidation, "invalid knowledge item", err)
		}
		if err := s.knowledge.Create(ctx, item); err != nil {
			return nil, services.WrapInternal("failed to store knowledge item", err)
		}
	}
	return s.ProcessChatbot(ctx, chatbotID)
}

type itemOutcome struct {
	chunksStored int
	tokens       int
	degraded     bool
}

// processItem runs one knowledge item through chunking, embedding and
// storage. The item is never left partially stored: all of its chunk rows
// land in one transaction together with the processed flag flip.
func (s *Service) processItem(ctx context.Context, bot *models.Chatbot, item *models.KnowledgeItem) (*itemOutcome, error) {
	pieces := chunker.Split(item.Content, s.chunkOpts)
	chunker.ValidateSizes(pieces, s.chunkOpts, s.logger)

	rows := make([]*models.Chunk, len(pieces))
	for i, piece := range pieces {
		rows[i] = models.NewChunk(bot.ID, item.ID, piece, i)
	}

	outcome := &itemOutcome{}
	for start := 0; start < len(rows); start += s.batchSize {
		end := start + s.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		texts := make([]string, len(batch))
		for i, row := range batch {
			texts[i] = row.Content
		}

		result, err := s.embedBatch(ctx, texts)
		if err != nil {
			if services.IsConfigurationError(err) {
				// Provider went away mid-item: store the remaining chunks
				// without embeddings so keyword search still sees them.
				s.logger.Warn("embedding provider unavailable, storing item unembedded",
					zap.String("item_id", item.ID.String()),
				)
				outcome.degraded = true
				break
			}
			return nil, err
		}

		for i, row := range batch {
			row.SetEmbedding(result.Vectors[i])
		}
		outcome.tokens += result.PromptTokens

		if end < len(rows) {
			if err := s.sleep(ctx, interBatchDelay); err != nil {
				return nil, err
			}
		}
	}

	if err := s.storeItem(ctx, item, rows); err != nil {
		return nil, err
	}
	outcome.chunksStored = len(rows)
	return outcome, nil
}

// storeItem bulk-inserts the chunk rows in sub-batches and flips the
// processed flag, all within one transaction. A failed sub-batch aborts
// the whole item.
func (s *Service) storeItem(ctx context.Context, item *models.KnowledgeItem, rows []*models.Chunk) error {
	return s.tx.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
		for start := 0; start < len(rows); start += insertBatchSize {
			end := start + insertBatchSize
			if end > len(rows) {
				end = len(rows)
			}
			if err := s.chunks.InsertBatch(txCtx, rows[start:end]); err != nil {
				return services.WrapInternal("failed to insert chunk batch", err)
			}
		}
		if err := s.knowledge.MarkProcessed(txCtx, item.ID); err != nil {
			return services.WrapInternal("failed to mark item processed", err)
		}
		return nil
	})
}

// embedBatch embeds one batch with bounded rate-limit retries. Each 429
// doubles the backoff; after the attempt cap the batch fails with
// ErrRateLimitExhausted and the owning item is failed rather than looping
// indefinitely.
func (s *Service) embedBatch(ctx context.Context, texts []string) (*embedding.BatchResult, error) {
	backoff := rateLimitBackoff
	for attempt := 1; ; attempt++ {
		result, err := s.embedder.EmbedBatch(ctx, texts)
		if err == nil {
			return result, nil
		}
		if !services.IsRateLimitError(err) {
			return nil, err
		}
		if attempt >= maxBatchAttempts {
			return nil, services.ErrRateLimitExhausted
		}
		s.logger.Warn("embedding batch rate limited",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
		)
		if err := s.sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
