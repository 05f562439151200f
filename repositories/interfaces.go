package repositories

import (
	"context"

	"github.com/docubot/backend/models"
	"github.com/google/uuid"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction.
	// Automatically commits if the function succeeds, rolls back on error.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// ChatbotRepository handles chatbot data operations
type ChatbotRepository interface {
	// Create creates a new chatbot
	Create(ctx context.Context, bot *models.Chatbot) error

	// GetByID retrieves a chatbot by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Chatbot, error)

	// GetByUserID retrieves all chatbots owned by a user
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Chatbot, error)

	// UpdateStatus transitions a chatbot's ingestion status
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ChatbotStatus) error

	// Delete deletes a chatbot and, via cascade, its knowledge items and chunks
	Delete(ctx context.Context, id uuid.UUID) error
}

// KnowledgeRepository handles knowledge item data operations
type KnowledgeRepository interface {
	// Create creates a new knowledge item
	Create(ctx context.Context, item *models.KnowledgeItem) error

	// GetByID retrieves a knowledge item by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.KnowledgeItem, error)

	// GetUnprocessed retrieves all unprocessed knowledge items for a chatbot
	GetUnprocessed(ctx context.Context, chatbotID uuid.UUID) ([]*models.KnowledgeItem, error)

	// MarkProcessed flips the processed flag after successful ingestion
	MarkProcessed(ctx context.Context, id uuid.UUID) error
}

// ChunkRepository handles chunk persistence and the two search paths
type ChunkRepository interface {
	// InsertBatch bulk-inserts chunk rows
	InsertBatch(ctx context.Context, chunks []*models.Chunk) error

	// SimilaritySearch returns up to topK chunks for the chatbot whose
	// embedding similarity to the query vector meets the threshold, ordered
	// by descending similarity then ascending chunk index. Chunks without an
	// embedding are invisible to this path.
	SimilaritySearch(ctx context.Context, chatbotID uuid.UUID, queryVector []float32, threshold float64, topK int) ([]models.RetrievedChunk, error)

	// KeywordSearch returns up to limit chunks for the chatbot whose content
	// matches the query terms, without similarity scores
	KeywordSearch(ctx context.Context, chatbotID uuid.UUID, query string, limit int) ([]models.RetrievedChunk, error)

	// DeleteByKnowledgeBaseID removes all chunks of one knowledge item
	DeleteByKnowledgeBaseID(ctx context.Context, knowledgeBaseID uuid.UUID) error

	// CountByChatbotID returns the number of stored chunks for a chatbot
	CountByChatbotID(ctx context.Context, chatbotID uuid.UUID) (int, error)
}

// MessageRepository handles chat message data operations
type MessageRepository interface {
	// Create persists a completed query/response pair
	Create(ctx context.Context, msg *models.ChatMessage) error

	// GetByThreadID retrieves a thread's messages in chronological order
	GetByThreadID(ctx context.Context, threadID uuid.UUID, limit int) ([]*models.ChatMessage, error)
}

// UsageRepository handles usage record accumulation
type UsageRepository interface {
	// Increment adds the record's metric value to the user's counter for the
	// record's period, creating the row when absent. Values accumulate and
	// are never overwritten.
	Increment(ctx context.Context, record *models.UsageRecord) error

	// GetPeriodTotal returns the accumulated value of a metric for a user
	// within the period containing now
	GetPeriodTotal(ctx context.Context, userID uuid.UUID, metricName string) (int64, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Chatbots  ChatbotRepository
	Knowledge KnowledgeRepository
	Chunks    ChunkRepository
	Messages  MessageRepository
	Usage     UsageRepository
}
