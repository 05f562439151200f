package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// ErrInvalidContentType is returned for content types outside document|text
var ErrInvalidContentType = errors.New("content type must be document or text")

// Chunk represents one bounded slice of a knowledge item's text, the unit of
// retrieval. Embedding is nil only when the embedding provider was
// unavailable at ingestion time; such chunks are invisible to vector search
// but still reachable through keyword search.
type Chunk struct {
	ID              uuid.UUID        `json:"id" db:"id"`
	ChatbotID       uuid.UUID        `json:"chatbot_id" db:"chatbot_id"`
	KnowledgeBaseID uuid.UUID        `json:"knowledge_base_id" db:"knowledge_base_id"`
	Content         string           `json:"content" db:"content"`
	Embedding       *pgvector.Vector `json:"-" db:"embedding"`
	ChunkIndex      int              `json:"chunk_index" db:"chunk_index"`
	SourceURL       *string          `json:"source_url,omitempty" db:"source_url"`
	Metadata        json.RawMessage  `json:"metadata,omitempty" db:"metadata"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Chunk model
func (Chunk) TableName() string {
	return "chunks"
}

// NewChunk creates a chunk without an embedding. chunkIndex must be unique
// and contiguous within the knowledge item.
func NewChunk(chatbotID, knowledgeBaseID uuid.UUID, content string, chunkIndex int) *Chunk {
	return &Chunk{
		ID:              uuid.New(),
		ChatbotID:       chatbotID,
		KnowledgeBaseID: knowledgeBaseID,
		Content:         content,
		ChunkIndex:      chunkIndex,
		CreatedAt:       time.Now(),
	}
}

// SetEmbedding attaches the embedding vector, moving the chunk from the
// unembedded to the embedded variant.
func (c *Chunk) SetEmbedding(vec []float32) {
	v := pgvector.NewVector(vec)
	c.Embedding = &v
}

// Embedded reports whether the chunk carries an embedding vector
func (c *Chunk) Embedded() bool {
	return c.Embedding != nil
}

// RetrievedChunk is the ephemeral, per-query projection of a chunk returned
// by the retriever. It is never persisted.
type RetrievedChunk struct {
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
	ChunkIndex int     `json:"chunk_index"`
	SourceURL  *string `json:"source_url,omitempty"`
}
