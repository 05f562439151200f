package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/docubot/backend/models"
	"github.com/docubot/backend/repositories"
	"github.com/docubot/backend/services"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

// ChunkRepository implements the repositories.ChunkRepository interface
type ChunkRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewChunkRepository creates a new chunk repository
func NewChunkRepository(db *DB, logger *zap.Logger) repositories.ChunkRepository {
	return &ChunkRepository{
		db:     db,
		logger: logger,
	}
}

// InsertBatch bulk-inserts chunk rows using a single multi-row statement.
// A nil embedding is stored as NULL.
func (r *ChunkRepository) InsertBatch(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	const columns = 9
	placeholders := make([]string, 0, len(chunks))
	args := make([]interface{}, 0, len(chunks)*columns)

	for i, chunk := range chunks {
		base := i * columns
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9))
		args = append(args,
			chunk.ID,
			chunk.ChatbotID,
			chunk.KnowledgeBaseID,
			chunk.Content,
			chunk.Embedding,
			chunk.ChunkIndex,
			chunk.SourceURL,
			chunk.Metadata,
			chunk.CreatedAt,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO chunks (id, chatbot_id, knowledge_base_id, content, embedding, chunk_index, source_url, metadata, created_at)
		VALUES %s
	`, strings.Join(placeholders, ", "))

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	r.logger.Debug("chunks inserted", zap.Int("count", len(chunks)))
	return nil
}

// SimilaritySearch finds the chunks closest to the query vector by cosine
// similarity. Rows with a NULL embedding never match.
func (r *ChunkRepository) SimilaritySearch(ctx context.Context, chatbotID uuid.UUID, queryVector []float32, threshold float64, topK int) ([]models.RetrievedChunk, error) {
	query := `
		SELECT content, 1 - (embedding <=> $2) AS similarity, chunk_index, source_url
		FROM chunks
		WHERE chatbot_id = $1
			AND embedding IS NOT NULL
			AND 1 - (embedding <=> $2) >= $3
		ORDER BY similarity DESC, chunk_index ASC
		LIMIT $4
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, chatbotID, pgvector.NewVector(queryVector), threshold, topK)
	if err != nil {
		return nil, services.WrapError(services.ErrorTypeRetrieval, "vector search failed", err)
	}
	defer rows.Close()

	chunks, err := scanRetrievedChunks(rows, true)
	if err != nil {
		return nil, services.WrapError(services.ErrorTypeRetrieval, "vector search failed", err)
	}

	return chunks, nil
}

// KeywordSearch matches chunk content against the query terms. Results carry
// no similarity score and are returned in stored order.
func (r *ChunkRepository) KeywordSearch(ctx context.Context, chatbotID uuid.UUID, query string, limit int) ([]models.RetrievedChunk, error) {
	patterns := keywordPatterns(query)
	if len(patterns) == 0 {
		return nil, nil
	}

	stmt := `
		SELECT content, chunk_index, source_url
		FROM chunks
		WHERE chatbot_id = $1
			AND content ILIKE ANY($2)
		ORDER BY knowledge_base_id, chunk_index ASC
		LIMIT $3
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, stmt, chatbotID, pq.Array(patterns), limit)
	if err != nil {
		return nil, services.WrapError(services.ErrorTypeRetrieval, "keyword search failed", err)
	}
	defer rows.Close()

	chunks, err := scanRetrievedChunks(rows, false)
	if err != nil {
		return nil, services.WrapError(services.ErrorTypeRetrieval, "keyword search failed", err)
	}

	return chunks, nil
}

// DeleteByKnowledgeBaseID removes all chunks of one knowledge item
func (r *ChunkRepository) DeleteByKnowledgeBaseID(ctx context.Context, knowledgeBaseID uuid.UUID) error {
	query := `DELETE FROM chunks WHERE knowledge_base_id = $1`

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, query, knowledgeBaseID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	r.logger.Debug("chunks deleted", zap.String("knowledge_base_id", knowledgeBaseID.String()))
	return nil
}

// CountByChatbotID returns the number of stored chunks for a chatbot
func (r *ChunkRepository) CountByChatbotID(ctx context.Context, chatbotID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM chunks WHERE chatbot_id = $1`

	executor := GetExecutor(ctx, r.db)
	var count int
	if err := executor.QueryRowContext(ctx, query, chatbotID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}

	return count, nil
}

// scanRetrievedChunks reads search result rows. withSimilarity selects the
// column layout of the two search queries.
func scanRetrievedChunks(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
}, withSimilarity bool) ([]models.RetrievedChunk, error) {
	var chunks []models.RetrievedChunk
	for rows.Next() {
		var chunk models.RetrievedChunk
		var err error
		if withSimilarity {
			err = rows.Scan(&chunk.Content, &chunk.Similarity, &chunk.ChunkIndex, &chunk.SourceURL)
		} else {
			err = rows.Scan(&chunk.Content, &chunk.ChunkIndex, &chunk.SourceURL)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunks: %w", err)
	}

	return chunks, nil
}

// keywordPatterns converts a free-text query into ILIKE patterns, one per
// word of three or more characters
func keywordPatterns(query string) []string {
	var patterns []string
	for _, word := range strings.Fields(query) {
		word = strings.Trim(word, `.,;:!?"'`)
		if len(word) < 3 {
			continue
		}
		patterns = append(patterns, "%"+word+"%")
	}
	if len(patterns) == 0 {
		if trimmed := strings.TrimSpace(query); trimmed != "" {
			patterns = append(patterns, "%"+trimmed+"%")
		}
	}
	return patterns
}
