package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/docubot/backend/models"
	"github.com/docubot/backend/repositories"
	"github.com/docubot/backend/services"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// KnowledgeRepository implements the repositories.KnowledgeRepository interface
type KnowledgeRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewKnowledgeRepository creates a new knowledge repository
func NewKnowledgeRepository(db *DB, logger *zap.Logger) repositories.KnowledgeRepository {
	return &KnowledgeRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new knowledge item
func (r *KnowledgeRepository) Create(ctx context.Context, item *models.KnowledgeItem) error {
	query := `
		INSERT INTO knowledge_items (id, chatbot_id, content, content_type, filename, processed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		item.ID,
		item.ChatbotID,
		item.Content,
		item.ContentType,
		item.Filename,
		item.Processed,
		item.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create knowledge item: %w", err)
	}

	r.logger.Debug("knowledge item created",
		zap.String("id", item.ID.String()),
		zap.String("chatbot_id", item.ChatbotID.String()))
	return nil
}

// GetByID retrieves a knowledge item by ID
func (r *KnowledgeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.KnowledgeItem, error) {
	query := `
		SELECT id, chatbot_id, content, content_type, filename, processed, created_at
		FROM knowledge_items
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	item := &models.KnowledgeItem{}

	err := executor.QueryRowContext(ctx, query, id).Scan(
		&item.ID,
		&item.ChatbotID,
		&item.Content,
		&item.ContentType,
		&item.Filename,
		&item.Processed,
		&item.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, services.ErrKnowledgeItemNotFound
		}
		return nil, fmt.Errorf("failed to get knowledge item: %w", err)
	}

	return item, nil
}

// GetUnprocessed retrieves all unprocessed knowledge items for a chatbot,
// oldest first so ingestion preserves upload order
func (r *KnowledgeRepository) GetUnprocessed(ctx context.Context, chatbotID uuid.UUID) ([]*models.KnowledgeItem, error) {
	query := `
		SELECT id, chatbot_id, content, content_type, filename, processed, created_at
		FROM knowledge_items
		WHERE chatbot_id = $1 AND processed = false
		ORDER BY created_at ASC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, chatbotID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed knowledge items: %w", err)
	}
	defer rows.Close()

	var items []*models.KnowledgeItem
	for rows.Next() {
		item := &models.KnowledgeItem{}
		if err := rows.Scan(
			&item.ID,
			&item.ChatbotID,
			&item.Content,
			&item.ContentType,
			&item.Filename,
			&item.Processed,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate knowledge items: %w", err)
	}

	return items, nil
}

// MarkProcessed marks a knowledge item as fully chunked and stored
func (r *KnowledgeRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE knowledge_items
		SET processed = true
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark knowledge item processed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return services.ErrKnowledgeItemNotFound
	}

	return nil
}
