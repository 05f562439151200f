package postgres

import (
	"context"
	"fmt"

	"github.com/docubot/backend/models"
	"github.com/docubot/backend/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageRepository implements the repositories.MessageRepository interface
type MessageRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *DB, logger *zap.Logger) repositories.MessageRepository {
	return &MessageRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists a completed query/response pair
func (r *MessageRepository) Create(ctx context.Context, msg *models.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, chatbot_id, thread_id, message, response, user_ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		msg.ID,
		msg.ChatbotID,
		msg.ThreadID,
		msg.Message,
		msg.Response,
		msg.UserIP,
		msg.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create chat message: %w", err)
	}

	r.logger.Debug("chat message created",
		zap.String("id", msg.ID.String()),
		zap.String("thread_id", msg.ThreadID.String()))
	return nil
}

// GetByThreadID retrieves a thread's messages in chronological order
func (r *MessageRepository) GetByThreadID(ctx context.Context, threadID uuid.UUID, limit int) ([]*models.ChatMessage, error) {
	query := `
		SELECT id, chatbot_id, thread_id, message, response, user_ip, created_at
		FROM chat_messages
		WHERE thread_id = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.ChatMessage
	for rows.Next() {
		msg := &models.ChatMessage{}
		if err := rows.Scan(
			&msg.ID,
			&msg.ChatbotID,
			&msg.ThreadID,
			&msg.Message,
			&msg.Response,
			&msg.UserIP,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat messages: %w", err)
	}

	return messages, nil
}
