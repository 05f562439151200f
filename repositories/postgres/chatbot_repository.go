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

// ChatbotRepository implements the repositories.ChatbotRepository interface
type ChatbotRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewChatbotRepository creates a new chatbot repository
func NewChatbotRepository(db *DB, logger *zap.Logger) repositories.ChatbotRepository {
	return &ChatbotRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new chatbot
func (r *ChatbotRepository) Create(ctx context.Context, bot *models.Chatbot) error {
	query := `
		INSERT INTO chatbots (id, user_id, name, status, persona, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		bot.ID,
		bot.UserID,
		bot.Name,
		bot.Status,
		bot.Persona,
		bot.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create chatbot: %w", err)
	}

	r.logger.Debug("chatbot created", zap.String("id", bot.ID.String()), zap.String("name", bot.Name))
	return nil
}

// GetByID retrieves a chatbot by ID
func (r *ChatbotRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Chatbot, error) {
	query := `
		SELECT id, user_id, name, status, persona, created_at
		FROM chatbots
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	bot := &models.Chatbot{}

	err := executor.QueryRowContext(ctx, query, id).Scan(
		&bot.ID,
		&bot.UserID,
		&bot.Name,
		&bot.Status,
		&bot.Persona,
		&bot.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, services.ErrChatbotNotFound
		}
		return nil, fmt.Errorf("failed to get chatbot: %w", err)
	}

	return bot, nil
}

// GetByUserID retrieves all chatbots owned by a user
func (r *ChatbotRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Chatbot, error) {
	query := `
		SELECT id, user_id, name, status, persona, created_at
		FROM chatbots
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chatbots: %w", err)
	}
	defer rows.Close()

	var bots []*models.Chatbot
	for rows.Next() {
		bot := &models.Chatbot{}
		if err := rows.Scan(
			&bot.ID,
			&bot.UserID,
			&bot.Name,
			&bot.Status,
			&bot.Persona,
			&bot.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chatbot: %w", err)
		}
		bots = append(bots, bot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chatbots: %w", err)
	}

	return bots, nil
}

// UpdateStatus updates a chatbot's lifecycle status
func (r *ChatbotRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ChatbotStatus) error {
	query := `
		UPDATE chatbots
		SET status = $2
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update chatbot status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return services.ErrChatbotNotFound
	}

	r.logger.Debug("chatbot status updated",
		zap.String("id", id.String()),
		zap.String("status", string(status)))
	return nil
}

// Delete removes a chatbot and, through cascades, its knowledge store
func (r *ChatbotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM chatbots WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete chatbot: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return services.ErrChatbotNotFound
	}

	r.logger.Debug("chatbot deleted", zap.String("id", id.String()))
	return nil
}
