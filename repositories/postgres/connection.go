package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/docubot/backend/config"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// InitSchema initializes the database schema. The pgvector extension must be
// installable by the connecting role.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		CREATE EXTENSION IF NOT EXISTS vector;

		-- Chatbots table
		CREATE TABLE IF NOT EXISTS chatbots (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			name VARCHAR(255) NOT NULL,
			status VARCHAR(50) NOT NULL DEFAULT 'pending',
			persona TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Knowledge items table
		CREATE TABLE IF NOT EXISTS knowledge_items (
			id UUID PRIMARY KEY,
			chatbot_id UUID NOT NULL REFERENCES chatbots(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			content_type VARCHAR(50) NOT NULL,
			filename VARCHAR(255),
			processed BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Chunks table. embedding is NULL only when the provider was
		-- unavailable at ingestion time.
		CREATE TABLE IF NOT EXISTS chunks (
			id UUID PRIMARY KEY,
			chatbot_id UUID NOT NULL REFERENCES chatbots(id) ON DELETE CASCADE,
			knowledge_base_id UUID NOT NULL REFERENCES knowledge_items(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			embedding vector(1536),
			chunk_index INTEGER NOT NULL,
			source_url TEXT,
			metadata JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(knowledge_base_id, chunk_index)
		);

		-- Chat messages table
		CREATE TABLE IF NOT EXISTS chat_messages (
			id UUID PRIMARY KEY,
			chatbot_id UUID NOT NULL REFERENCES chatbots(id) ON DELETE CASCADE,
			thread_id UUID NOT NULL,
			message TEXT NOT NULL,
			response TEXT NOT NULL,
			user_ip VARCHAR(45),
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Usage records table
		CREATE TABLE IF NOT EXISTS usage_records (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			metric_name VARCHAR(100) NOT NULL,
			metric_value BIGINT NOT NULL DEFAULT 0 CHECK (metric_value >= 0),
			period_start TIMESTAMP NOT NULL,
			period_end TIMESTAMP NOT NULL,
			metadata JSONB,
			UNIQUE(user_id, metric_name, period_start)
		);

		-- Indexes for performance
		CREATE INDEX IF NOT EXISTS idx_chatbots_user_id ON chatbots(user_id);
		CREATE INDEX IF NOT EXISTS idx_knowledge_items_chatbot_id ON knowledge_items(chatbot_id);
		CREATE INDEX IF NOT EXISTS idx_knowledge_items_processed ON knowledge_items(chatbot_id, processed);
		CREATE INDEX IF NOT EXISTS idx_chunks_chatbot_id ON chunks(chatbot_id);
		CREATE INDEX IF NOT EXISTS idx_chunks_knowledge_base_id ON chunks(knowledge_base_id);
		CREATE INDEX IF NOT EXISTS idx_chat_messages_chatbot_id ON chat_messages(chatbot_id);
		CREATE INDEX IF NOT EXISTS idx_chat_messages_thread_id ON chat_messages(thread_id);
		CREATE INDEX IF NOT EXISTS idx_usage_records_user_id ON usage_records(user_id);

		-- Approximate nearest neighbor index for similarity search
		CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON chunks
			USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}
