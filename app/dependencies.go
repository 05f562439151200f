package app

import (
	"context"
	"fmt"

	"github.com/docubot/backend/config"
	"github.com/docubot/backend/repositories"
	"github.com/docubot/backend/repositories/postgres"
	"github.com/docubot/backend/services/chat"
	"github.com/docubot/backend/services/embedding"
	"github.com/docubot/backend/services/generation"
	"github.com/docubot/backend/services/ingestion"
	"github.com/docubot/backend/services/retrieval"
	"github.com/docubot/backend/services/usage"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Chatbots  repositories.ChatbotRepository
	Knowledge repositories.KnowledgeRepository
	Chunks    repositories.ChunkRepository
	Messages  repositories.MessageRepository
	Usage     repositories.UsageRepository
	TxManager repositories.TransactionManager

	// Provider clients
	EmbeddingClient  *embedding.Client
	GenerationClient *generation.Client

	// Services
	Accountant *usage.Accountant
	Retriever  *retrieval.Service
	Ingestion  *ingestion.Service
	Chat       *chat.Service
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()
	deps.initProviders(cfg)
	deps.initServices(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL connection and repository factory
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := d.DB.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Chatbots = repos.Chatbots
	d.Knowledge = repos.Knowledge
	d.Chunks = repos.Chunks
	d.Messages = repos.Messages
	d.Usage = repos.Usage
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

// initProviders initializes the embedding and generation provider clients
func (d *Dependencies) initProviders(cfg *config.Config) {
	d.EmbeddingClient = embedding.NewClient(embedding.Config{
		APIKey:  cfg.Providers.Embedding.APIKey,
		BaseURL: cfg.Providers.Embedding.BaseURL,
		Model:   cfg.Providers.Embedding.Model,
		Timeout: cfg.Providers.Embedding.Timeout,
	}, d.Logger)
	d.GenerationClient = generation.NewClient(generation.Config{
		APIKey:  cfg.Providers.Chat.APIKey,
		BaseURL: cfg.Providers.Chat.BaseURL,
		Model:   cfg.Providers.Chat.Model,
		Timeout: cfg.Providers.Chat.Timeout,
	}, d.Logger)

	if !d.EmbeddingClient.Configured() {
		d.Logger.Warn("embedding provider not configured, ingestion and retrieval are degraded")
	}
	if !d.GenerationClient.Configured() {
		d.Logger.Warn("generation provider not configured, chat is unavailable")
	}
}

// initServices wires the domain services
func (d *Dependencies) initServices(cfg *config.Config) {
	d.Accountant = usage.NewAccountant(d.Usage, usage.NewTiktokenCounter(cfg.Providers.Chat.Model), d.Logger)

	var rewriter retrieval.QueryRewriter
	if d.GenerationClient.Configured() {
		rewriter = retrieval.NewGenerationRewriter(d.GenerationClient, d.Logger)
	}
	d.Retriever = retrieval.NewService(d.EmbeddingClient, d.Chunks, rewriter, d.Logger)

	d.Ingestion = ingestion.NewService(
		d.Chatbots,
		d.Knowledge,
		d.Chunks,
		d.TxManager,
		d.EmbeddingClient,
		d.Accountant,
		d.Logger,
	)

	d.Chat = chat.NewService(
		d.Chatbots,
		d.Messages,
		d.Retriever,
		d.GenerationClient,
		d.Accountant,
		cfg.Providers.Chat.Model,
		cfg.RAG,
		d.Logger,
	)
	d.Chat.SetIdleWindow(cfg.Providers.Chat.IdleWindow)

	d.Logger.Info("services initialized")
}

// Close releases held resources
func (d *Dependencies) Close() error {
	if d.RepoFactory != nil {
		return d.RepoFactory.Close()
	}
	return nil
}
