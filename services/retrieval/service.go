package retrieval

import (
	"context"

	"github.com/docubot/backend/models"
	"github.com/docubot/backend/repositories"
	"github.com/docubot/backend/services"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// fallbackLimit bounds the keyword fallback result count
const fallbackLimit = 3

// QueryEmbedder embeds a single query string
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, int, error)
}

// QueryRewriter reformulates a raw user message into a search-optimized
// query. Best-effort: callers fall back to the raw query on any failure.
type QueryRewriter interface {
	Rewrite(ctx context.Context, query string) (string, error)
}

// Options scope one retrieval call
type Options struct {
	Threshold float64
	TopK      int
}

// Result carries the retrieved context plus the embedding tokens consumed
// producing it.
type Result struct {
	Chunks          []models.RetrievedChunk
	EmbeddingTokens int
	UsedFallback    bool
}

// Service ranks stored chunks against a query. Vector search is the primary
// path; any transient failure or empty result falls back to keyword search
// over chunk content. Only configuration errors propagate.
type Service struct {
	embedder QueryEmbedder
	chunks   repositories.ChunkRepository
	rewriter QueryRewriter
	logger   *zap.Logger
}

// NewService creates a retrieval service. rewriter may be nil to disable
// query rewriting.
func NewService(embedder QueryEmbedder, chunks repositories.ChunkRepository, rewriter QueryRewriter, logger *zap.Logger) *Service {
	return &Service{
		embedder: embedder,
		chunks:   chunks,
		rewriter: rewriter,
		logger:   logger,
	}
}

// Retrieve returns ranked chunks for the query scoped to one chatbot,
// ordered by descending similarity with ties broken by ascending chunk
// index. Applied identically in streaming and non-streaming query modes.
func (s *Service) Retrieve(ctx context.Context, query string, chatbotID uuid.UUID, opts Options) (*Result, error) {
	searchQuery := s.rewriteOrIdentity(ctx, query)

	vector, tokens, err := s.embedder.EmbedQuery(ctx, searchQuery)
	if err != nil {
		if services.IsConfigurationError(err) {
			return nil, err
		}
		s.logger.Warn("query embedding failed, using keyword fallback",
			zap.String("chatbot_id", chatbotID.String()),
			zap.Error(err),
		)
		return s.fallback(ctx, chatbotID, query, 0)
	}

	chunks, err := s.chunks.SimilaritySearch(ctx, chatbotID, vector, opts.Threshold, opts.TopK)
	if err != nil {
		if services.IsConfigurationError(err) {
			return nil, err
		}
		s.logger.Warn("vector search failed, using keyword fallback",
			zap.String("chatbot_id", chatbotID.String()),
			zap.Error(err),
		)
		return s.fallback(ctx, chatbotID, query, tokens)
	}

	if len(chunks) == 0 {
		s.logger.Debug("vector search returned nothing, trying keyword fallback",
			zap.String("chatbot_id", chatbotID.String()),
		)
		return s.fallback(ctx, chatbotID, query, tokens)
	}

	return &Result{Chunks: chunks, EmbeddingTokens: tokens}, nil
}

// rewriteOrIdentity returns a search-optimized form of the query, or the
// query unchanged when rewriting is disabled or fails.
func (s *Service) rewriteOrIdentity(ctx context.Context, query string) string {
	if s.rewriter == nil {
		return query
	}
	rewritten, err := s.rewriter.Rewrite(ctx, query)
	if err != nil || rewritten == "" {
		if err != nil {
			s.logger.Debug("query rewriting failed, using raw query", zap.Error(err))
		}
		return query
	}
	return rewritten
}

// fallback runs the keyword search path. Its own failures are masked too:
// the caller gets an empty result and the prompt layer refuses from lack
// of context.
func (s *Service) fallback(ctx context.Context, chatbotID uuid.UUID, query string, tokens int) (*Result, error) {
	chunks, err := s.chunks.KeywordSearch(ctx, chatbotID, query, fallbackLimit)
	if err != nil {
		s.logger.Error("keyword fallback failed",
			zap.String("chatbot_id", chatbotID.String()),
			zap.Error(err),
		)
		return &Result{EmbeddingTokens: tokens, UsedFallback: true}, nil
	}
	return &Result{Chunks: chunks, EmbeddingTokens: tokens, UsedFallback: true}, nil
}
