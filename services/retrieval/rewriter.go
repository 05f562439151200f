package retrieval

import (
	"context"
	"strings"

	"github.com/docubot/backend/services/generation"
	"go.uber.org/zap"
)

const rewriteInstruction = "Rewrite the user's message into a short, keyword-dense search query. Reply with the query only, no explanation."

// GenerationRewriter reformulates queries through an auxiliary chat
// completion call.
type GenerationRewriter struct {
	client *generation.Client
	logger *zap.Logger
}

// NewGenerationRewriter creates a rewriter backed by the generation client
func NewGenerationRewriter(client *generation.Client, logger *zap.Logger) *GenerationRewriter {
	return &GenerationRewriter{client: client, logger: logger}
}

// Rewrite returns a search-optimized form of the query
func (r *GenerationRewriter) Rewrite(ctx context.Context, query string) (string, error) {
	result, err := r.client.Complete(ctx, generation.Request{
		Messages: []generation.Message{
			{Role: "system", Content: rewriteInstruction},
			{Role: "user", Content: query},
		},
		MaxTokens: 60,
	})
	if err != nil {
		return "", err
	}
	rewritten := strings.TrimSpace(strings.Trim(strings.TrimSpace(result.Text), "\""))
	return rewritten, nil
}
