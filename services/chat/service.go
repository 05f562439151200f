package chat

import (
	"context"
	"strings"
	"time"

	"github.com/docubot/backend/models"
	"github.com/docubot/backend/repositories"
	"github.com/docubot/backend/services"
	"github.com/docubot/backend/services/generation"
	"github.com/docubot/backend/services/prompt"
	"github.com/docubot/backend/services/retrieval"
	"github.com/docubot/backend/services/stream"
	"github.com/docubot/backend/services/usage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultIdleWindow bounds how long a streamed response may go without a
// delta before the transport is aborted.
const DefaultIdleWindow = 30 * time.Second

// Retriever is the slice of the retrieval service the orchestrator needs
type Retriever interface {
	Retrieve(ctx context.Context, query string, chatbotID uuid.UUID, opts retrieval.Options) (*retrieval.Result, error)
}

// Generator is the slice of the generation client the orchestrator needs
type Generator interface {
	Complete(ctx context.Context, req generation.Request) (*generation.Result, error)
	Stream(ctx context.Context, req generation.Request, onDelta func(delta string) error) (*generation.Result, error)
}

// UsageRecorder records chat token consumption
type UsageRecorder interface {
	RecordChat(ctx context.Context, u usage.ChatUsage) error
}

// Emitter is the outward event surface of a streamed response.
// stream.Writer satisfies it.
type Emitter interface {
	Ready(threadID string) error
	Delta(text string) error
	End(threadID, text string) error
	Error(message string) error
}

// Request is one user query against a chatbot
type Request struct {
	ChatbotID uuid.UUID
	Message   string
	ThreadID  uuid.UUID
	UserIP    string
}

// Response is the non-streaming reply
type Response struct {
	Response         string                  `json:"response"`
	Sources          []models.RetrievedChunk `json:"sources,omitempty"`
	CitationsEnabled bool                    `json:"citations_enabled"`
	ThreadID         uuid.UUID               `json:"thread_id"`
}

// Service orchestrates one query: ready-status lookup, trivial short-circuit,
// retrieval, prompt assembly, generation, usage accounting and message
// persistence. Queries are stateless; nothing is shared between concurrent
// requests.
type Service struct {
	chatbots   repositories.ChatbotRepository
	messages   repositories.MessageRepository
	retriever  Retriever
	prompts    *prompt.Builder
	generator  Generator
	usage      UsageRecorder
	model      string
	ragConfig  models.RAGConfig
	idleWindow time.Duration
	selector   Selector
	logger     *zap.Logger
}

// NewService creates a chat service
func NewService(
	chatbots repositories.ChatbotRepository,
	messages repositories.MessageRepository,
	retriever Retriever,
	generator Generator,
	usageRecorder UsageRecorder,
	model string,
	ragConfig models.RAGConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		chatbots:   chatbots,
		messages:   messages,
		retriever:  retriever,
		prompts:    prompt.NewBuilder(),
		generator:  generator,
		usage:      usageRecorder,
		model:      model,
		ragConfig:  ragConfig,
		idleWindow: DefaultIdleWindow,
		selector:   RandomSelector{},
		logger:     logger,
	}
}

// SetIdleWindow overrides the per-stream idle timeout. Zero disables it.
func (s *Service) SetIdleWindow(window time.Duration) {
	s.idleWindow = window
}

// prepared is the shared front half of both query modes
type prepared struct {
	bot      *models.Chatbot
	threadID uuid.UUID
	trivial  bool
	system   string
	sources  []models.RetrievedChunk
}

// prepare validates the request, applies the trivial-query short-circuit and
// assembles the system prompt from retrieved context. Retrieval behaves
// identically in both modes, including query rewriting.
func (s *Service) prepare(ctx context.Context, req Request) (*prepared, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, services.ErrEmptyMessage
	}

	bot, err := s.chatbots.GetByID(ctx, req.ChatbotID)
	if err != nil {
		return nil, err
	}
	if !bot.IsReady() {
		return nil, services.ErrChatbotNotReady
	}

	p := &prepared{bot: bot, threadID: req.ThreadID}
	if p.threadID == uuid.Nil {
		p.threadID = uuid.New()
	}

	if s.prompts.IsTrivial(req.Message, s.ragConfig) {
		p.trivial = true
		return p, nil
	}

	result, err := s.retriever.Retrieve(ctx, req.Message, req.ChatbotID, retrieval.Options{
		Threshold: s.ragConfig.SimilarityThreshold,
		TopK:      s.ragConfig.MaxRetrievedChunks,
	})
	if err != nil {
		return nil, err
	}

	p.sources = result.Chunks
	p.system = s.prompts.Build(bot.Name, result.Chunks, s.ragConfig, bot.Persona)
	return p, nil
}

// Query answers one request in single-shot mode
func (s *Service) Query(ctx context.Context, req Request) (*Response, error) {
	p, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		CitationsEnabled: s.ragConfig.EnableCitations,
		ThreadID:         p.threadID,
	}

	if p.trivial {
		resp.Response = prompt.ClarificationText
		s.persist(ctx, req, p.threadID, resp.Response)
		return resp, nil
	}

	result, err := s.generator.Complete(ctx, generation.Request{
		Messages: []generation.Message{
			{Role: "system", Content: p.system},
			{Role: "user", Content: req.Message},
		},
		Temperature: s.ragConfig.Temperature,
		MaxTokens:   s.ragConfig.MaxTokens,
	})
	if err != nil {
		if services.IsRateLimitError(err) {
			resp.Response = s.busyResponse()
			s.persist(ctx, req, p.threadID, resp.Response)
			return resp, nil
		}
		return nil, err
	}

	resp.Response = result.Text
	if s.ragConfig.EnableCitations {
		resp.Sources = p.sources
	}

	s.account(ctx, p, req, result.Text, result.PromptTokens, result.CompletionTokens)
	s.persist(ctx, req, p.threadID, result.Text)
	return resp, nil
}

// StreamQuery answers one request in incremental mode. Errors before the
// ready event are returned for the transport to map onto a status code;
// failures after that point are emitted as error events and the partial
// response is still persisted and accounted.
func (s *Service) StreamQuery(ctx context.Context, req Request, emitter Emitter) error {
	p, err := s.prepare(ctx, req)
	if err != nil {
		return err
	}

	threadID := p.threadID.String()
	if err := emitter.Ready(threadID); err != nil {
		return err
	}

	if p.trivial {
		if err := emitter.Delta(prompt.ClarificationText); err != nil {
			return err
		}
		s.persist(ctx, req, p.threadID, prompt.ClarificationText)
		return emitter.End(threadID, prompt.ClarificationText)
	}

	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	token := stream.NewCancelToken(s.idleWindow)
	token.OnAbort(cancel)
	defer token.Stop()

	var sb strings.Builder
	result, err := s.generator.Stream(genCtx, generation.Request{
		Messages: []generation.Message{
			{Role: "system", Content: p.system},
			{Role: "user", Content: req.Message},
		},
		Temperature: s.ragConfig.Temperature,
		MaxTokens:   s.ragConfig.MaxTokens,
	}, func(delta string) error {
		token.Touch()
		if token.Aborted() {
			return token.Err()
		}
		sb.WriteString(delta)
		return emitter.Delta(delta)
	})

	text := sb.String()
	promptTokens, completionTokens := 0, 0
	if result != nil {
		if result.Text != "" {
			text = result.Text
		}
		promptTokens = result.PromptTokens
		completionTokens = result.CompletionTokens
	}

	// Usage and persistence run even for a partial response; the provider
	// already billed the tokens that arrived.
	if text != "" || promptTokens > 0 {
		s.account(ctx, p, req, text, promptTokens, completionTokens)
	}
	if text != "" {
		s.persist(ctx, req, p.threadID, text)
	}

	if err != nil {
		if reason := token.Err(); reason != nil {
			err = reason
		}
		s.logger.Warn("stream failed",
			zap.String("chatbot_id", req.ChatbotID.String()),
			zap.Error(err),
		)
		return emitter.Error(s.streamErrorMessage(err))
	}

	return emitter.End(threadID, text)
}

// account records usage exactly once per completed generation call,
// independent of message persistence.
func (s *Service) account(ctx context.Context, p *prepared, req Request, text string, promptTokens, completionTokens int) {
	err := s.usage.RecordChat(ctx, usage.ChatUsage{
		UserID:           p.bot.UserID,
		ChatbotID:        p.bot.ID,
		Model:            s.model,
		Messages:         []string{p.system, req.Message},
		Response:         text,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
	})
	if err != nil {
		s.logger.Error("failed to record chat usage", zap.Error(err))
	}
}

// persist writes the completed turn. A failed insert never fails the
// request or skips usage accounting.
func (s *Service) persist(ctx context.Context, req Request, threadID uuid.UUID, response string) {
	msg := models.NewChatMessage(req.ChatbotID, threadID, req.Message, response, req.UserIP)
	if err := s.messages.Create(ctx, msg); err != nil {
		s.logger.Error("failed to persist chat message",
			zap.String("chatbot_id", req.ChatbotID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) busyResponse() string {
	return busyResponses[s.selector.Select(len(busyResponses))]
}

func (s *Service) streamErrorMessage(err error) string {
	switch {
	case services.IsRateLimitError(err):
		return s.busyResponse()
	case services.IsConfigurationError(err):
		return "The assistant is not available right now. Please contact support."
	default:
		return "Something went wrong while generating the answer. Please try again."
	}
}
