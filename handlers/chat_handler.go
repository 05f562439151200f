package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/docubot/backend/middleware"
	"github.com/docubot/backend/services/chat"
	"github.com/docubot/backend/services/stream"
	"github.com/docubot/backend/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChatRequest represents a chat query against a chatbot. UserID identifies
// the end user when the embedding site supplies one; usage is still billed
// to the chatbot owner.
type ChatRequest struct {
	ChatbotID string `json:"chatbot_id" validate:"required,uuid"`
	Message   string `json:"message" validate:"required"`
	ThreadID  string `json:"thread_id,omitempty" validate:"omitempty,uuid"`
	UserID    string `json:"user_id,omitempty" validate:"omitempty,uuid"`
	Stream    bool   `json:"stream,omitempty"`
}

// ChatService defines the interface for chat operations
type ChatService interface {
	Query(ctx context.Context, req chat.Request) (*chat.Response, error)
	StreamQuery(ctx context.Context, req chat.Request, emitter chat.Emitter) error
}

// ChatHandler handles chat HTTP requests
type ChatHandler struct {
	service ChatService
	logger  *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(service ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger,
	}
}

// HandleChat handles POST /api/v1/chat. The stream flag selects between a
// plain JSON reply and server-sent events.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var chatReq ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&chatReq); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&chatReq); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	serviceReq := chat.Request{
		ChatbotID: uuid.MustParse(chatReq.ChatbotID),
		Message:   chatReq.Message,
		UserIP:    getClientIP(r),
	}
	if chatReq.ThreadID != "" {
		serviceReq.ThreadID = uuid.MustParse(chatReq.ThreadID)
	}

	h.logger.Debug("processing chat query",
		zap.String("request_id", requestID),
		zap.String("chatbot_id", chatReq.ChatbotID),
		zap.Bool("stream", chatReq.Stream))

	if chatReq.Stream {
		h.handleStream(w, r, serviceReq, requestID)
		return
	}

	result, err := h.service.Query(ctx, serviceReq)
	if err != nil {
		h.logger.Error("failed to process chat query",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, result)
}

func (h *ChatHandler) handleStream(w http.ResponseWriter, r *http.Request, req chat.Request, requestID string) {
	emitter := &lazyEmitter{w: w}

	err := h.service.StreamQuery(r.Context(), req, emitter)
	if err != nil && !emitter.started {
		// Nothing has been flushed yet, a normal error response still works
		h.logger.Error("failed to start chat stream",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}
	if err != nil {
		h.logger.Error("chat stream setup failed after headers were sent",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// lazyEmitter defers opening the event stream until the first ready event,
// so that errors raised before streaming begins can use plain HTTP status
// codes.
type lazyEmitter struct {
	w       http.ResponseWriter
	writer  *stream.Writer
	started bool
}

func (e *lazyEmitter) Ready(threadID string) error {
	writer, err := stream.NewWriter(e.w)
	if err != nil {
		return err
	}
	e.writer = writer
	e.started = true
	return e.writer.Ready(threadID)
}

func (e *lazyEmitter) Delta(text string) error {
	return e.writer.Delta(text)
}

func (e *lazyEmitter) End(threadID, text string) error {
	return e.writer.End(threadID, text)
}

func (e *lazyEmitter) Error(message string) error {
	return e.writer.Error(message)
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
