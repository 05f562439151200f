package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/docubot/backend/middleware"
	"github.com/docubot/backend/models"
	"github.com/docubot/backend/services/ingestion"
	"github.com/docubot/backend/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IngestRequest triggers ingestion for a chatbot, optionally uploading new
// knowledge items in the same call
type IngestRequest struct {
	ChatbotID string       `json:"chatbot_id" validate:"required,uuid"`
	Items     []IngestItem `json:"items,omitempty" validate:"omitempty,dive"`
}

// IngestItem is one piece of source material to add to the knowledge store
type IngestItem struct {
	Content     string  `json:"content" validate:"required"`
	ContentType string  `json:"content_type" validate:"required,oneof=document text"`
	Filename    *string `json:"filename,omitempty"`
}

// IngestionService defines the interface for ingestion operations
type IngestionService interface {
	ProcessChatbot(ctx context.Context, chatbotID uuid.UUID) (*ingestion.Summary, error)
	ProcessItems(ctx context.Context, chatbotID uuid.UUID, items []ingestion.NewItem) (*ingestion.Summary, error)
}

// IngestHandler handles ingestion HTTP requests
type IngestHandler struct {
	service IngestionService
	logger  *zap.Logger
}

// NewIngestHandler creates a new IngestHandler
func NewIngestHandler(service IngestionService, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{
		service: service,
		logger:  logger,
	}
}

// HandleIngest handles POST /api/v1/ingest
func (h *IngestHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var ingestReq IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&ingestReq); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&ingestReq); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	chatbotID := uuid.MustParse(ingestReq.ChatbotID)

	h.logger.Info("starting ingestion",
		zap.String("request_id", requestID),
		zap.String("chatbot_id", ingestReq.ChatbotID),
		zap.Int("new_items", len(ingestReq.Items)))

	var summary *ingestion.Summary
	var err error
	if len(ingestReq.Items) > 0 {
		items := make([]ingestion.NewItem, 0, len(ingestReq.Items))
		for _, item := range ingestReq.Items {
			items = append(items, ingestion.NewItem{
				Content:     item.Content,
				ContentType: models.ContentType(item.ContentType),
				Filename:    item.Filename,
			})
		}
		summary, err = h.service.ProcessItems(ctx, chatbotID, items)
	} else {
		summary, err = h.service.ProcessChatbot(ctx, chatbotID)
	}

	if err != nil {
		h.logger.Error("ingestion failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, summary)
}
