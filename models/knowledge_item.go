package models

import (
	"time"

	"github.com/google/uuid"
)

// ContentType identifies the origin of a knowledge item
type ContentType string

const (
	ContentTypeDocument ContentType = "document"
	ContentTypeText     ContentType = "text"
)

// KnowledgeItem represents one uploaded piece of source material for a
// chatbot's knowledge store. Processed flips to true only after all of the
// item's chunks have been stored; an item is never left partially processed.
type KnowledgeItem struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	ChatbotID   uuid.UUID   `json:"chatbot_id" db:"chatbot_id"`
	Content     string      `json:"content" db:"content"`
	ContentType ContentType `json:"content_type" db:"content_type"`
	Filename    *string     `json:"filename,omitempty" db:"filename"`
	Processed   bool        `json:"processed" db:"processed"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the KnowledgeItem model
func (KnowledgeItem) TableName() string {
	return "knowledge_items"
}

// NewKnowledgeItem creates an unprocessed knowledge item
func NewKnowledgeItem(chatbotID uuid.UUID, content string, contentType ContentType, filename *string) *KnowledgeItem {
	return &KnowledgeItem{
		ID:          uuid.New(),
		ChatbotID:   chatbotID,
		Content:     content,
		ContentType: contentType,
		Filename:    filename,
		Processed:   false,
		CreatedAt:   time.Now(),
	}
}

// Validate checks the content type against the allowed set
func (k *KnowledgeItem) Validate() error {
	switch k.ContentType {
	case ContentTypeDocument, ContentTypeText:
		return nil
	}
	return ErrInvalidContentType
}
