package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatbotStatus represents the lifecycle status of a chatbot
type ChatbotStatus string

const (
	ChatbotStatusPending ChatbotStatus = "pending"
	ChatbotStatusReady   ChatbotStatus = "ready"
	ChatbotStatusFailed  ChatbotStatus = "failed"
)

// Chatbot represents a bot that owns a knowledge store.
// The dashboard manages these rows; the pipeline only reads them to
// resolve ownership and ready status.
type Chatbot struct {
	ID        uuid.UUID     `json:"id" db:"id"`
	UserID    uuid.UUID     `json:"user_id" db:"user_id"`
	Name      string        `json:"name" db:"name"`
	Status    ChatbotStatus `json:"status" db:"status"`
	Persona   string        `json:"persona,omitempty" db:"persona"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Chatbot model
func (Chatbot) TableName() string {
	return "chatbots"
}

// IsReady reports whether the chatbot can serve queries
func (c *Chatbot) IsReady() bool {
	return c.Status == ChatbotStatusReady
}
