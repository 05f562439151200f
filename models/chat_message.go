package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage records one completed query/response turn. A row is written
// exactly once per completed query, streaming or not, after the full
// response text is known.
type ChatMessage struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ChatbotID uuid.UUID `json:"chatbot_id" db:"chatbot_id"`
	ThreadID  uuid.UUID `json:"thread_id" db:"thread_id"`
	Message   string    `json:"message" db:"message"`
	Response  string    `json:"response" db:"response"`
	UserIP    string    `json:"user_ip" db:"user_ip"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the ChatMessage model
func (ChatMessage) TableName() string {
	return "chat_messages"
}

// NewChatMessage creates a chat message row for a completed turn
func NewChatMessage(chatbotID, threadID uuid.UUID, message, response, userIP string) *ChatMessage {
	return &ChatMessage{
		ID:        uuid.New(),
		ChatbotID: chatbotID,
		ThreadID:  threadID,
		Message:   message,
		Response:  response,
		UserIP:    userIP,
		CreatedAt: time.Now(),
	}
}
