package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Usage metric names recorded by the pipeline
const (
	MetricChatTokens      = "chat_tokens"
	MetricEmbeddingTokens = "embedding_tokens"
)

// UsageRecord accumulates token consumption for a user within a billing
// period. MetricValue is accumulated, never overwritten, and never negative.
type UsageRecord struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	UserID      uuid.UUID       `json:"user_id" db:"user_id"`
	MetricName  string          `json:"metric_name" db:"metric_name"`
	MetricValue int64           `json:"metric_value" db:"metric_value"`
	PeriodStart time.Time       `json:"period_start" db:"period_start"`
	PeriodEnd   time.Time       `json:"period_end" db:"period_end"`
	Metadata    json.RawMessage `json:"metadata,omitempty" db:"metadata"`
}

// TableName returns the table name for the UsageRecord model
func (UsageRecord) TableName() string {
	return "usage_records"
}

// CurrentPeriod returns the monthly accounting window containing now
func CurrentPeriod(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 1, 0)
}
