package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/docubot/backend/models"
	"github.com/docubot/backend/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UsageRepository implements the repositories.UsageRepository interface
type UsageRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *DB, logger *zap.Logger) repositories.UsageRepository {
	return &UsageRepository{
		db:     db,
		logger: logger,
	}
}

// Increment accumulates the record's metric value into the user's counter for
// the record's period. Concurrent increments never lose updates.
func (r *UsageRepository) Increment(ctx context.Context, record *models.UsageRecord) error {
	query := `
		INSERT INTO usage_records (id, user_id, metric_name, metric_value, period_start, period_end, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, metric_name, period_start)
		DO UPDATE SET metric_value = usage_records.metric_value + EXCLUDED.metric_value
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		record.ID,
		record.UserID,
		record.MetricName,
		record.MetricValue,
		record.PeriodStart,
		record.PeriodEnd,
		record.Metadata,
	)

	if err != nil {
		return fmt.Errorf("failed to increment usage: %w", err)
	}

	r.logger.Debug("usage incremented",
		zap.String("user_id", record.UserID.String()),
		zap.String("metric", record.MetricName),
		zap.Int64("value", record.MetricValue))
	return nil
}

// GetPeriodTotal returns the accumulated value of a metric for a user within
// the current monthly period. A missing row counts as zero.
func (r *UsageRepository) GetPeriodTotal(ctx context.Context, userID uuid.UUID, metricName string) (int64, error) {
	periodStart, _ := models.CurrentPeriod(time.Now().UTC())

	query := `
		SELECT metric_value
		FROM usage_records
		WHERE user_id = $1 AND metric_name = $2 AND period_start = $3
	`

	executor := GetExecutor(ctx, r.db)
	var total int64
	err := executor.QueryRowContext(ctx, query, userID, metricName, periodStart).Scan(&total)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get usage total: %w", err)
	}

	return total, nil
}
