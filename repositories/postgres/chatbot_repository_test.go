package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/docubot/backend/models"
	"github.com/docubot/backend/repositories"
	"github.com/docubot/backend/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestChatbotRepositoryGetByID(t *testing.T) {
	id := uuid.New()
	userID := uuid.New()

	t.Run("returns chatbot", func(t *testing.T) {
		db, mock := newTestDB(t)
		repo := NewChatbotRepository(db, zaptest.NewLogger(t))

		rows := sqlmock.NewRows([]string{"id", "user_id", "name", "status", "persona", "created_at"}).
			AddRow(id, userID, "Support Bot", "ready", "friendly", time.Now())

		mock.ExpectQuery(`SELECT id, user_id, name, status, persona, created_at`).
			WithArgs(id).
			WillReturnRows(rows)

		bot, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, "Support Bot", bot.Name)
		assert.True(t, bot.IsReady())
	})

	t.Run("missing chatbot maps to not found", func(t *testing.T) {
		db, mock := newTestDB(t)
		repo := NewChatbotRepository(db, zaptest.NewLogger(t))

		mock.ExpectQuery(`SELECT id, user_id, name, status, persona, created_at`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.GetByID(context.Background(), id)
		assert.ErrorIs(t, err, services.ErrChatbotNotFound)
	})
}

func TestChatbotRepositoryUpdateStatus(t *testing.T) {
	id := uuid.New()

	t.Run("updates status", func(t *testing.T) {
		db, mock := newTestDB(t)
		repo := NewChatbotRepository(db, zaptest.NewLogger(t))

		mock.ExpectExec(`UPDATE chatbots`).
			WithArgs(id, models.ChatbotStatusReady).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.UpdateStatus(context.Background(), id, models.ChatbotStatusReady)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero rows maps to not found", func(t *testing.T) {
		db, mock := newTestDB(t)
		repo := NewChatbotRepository(db, zaptest.NewLogger(t))

		mock.ExpectExec(`UPDATE chatbots`).
			WithArgs(id, models.ChatbotStatusFailed).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateStatus(context.Background(), id, models.ChatbotStatusFailed)
		assert.ErrorIs(t, err, services.ErrChatbotNotFound)
	})
}

func TestTransactionManagerInTransaction(t *testing.T) {
	t.Run("commits on success and shares the transaction through context", func(t *testing.T) {
		db, mock := newTestDB(t)
		tm := NewTransactionManager(db, zaptest.NewLogger(t))
		knowledge := NewKnowledgeRepository(db, zaptest.NewLogger(t))

		itemID := uuid.New()
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE knowledge_items`).
			WithArgs(itemID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := tm.InTransaction(context.Background(), func(ctx context.Context, _ repositories.Transaction) error {
			return knowledge.MarkProcessed(ctx, itemID)
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
