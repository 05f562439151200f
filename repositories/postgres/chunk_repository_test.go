package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/docubot/backend/models"
	"github.com/docubot/backend/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return &DB{DB: mockDB, logger: zaptest.NewLogger(t)}, mock
}

func TestChunkRepositorySimilaritySearch(t *testing.T) {
	chatbotID := uuid.New()

	t.Run("returns ranked chunks", func(t *testing.T) {
		db, mock := newTestDB(t)
		repo := NewChunkRepository(db, zaptest.NewLogger(t))

		source := "faq.md"
		rows := sqlmock.NewRows([]string{"content", "similarity", "chunk_index", "source_url"}).
			AddRow("Refunds take 5 days.", 0.91, 0, source).
			AddRow("Contact support for refunds.", 0.84, 3, nil)

		mock.ExpectQuery(`SELECT content, 1 - \(embedding <=> \$2\) AS similarity`).
			WithArgs(chatbotID, sqlmock.AnyArg(), 0.6, 5).
			WillReturnRows(rows)

		chunks, err := repo.SimilaritySearch(context.Background(), chatbotID, []float32{0.1, 0.2}, 0.6, 5)
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "Refunds take 5 days.", chunks[0].Content)
		assert.Equal(t, 0.91, chunks[0].Similarity)
		assert.Equal(t, &source, chunks[0].SourceURL)
		assert.Nil(t, chunks[1].SourceURL)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps query failure as retrieval error", func(t *testing.T) {
		db, mock := newTestDB(t)
		repo := NewChunkRepository(db, zaptest.NewLogger(t))

		mock.ExpectQuery(`SELECT content, 1 - \(embedding <=> \$2\) AS similarity`).
			WillReturnError(errors.New("connection reset"))

		_, err := repo.SimilaritySearch(context.Background(), chatbotID, []float32{0.1}, 0.6, 5)
		require.Error(t, err)
		assert.Equal(t, services.ErrorTypeRetrieval, services.GetErrorType(err))
	})
}

func TestChunkRepositoryKeywordSearch(t *testing.T) {
	chatbotID := uuid.New()

	t.Run("matches per-word patterns", func(t *testing.T) {
		db, mock := newTestDB(t)
		repo := NewChunkRepository(db, zaptest.NewLogger(t))

		rows := sqlmock.NewRows([]string{"content", "chunk_index", "source_url"}).
			AddRow("Our refund policy is simple.", 1, nil)

		mock.ExpectQuery(`content ILIKE ANY`).
			WithArgs(chatbotID, sqlmock.AnyArg(), 3).
			WillReturnRows(rows)

		chunks, err := repo.KeywordSearch(context.Background(), chatbotID, "refund policy", 3)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, float64(0), chunks[0].Similarity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty query returns nothing without hitting the database", func(t *testing.T) {
		db, _ := newTestDB(t)
		repo := NewChunkRepository(db, zaptest.NewLogger(t))

		chunks, err := repo.KeywordSearch(context.Background(), chatbotID, "   ", 3)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})
}

func TestChunkRepositoryInsertBatch(t *testing.T) {
	chatbotID := uuid.New()
	kbID := uuid.New()

	t.Run("inserts rows in one statement", func(t *testing.T) {
		db, mock := newTestDB(t)
		repo := NewChunkRepository(db, zaptest.NewLogger(t))

		embedded := models.NewChunk(chatbotID, kbID, "first", 0)
		embedded.SetEmbedding([]float32{0.1, 0.2})
		degraded := models.NewChunk(chatbotID, kbID, "second", 1)

		mock.ExpectExec(`INSERT INTO chunks`).
			WillReturnResult(sqlmock.NewResult(0, 2))

		err := repo.InsertBatch(context.Background(), []*models.Chunk{embedded, degraded})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		db, _ := newTestDB(t)
		repo := NewChunkRepository(db, zaptest.NewLogger(t))

		require.NoError(t, repo.InsertBatch(context.Background(), nil))
	})
}

func TestKeywordPatterns(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "drops short words and punctuation",
			query: "What is my refund policy?",
			want:  []string{"%What%", "%refund%", "%policy%"},
		},
		{
			name:  "falls back to the whole query when all words are short",
			query: "at it",
			want:  []string{"%at it%"},
		},
		{
			name:  "blank query yields no patterns",
			query: "   ",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, keywordPatterns(tt.query))
		})
	}
}
