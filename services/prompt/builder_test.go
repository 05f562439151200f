package prompt

import (
	"strings"
	"testing"

	"github.com/docubot/backend/models"
	"github.com/stretchr/testify/assert"
)

func TestIsTrivial(t *testing.T) {
	b := NewBuilder()
	cfg := models.DefaultRAGConfig()
	cfg.MinWordCount = 5
	cfg.Stopwords = []string{"hi", "hello"}

	t.Run("short message is trivial", func(t *testing.T) {
		assert.True(t, b.IsTrivial("what is this", cfg))
	})

	t.Run("stopword match is trivial regardless of casing", func(t *testing.T) {
		assert.True(t, b.IsTrivial("  Hello  ", cfg))
	})

	t.Run("substantive message is not trivial", func(t *testing.T) {
		assert.False(t, b.IsTrivial("how do I reset my account password after a failed login", cfg))
	})
}

func TestBuildWithoutContext(t *testing.T) {
	b := NewBuilder()
	cfg := models.DefaultRAGConfig()

	got := b.Build("SupportBot", nil, cfg, "")

	assert.Contains(t, got, RefusalMessage)
	assert.Contains(t, got, "refuse to answer every question")
	assert.NotContains(t, got, "Context:")
	assert.NotContains(t, got, "Answer using")
}

func TestBuildWithContext(t *testing.T) {
	b := NewBuilder()
	cfg := models.DefaultRAGConfig()

	chunks := []models.RetrievedChunk{
		{Content: "Refunds are processed within 5 business days.", Similarity: 0.9, ChunkIndex: 0},
		{Content: "Contact billing for invoice disputes.", Similarity: 0.7, ChunkIndex: 3},
	}

	t.Run("numbers context blocks in order", func(t *testing.T) {
		got := b.Build("SupportBot", chunks, cfg, "")

		assert.Contains(t, got, "[1] Refunds are processed within 5 business days.")
		assert.Contains(t, got, "[2] Contact billing for invoice disputes.")
		assert.Less(t, strings.Index(got, "[1]"), strings.Index(got, "[2]"))
		assert.Contains(t, got, "ONLY the context below")
		assert.Contains(t, got, RefusalMessage)
	})

	t.Run("persona is woven into the opening", func(t *testing.T) {
		got := b.Build("SupportBot", chunks, cfg, "You speak formally.")
		assert.Contains(t, got, "You are SupportBot")
		assert.Contains(t, got, "You speak formally.")
	})

	t.Run("citation instruction only when enabled", func(t *testing.T) {
		plain := b.Build("SupportBot", chunks, cfg, "")
		assert.NotContains(t, plain, "Cite the context blocks")

		cited := cfg
		cited.EnableCitations = true
		withCitations := b.Build("SupportBot", chunks, cited, "")
		assert.Contains(t, withCitations, "Cite the context blocks")
	})

	t.Run("chunk content is truncated to the char limit", func(t *testing.T) {
		small := cfg
		small.ChunkCharLimit = 10
		got := b.Build("SupportBot", chunks, small, "")

		assert.Contains(t, got, "[1] Refunds ar\n")
		assert.NotContains(t, got, "5 business days")
	})
}
