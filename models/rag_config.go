package models

import "strings"

// RAGConfig is the per-chatbot retrieval and generation configuration.
// It is read by the query orchestrator and written by the settings UI;
// the pipeline never mutates it.
type RAGConfig struct {
	Temperature         float64  `json:"temperature"`
	MaxTokens           int      `json:"max_tokens"`
	SimilarityThreshold float64  `json:"similarity_threshold"`
	MaxRetrievedChunks  int      `json:"max_retrieved_chunks"`
	EnableCitations     bool     `json:"enable_citations"`
	ChunkCharLimit      int      `json:"chunk_char_limit"`
	MinWordCount        int      `json:"min_word_count"`
	Stopwords           []string `json:"stopwords"`
}

// DefaultRAGConfig returns the configuration applied when a chatbot has no
// explicit settings.
func DefaultRAGConfig() RAGConfig {
	return RAGConfig{
		Temperature:         0.3,
		MaxTokens:           500,
		SimilarityThreshold: 0.6,
		MaxRetrievedChunks:  5,
		EnableCitations:     false,
		ChunkCharLimit:      1500,
		MinWordCount:        2,
		Stopwords:           []string{"hi", "hello", "hey", "thanks", "thank you", "ok", "test"},
	}
}

// IsStopword reports whether the trimmed, lowercased message exactly matches
// a configured stopword.
func (c RAGConfig) IsStopword(message string) bool {
	normalized := strings.ToLower(strings.TrimSpace(message))
	for _, w := range c.Stopwords {
		if normalized == w {
			return true
		}
	}
	return false
}
