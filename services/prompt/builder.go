package prompt

import (
	"fmt"
	"strings"

	"github.com/docubot/backend/models"
)

// RefusalMessage is the fixed text the model is instructed to answer with
// whenever the retrieved context does not support an answer.
const RefusalMessage = "I'm sorry, I don't have information about that. Please contact our support team for further assistance."

// ClarificationText is returned without any retrieval or generation when the
// trivial-query short-circuit fires.
const ClarificationText = "Could you please provide a bit more detail about what you'd like to know? That way I can give you a useful answer."

// Builder assembles system prompts that confine the model to retrieved
// context.
type Builder struct{}

// NewBuilder creates a prompt builder
func NewBuilder() *Builder {
	return &Builder{}
}

// IsTrivial reports whether the message should short-circuit the pipeline:
// word count at or below the configured minimum, or an exact stopword match.
// Trivial messages get ClarificationText instead of a generation call.
func (b *Builder) IsTrivial(message string, cfg models.RAGConfig) bool {
	words := strings.Fields(strings.TrimSpace(message))
	if len(words) <= cfg.MinWordCount {
		return true
	}
	return cfg.IsStopword(message)
}

// Build assembles the system prompt from the bot persona and retrieved
// context. With no context it produces a refusal-only prompt; with context it
// enforces the containment policy: answer only from the numbered blocks,
// refuse with the fixed message otherwise.
func (b *Builder) Build(botName string, chunks []models.RetrievedChunk, cfg models.RAGConfig, persona string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("You are %s, a helpful assistant.", botName))
	if persona != "" {
		sb.WriteString(" ")
		sb.WriteString(persona)
	}
	sb.WriteString("\n\n")

	if len(chunks) == 0 {
		sb.WriteString("No relevant information is available for this conversation. ")
		sb.WriteString("You must refuse to answer every question. Reply only with: \"")
		sb.WriteString(RefusalMessage)
		sb.WriteString("\" Do not use any external or general knowledge.")
		return sb.String()
	}

	sb.WriteString("Answer using ONLY the context below. Rules:\n")
	sb.WriteString("- Do not use any knowledge outside the context.\n")
	sb.WriteString("- Treat each user message independently, unless it clearly continues a previous turn that is itself supported by the context.\n")
	sb.WriteString("- If the context does not support an answer, reply only with: \"")
	sb.WriteString(RefusalMessage)
	sb.WriteString("\"\n")
	if cfg.EnableCitations {
		sb.WriteString("- Cite the context blocks you used by their [number] at the end of your answer.\n")
	}
	sb.WriteString("\nContext:\n")

	for i, chunk := range chunks {
		content := chunk.Content
		if cfg.ChunkCharLimit > 0 {
			if runes := []rune(content); len(runes) > cfg.ChunkCharLimit {
				content = string(runes[:cfg.ChunkCharLimit])
			}
		}
		sb.WriteString(fmt.Sprintf("[%d] %s\n", i+1, content))
	}

	return sb.String()
}
