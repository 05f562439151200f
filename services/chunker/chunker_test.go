package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSplit(t *testing.T) {
	t.Run("empty input produces no chunks", func(t *testing.T) {
		assert.Empty(t, Split("", DefaultOptions()))
		assert.Empty(t, Split("   \n\t ", DefaultOptions()))
	})

	t.Run("short input is a single chunk without overlap", func(t *testing.T) {
		text := "A short paragraph that fits."
		chunks := Split(text, DefaultOptions())
		require.Len(t, chunks, 1)
		assert.Equal(t, text, chunks[0])
	})

	t.Run("covers the entire input", func(t *testing.T) {
		opts := Options{MaxLength: 80, OverlapLength: 10, PreserveParagraphs: true, PreserveSentences: true}
		text := "First sentence here. Second sentence follows. Third one is a bit longer than the others.\n\n" +
			"A second paragraph starts now. It also has several sentences. They should stay together when possible."

		chunks := Split(text, opts)
		require.Greater(t, len(chunks), 1)

		rebuilt := chunks[0]
		for i := 1; i < len(chunks); i++ {
			rebuilt += StripOverlap(chunks[i], chunks[i-1], opts.OverlapLength)
		}
		assert.Equal(t, text, rebuilt)
	})

	t.Run("covers input containing a chunk shorter than the overlap", func(t *testing.T) {
		opts := Options{MaxLength: 50, OverlapLength: 10, PreserveParagraphs: true, PreserveSentences: true}
		// The tiny middle paragraph becomes a chunk shorter than
		// OverlapLength; its emitted form still carries a strippable prefix.
		text := strings.Repeat("a", 48) + "\n\nHi.\n\n" + strings.Repeat("x", 200)

		chunks := Split(text, opts)
		require.Greater(t, len(chunks), 2)

		rebuilt := chunks[0]
		for i := 1; i < len(chunks); i++ {
			rebuilt += StripOverlap(chunks[i], chunks[i-1], opts.OverlapLength)
		}
		assert.Equal(t, text, rebuilt)
	})

	t.Run("every chunk within size bound plus overlap tolerance", func(t *testing.T) {
		opts := Options{MaxLength: 60, OverlapLength: 15, PreserveParagraphs: true, PreserveSentences: true}
		text := strings.Repeat("Sentences of moderate size keep arriving. ", 30)

		for _, c := range Split(text, opts) {
			assert.LessOrEqual(t, len(c), opts.MaxLength+opts.OverlapLength,
				"chunk length %d over bound", len(c))
		}
	})

	t.Run("oversized single sentence is hard split", func(t *testing.T) {
		opts := Options{MaxLength: 50, OverlapLength: 0, PreserveParagraphs: true, PreserveSentences: true}
		text := strings.Repeat("x", 180)

		chunks := Split(text, opts)
		require.Greater(t, len(chunks), 1)
		assert.Equal(t, text, strings.Join(chunks, ""))
		for _, c := range chunks {
			assert.LessOrEqual(t, len(c), opts.MaxLength)
		}
	})

	t.Run("overlap carries previous chunk tail", func(t *testing.T) {
		opts := Options{MaxLength: 40, OverlapLength: 8, PreserveParagraphs: false, PreserveSentences: true}
		text := "One short sentence. Two short sentences. Three short sentences. Four short sentences."

		chunks := Split(text, opts)
		require.Greater(t, len(chunks), 1)
		for i := 1; i < len(chunks); i++ {
			stripped := StripOverlap(chunks[i], chunks[i-1], opts.OverlapLength)
			assert.NotEqual(t, chunks[i], stripped, "chunk %d carries no overlap prefix", i)
		}
	})
}

func TestValidateSizes(t *testing.T) {
	logger := zaptest.NewLogger(t)
	opts := Options{MaxLength: 10, OverlapLength: 2}

	t.Run("flags oversize chunks without failing", func(t *testing.T) {
		oversize := ValidateSizes([]string{"short", strings.Repeat("y", 20), "ok"}, opts, logger)
		assert.Equal(t, 1, oversize)
	})

	t.Run("all within budget", func(t *testing.T) {
		assert.Zero(t, ValidateSizes([]string{"short", "tiny"}, opts, logger))
	})
}
