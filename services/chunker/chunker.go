package chunker

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Options controls how raw text is split into chunks
type Options struct {
	// MaxLength is the target upper bound on chunk size in characters
	MaxLength int

	// OverlapLength is the number of trailing characters of the previous
	// chunk prepended to each chunk after the first
	OverlapLength int

	// PreserveParagraphs avoids splitting inside a paragraph when possible
	PreserveParagraphs bool

	// PreserveSentences avoids splitting inside a sentence when possible
	PreserveSentences bool
}

// DefaultOptions returns the splitting options used by ingestion
func DefaultOptions() Options {
	return Options{
		MaxLength:          1000,
		OverlapLength:      100,
		PreserveParagraphs: true,
		PreserveSentences:  true,
	}
}

var (
	paragraphSplitter = regexp.MustCompile(`\n\s*\n`)
	sentenceSplitter  = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?]+\s*)`)
)

// Split breaks text into bounded, overlapping, boundary-aware chunks.
// Chunks read in order cover the entire input; a paragraph or sentence is
// split mid-unit only when it alone exceeds MaxLength.
func Split(text string, opts Options) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultOptions().MaxLength
	}
	if len(text) <= opts.MaxLength {
		return []string{text}
	}

	units := splitUnits(text, opts)

	var chunks []string
	var current strings.Builder
	for _, unit := range units {
		if current.Len() > 0 && current.Len()+len(unit) > opts.MaxLength {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if len(unit) > opts.MaxLength {
			// A single unit larger than the budget is hard-split.
			for _, piece := range hardSplit(unit, opts.MaxLength) {
				if current.Len() > 0 {
					chunks = append(chunks, current.String())
					current.Reset()
				}
				current.WriteString(piece)
				if len(piece) == opts.MaxLength {
					chunks = append(chunks, current.String())
					current.Reset()
				}
			}
			continue
		}
		current.WriteString(unit)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return applyOverlap(chunks, opts.OverlapLength)
}

// splitUnits decomposes the input into the smallest units the options allow:
// paragraphs, then sentences within oversized paragraphs, keeping separators
// attached so that concatenating units reproduces the input.
func splitUnits(text string, opts Options) []string {
	if !opts.PreserveParagraphs && !opts.PreserveSentences {
		return []string{text}
	}

	paragraphs := []string{text}
	if opts.PreserveParagraphs {
		paragraphs = splitKeepingSeparators(text, paragraphSplitter)
	}

	if !opts.PreserveSentences {
		return paragraphs
	}

	var units []string
	for _, p := range paragraphs {
		if len(p) <= opts.MaxLength {
			units = append(units, p)
			continue
		}
		sentences := sentenceSplitter.FindAllString(p, -1)
		if joined := strings.Join(sentences, ""); joined != p {
			// The paragraph has a tail not terminated by punctuation;
			// keep it so coverage holds.
			if strings.HasPrefix(p, joined) {
				sentences = append(sentences, p[len(joined):])
			} else {
				sentences = []string{p}
			}
		}
		units = append(units, sentences...)
	}
	return units
}

// splitKeepingSeparators splits text on the pattern but re-attaches each
// separator to the preceding piece so nothing is dropped.
func splitKeepingSeparators(text string, re *regexp.Regexp) []string {
	matches := re.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return []string{text}
	}
	var parts []string
	prev := 0
	for _, m := range matches {
		parts = append(parts, text[prev:m[1]])
		prev = m[1]
	}
	if prev < len(text) {
		parts = append(parts, text[prev:])
	}
	return parts
}

func hardSplit(s string, max int) []string {
	var pieces []string
	for len(s) > max {
		pieces = append(pieces, s[:max])
		s = s[max:]
	}
	if s != "" {
		pieces = append(pieces, s)
	}
	return pieces
}

// applyOverlap prepends the last overlap characters of each emitted chunk to
// its successor, preserving cross-chunk context for retrieval. Taking the
// tail from the emitted predecessor rather than the raw one keeps the prefix
// identical to what StripOverlap recomputes, even when a chunk is shorter
// than the overlap.
func applyOverlap(chunks []string, overlap int) []string {
	if overlap <= 0 || len(chunks) < 2 {
		return chunks
	}
	out := make([]string, len(chunks))
	out[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prev := out[i-1]
		tail := prev
		if len(prev) > overlap {
			tail = prev[len(prev)-overlap:]
		}
		out[i] = tail + chunks[i]
	}
	return out
}

// ValidateSizes flags chunks exceeding the size budget plus the overlap
// tolerance. Oversize chunks are logged, never rejected; ingestion proceeds
// regardless.
func ValidateSizes(chunks []string, opts Options, logger *zap.Logger) int {
	limit := opts.MaxLength + opts.OverlapLength
	oversize := 0
	for i, c := range chunks {
		if len(c) > limit {
			oversize++
			logger.Warn("chunk exceeds size budget",
				zap.Int("chunk_index", i),
				zap.Int("length", len(c)),
				zap.Int("limit", limit))
		}
	}
	return oversize
}

// StripOverlap removes the known overlap prefix that Split prepended to a
// chunk, given its predecessor. Used when reassembling original text.
func StripOverlap(chunk, previous string, overlap int) string {
	if overlap <= 0 {
		return chunk
	}
	tail := previous
	if len(previous) > overlap {
		tail = previous[len(previous)-overlap:]
	}
	return strings.TrimPrefix(chunk, tail)
}
