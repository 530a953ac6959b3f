package chunker

import (
	"strings"

	"github.com/AhmedEldessouki1982/cdns/internal/models"
)

// DefaultMaxChars is the chunk budget used when none is configured. It
// targets roughly 512-1024 tokens of retrieval context.
const DefaultMaxChars = 1200

// Chunk splits text into paragraph-aligned fragments of at most maxChars
// characters. Paragraphs are accumulated greedily into a buffer; when the
// next paragraph would push the buffer past the budget, the buffer is
// flushed as a completed chunk and the paragraph starts a new one. A single
// paragraph longer than maxChars is emitted whole rather than truncated.
// Chunks are indexed in emission order starting at 0; empty or
// whitespace-only input yields no chunks.
func Chunk(text string, maxChars int) []models.ChunkPart {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	var parts []models.ChunkPart
	flush := func(buffer string) {
		if trimmed := strings.TrimSpace(buffer); trimmed != "" {
			parts = append(parts, models.ChunkPart{Index: len(parts), Content: trimmed})
		}
	}

	buffer := ""
	for _, para := range strings.Split(text, "\n") {
		if para == "" {
			continue
		}

		candidate := para
		if buffer != "" {
			candidate = buffer + "\n" + para
		}

		if len(candidate) > maxChars {
			flush(buffer)
			buffer = para
		} else {
			buffer = candidate
		}
	}
	flush(buffer)

	return parts
}
