package types

import (
	"context"

	"github.com/AhmedEldessouki1982/cdns/internal/models"
)

// Core interfaces. Provider clients and the vector index are passed in
// explicitly wherever they are used, so tests can substitute deterministic
// fakes.

// Embedder converts text into a fixed-dimension vector.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Message is one role-tagged message for the completion provider.
type Message struct {
	Role    string
	Content string
}

// Completer generates text from an ordered list of messages.
type Completer interface {
	Complete(ctx context.Context, messages []Message, temperature float64) (string, error)
}

// Index is the capability shared by both vector engine variants. Callers
// depend on upsert-or-append plus search, never on which concrete engine
// answers them.
type Index interface {
	// Upsert writes one chunk. The persistent engine replaces any entry
	// with the same (source_table, source_pk, field, chunk_index) key;
	// the ephemeral engine appends.
	Upsert(ctx context.Context, chunk models.Chunk) error

	// Search returns the top k entries closest to the query vector, best
	// match first. A non-empty tag filter restricts results to entries
	// whose tag set intersects it; filtering happens before truncation
	// to k.
	Search(ctx context.Context, embedding []float32, k int, tags []string) ([]models.RetrievedChunk, error)

	Close()
}
