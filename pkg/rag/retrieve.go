package rag

import (
	"context"

	"github.com/AhmedEldessouki1982/cdns/internal/models"
	"github.com/AhmedEldessouki1982/cdns/internal/types"
)

// Retrieve embeds the question once and returns the k closest chunks,
// best match first. k <= 0 uses the configured default. There is no
// query-time caching; identical questions embed again each time.
func (p *Pipeline) Retrieve(ctx context.Context, question string, k int, tags []string) ([]models.RetrievedChunk, error) {
	if question == "" {
		return nil, types.Validationf("question must not be empty")
	}
	if k <= 0 {
		k = p.config.TopK
	}

	embedding, err := p.embedder.EmbedText(ctx, question)
	if err != nil {
		return nil, err
	}

	return p.index.Search(ctx, embedding, k, tags)
}
