package rag

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/AhmedEldessouki1982/cdns/internal/models"
	"github.com/AhmedEldessouki1982/cdns/internal/types"
	"github.com/AhmedEldessouki1982/cdns/pkg/chunker"
)

// Config tunes the pipeline. Zero values fall back to the defaults below.
type Config struct {
	// MaxChars is the chunk budget passed to the chunker.
	MaxChars int
	// TopK is the default number of chunks retrieved per question.
	TopK int
	// Concurrency bounds how many chunks of one field are embedded and
	// written at the same time. 1 keeps chunk writes in index order.
	Concurrency int
	// RateLimit caps embedding calls per second across the whole
	// pipeline. 0 disables limiting.
	RateLimit float64
}

const (
	DefaultTopK        = 6
	DefaultConcurrency = 1
)

// FieldRef names one ingested field by its composite key prefix.
type FieldRef struct {
	SourceTable string
	SourcePK    string
	Field       string
}

// Pipeline ties the chunker, the provider clients and the vector index
// into the ingest / retrieve / answer operations.
type Pipeline struct {
	embedder types.Embedder
	chat     types.Completer
	index    types.Index
	config   Config
	limiter  *rate.Limiter
	logger   zerolog.Logger
}

func NewPipeline(embedder types.Embedder, chat types.Completer, index types.Index, config Config, logger zerolog.Logger) *Pipeline {
	if config.MaxChars <= 0 {
		config.MaxChars = chunker.DefaultMaxChars
	}
	if config.TopK <= 0 {
		config.TopK = DefaultTopK
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	return &Pipeline{
		embedder: embedder,
		chat:     chat,
		index:    index,
		config:   config,
		limiter:  limiter,
		logger:   logger.With().Str("component", "rag").Logger(),
	}
}

// IngestField chunks content, embeds each chunk and writes it into the
// index under ref's composite key. Returns the number of chunks written.
// Chunk writes are independent: the first failure cancels the remaining
// chunks, but chunks already written stay in the index. Re-running
// converges on the persistent engine thanks to keyed upserts; on the
// ephemeral engine it appends duplicates.
func (p *Pipeline) IngestField(ctx context.Context, ref FieldRef, content string, tags []string) (int, error) {
	if ref.SourceTable == "" || ref.SourcePK == "" || ref.Field == "" {
		return 0, types.Validationf("ingest requires source_table, source_pk and field")
	}

	parts := chunker.Chunk(content, p.config.MaxChars)
	if len(parts) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)
	for _, part := range parts {
		part := part
		g.Go(func() error {
			return p.ingestChunk(gctx, ref, part, tags)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	p.logger.Info().
		Str("source_table", ref.SourceTable).
		Str("source_pk", ref.SourcePK).
		Str("field", ref.Field).
		Int("chunks", len(parts)).
		Msg("ingested field")
	return len(parts), nil
}

func (p *Pipeline) ingestChunk(ctx context.Context, ref FieldRef, part models.ChunkPart, tags []string) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	embedding, err := p.embedder.EmbedText(ctx, part.Content)
	if err != nil {
		return err
	}

	return p.index.Upsert(ctx, models.Chunk{
		SourceTable: ref.SourceTable,
		SourcePK:    ref.SourcePK,
		Field:       ref.Field,
		ChunkIndex:  part.Index,
		Content:     part.Content,
		Embedding:   embedding,
		Tags:        tags,
	})
}
