package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"

	"github.com/AhmedEldessouki1982/cdns/internal/models"
	"github.com/AhmedEldessouki1982/cdns/internal/types"
)

// PgVectorConfig configures the persistent engine.
type PgVectorConfig struct {
	ConnString  string
	TableName   string
	VectorDim   int
	SearchLimit int
}

// PgVector is the persistent, upsert-able engine variant, backed by Postgres
// with the pgvector extension. Entries are keyed by the composite
// (source_table, source_pk, field, chunk_index); writing the same key again
// replaces the prior content, embedding and tags in a single atomic
// statement, so concurrent searches never observe a partially-written entry.
type PgVector struct {
	config PgVectorConfig
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewPgVector(ctx context.Context, config PgVectorConfig, logger zerolog.Logger) (*PgVector, error) {
	if config.TableName == "" {
		config.TableName = "rag_chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1536
	}
	if config.SearchLimit == 0 {
		config.SearchLimit = 6
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &PgVector{
		config: config,
		pool:   pool,
		logger: logger,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *PgVector) initialize(ctx context.Context) error {
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			source_table TEXT NOT NULL,
			source_pk TEXT NOT NULL,
			field TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			tags TEXT[],
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (source_table, source_pk, field, chunk_index)
		)`, vs.config.TableName, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.TableName, vs.config.TableName)

	_, err = vs.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Upsert writes one chunk under its composite key, replacing any prior entry
// with the same key. Re-ingesting a field therefore converges instead of
// duplicating rows.
func (vs *PgVector) Upsert(ctx context.Context, chunk models.Chunk) error {
	if chunk.SourceTable == "" || chunk.SourcePK == "" || chunk.Field == "" {
		return &types.ValidationError{Msg: "upsert: source_table, source_pk and field are required"}
	}
	if chunk.ChunkIndex < 0 {
		return types.Validationf("upsert: chunk_index must be non-negative, got %d", chunk.ChunkIndex)
	}
	if err := checkDim(chunk.Embedding, vs.config.VectorDim); err != nil {
		return err
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (source_table, source_pk, field, chunk_index, content, embedding, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source_table, source_pk, field, chunk_index)
		DO UPDATE SET content = EXCLUDED.content,
		              embedding = EXCLUDED.embedding,
		              tags = EXCLUDED.tags,
		              updated_at = now()`,
		vs.config.TableName)

	_, err := vs.pool.Exec(ctx, stmt,
		chunk.SourceTable,
		chunk.SourcePK,
		chunk.Field,
		chunk.ChunkIndex,
		chunk.Content,
		pgvector.NewVector(chunk.Embedding),
		chunk.Tags,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert chunk: %w", err)
	}

	return nil
}

// Search ranks stored entries by cosine similarity to the query vector and
// returns the top k, best match first. A non-empty tag filter keeps only
// entries whose tag set intersects it, applied before the LIMIT.
func (vs *PgVector) Search(ctx context.Context, embedding []float32, k int, tags []string) ([]models.RetrievedChunk, error) {
	if err := checkDim(embedding, vs.config.VectorDim); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = vs.config.SearchLimit
	}

	query := fmt.Sprintf(`
		SELECT id, content, source_table, source_pk, field,
		       1 - (embedding <=> $1) AS score
		FROM %s
		WHERE ($2::text[] IS NULL OR tags && $2::text[])
		ORDER BY embedding <=> $1
		LIMIT $3`,
		vs.config.TableName)

	var tagFilter []string
	if len(tags) > 0 {
		tagFilter = tags
	}

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(embedding), tagFilter, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var results []models.RetrievedChunk
	for rows.Next() {
		var rc models.RetrievedChunk
		err := rows.Scan(
			&rc.ID,
			&rc.Content,
			&rc.SourceTable,
			&rc.SourcePK,
			&rc.Field,
			&rc.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	vs.logger.Debug().Int("results", len(results)).Int("k", k).Strs("tags", tags).Msg("vector search completed")
	return results, nil
}

func (vs *PgVector) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

var _ types.Index = (*PgVector)(nil)
