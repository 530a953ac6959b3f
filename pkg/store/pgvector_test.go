package store_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AhmedEldessouki1982/cdns/internal/models"
	"github.com/AhmedEldessouki1982/cdns/internal/types"
	"github.com/AhmedEldessouki1982/cdns/pkg/store"
)

// Integration tests against a real Postgres with the vector extension.
// They run only when DATABASE_URL is set.

func newTestPgVector(t *testing.T) *store.PgVector {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping pgvector integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pg, err := store.NewPgVector(ctx, store.PgVectorConfig{
		ConnString: dsn,
		TableName:  fmt.Sprintf("rag_chunks_test_%d", time.Now().UnixNano()),
		VectorDim:  3,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(pg.Close)
	return pg
}

func testChunk(pk string, idx int, content string, emb []float32, tags ...string) models.Chunk {
	return models.Chunk{
		SourceTable: "tod",
		SourcePK:    pk,
		Field:       "description",
		ChunkIndex:  idx,
		Content:     content,
		Embedding:   emb,
		Tags:        tags,
	}
}

func TestPgVector_UpsertReplaces(t *testing.T) {
	pg := newTestPgVector(t)
	ctx := context.Background()

	require.NoError(t, pg.Upsert(ctx, testChunk("TOD-1", 0, "old text", []float32{1, 0, 0})))
	require.NoError(t, pg.Upsert(ctx, testChunk("TOD-1", 0, "new text", []float32{0, 1, 0})))

	results, err := pg.Search(ctx, []float32{0, 1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1, "same composite key must replace, not duplicate")
	assert.Equal(t, "new text", results[0].Content)
	assert.Equal(t, "TOD-1", results[0].SourcePK)
}

func TestPgVector_SearchOrderingAndTags(t *testing.T) {
	pg := newTestPgVector(t)
	ctx := context.Background()

	require.NoError(t, pg.Upsert(ctx, testChunk("TOD-1", 0, "aligned", []float32{1, 0, 0}, "pump")))
	require.NoError(t, pg.Upsert(ctx, testChunk("TOD-2", 0, "orthogonal", []float32{0, 1, 0}, "compressor")))
	require.NoError(t, pg.Upsert(ctx, testChunk("TOD-3", 0, "opposed", []float32{-1, 0, 0}, "pump")))

	results, err := pg.Search(ctx, []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "aligned", results[0].Content)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}

	results, err = pg.Search(ctx, []float32{1, 0, 0}, 10, []string{"compressor"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "orthogonal", results[0].Content)
}

func TestPgVector_UpsertValidation(t *testing.T) {
	pg := newTestPgVector(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		chunk models.Chunk
	}{
		{"missing source table", testChunk("TOD-1", 0, "x", []float32{1, 0, 0})},
		{"negative chunk index", testChunk("TOD-1", -1, "x", []float32{1, 0, 0})},
		{"wrong dimension", testChunk("TOD-1", 0, "x", []float32{1, 0})},
	}
	tests[0].chunk.SourceTable = ""

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pg.Upsert(ctx, tt.chunk)
			var verr *types.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
		})
	}
}

func TestPgVector_SearchDimensionValidation(t *testing.T) {
	pg := newTestPgVector(t)

	_, err := pg.Search(context.Background(), []float32{1, 0}, 5, nil)
	var verr *types.ValidationError
	require.True(t, errors.As(err, &verr))
}
