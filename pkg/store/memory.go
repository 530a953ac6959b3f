package store

import (
	"context"
	"sort"
	"sync"

	"github.com/AhmedEldessouki1982/cdns/internal/models"
	"github.com/AhmedEldessouki1982/cdns/internal/types"
)

// Memory is the ephemeral, append-only engine variant: a flat in-process
// array of vectors scanned exhaustively on every search. Identity is
// insertion position, so there is no natural-key upsert: Upsert appends,
// and re-ingesting the same field stores duplicates rather than replacing.
// Nothing survives a process restart. Vector and metadata appends happen
// under one lock so the two slices can never go out of alignment.
type Memory struct {
	dim int

	mu      sync.RWMutex
	vectors [][]float32
	metas   []models.Chunk
}

func NewMemory(dim int) (*Memory, error) {
	if dim <= 0 {
		return nil, types.Validationf("memory index: dimension must be positive, got %d", dim)
	}
	return &Memory{dim: dim}, nil
}

// Add appends vectors and their parallel metadata at the end of the index.
// The slices must have equal length and every vector exactly the index
// dimension; a violation fails with a validation error before anything is
// written, so a rejected call never leaves a partial batch behind.
func (m *Memory) Add(vectors [][]float32, metas []models.Chunk) error {
	if len(vectors) == 0 {
		return &types.ValidationError{Msg: "add: no vectors provided"}
	}
	if len(vectors) != len(metas) {
		return types.Validationf("add: vectors and metadata length mismatch: %d != %d", len(vectors), len(metas))
	}
	for i, v := range vectors {
		if len(v) != m.dim {
			return types.Validationf("add: vector at index %d has %d dimensions, index requires %d", i, len(v), m.dim)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors = append(m.vectors, vectors...)
	m.metas = append(m.metas, metas...)
	return nil
}

// Upsert appends one chunk. The name keeps the shared index contract; on
// this engine it never replaces.
func (m *Memory) Upsert(_ context.Context, chunk models.Chunk) error {
	return m.Add([][]float32{chunk.Embedding}, []models.Chunk{chunk})
}

// Search brute-forces squared Euclidean distance against every stored
// vector and returns up to min(k, stored) entries ordered by non-decreasing
// distance. The reported score is that distance (smaller = closer). Tag
// filtering happens before truncation to k.
func (m *Memory) Search(_ context.Context, embedding []float32, k int, tags []string) ([]models.RetrievedChunk, error) {
	if err := checkDim(embedding, m.dim); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 6
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		id   int
		dist float64
	}
	candidates := make([]scored, 0, len(m.vectors))
	for i, v := range m.vectors {
		if !tagsIntersect(m.metas[i].Tags, tags) {
			continue
		}
		candidates = append(candidates, scored{id: i, dist: squaredDistance(embedding, v)})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})
	if k > len(candidates) {
		k = len(candidates)
	}

	results := make([]models.RetrievedChunk, 0, k)
	for _, c := range candidates[:k] {
		meta := m.metas[c.id]
		results = append(results, models.RetrievedChunk{
			ID:          int64(c.id),
			Content:     meta.Content,
			SourceTable: meta.SourceTable,
			SourcePK:    meta.SourcePK,
			Field:       meta.Field,
			Score:       c.dist,
		})
	}
	return results, nil
}

func (m *Memory) Close() {}

// Len reports how many entries the index holds.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

func squaredDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// tagsIntersect reports whether the entry matches the filter: an empty
// filter matches everything, otherwise the tag sets must share an element.
func tagsIntersect(entryTags, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, t := range entryTags {
		for _, f := range filter {
			if t == f {
				return true
			}
		}
	}
	return false
}

var _ types.Index = (*Memory)(nil)
