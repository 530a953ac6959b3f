package rag_test

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/AhmedEldessouki1982/cdns/internal/types"
)

const fakeDim = 64

// hashEmbedder is a deterministic bag-of-words embedder: each word
// increments one of fakeDim buckets, then the vector is L2-normalized.
// Texts sharing words land close together under both cosine and
// Euclidean distance, which is all the ranking tests need.
type hashEmbedder struct {
	mu    sync.Mutex
	calls []string
}

func (e *hashEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls = append(e.calls, text)
	e.mu.Unlock()

	vec := make([]float32, fakeDim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,:;!?\"'()")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%fakeDim]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

func (e *hashEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// scriptedCompleter returns a fixed reply and records the prompts it saw.
type scriptedCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (c *scriptedCompleter) Complete(_ context.Context, messages []types.Message, _ float64) (string, error) {
	for _, m := range messages {
		c.prompts = append(c.prompts, m.Content)
	}
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

var (
	_ types.Embedder  = (*hashEmbedder)(nil)
	_ types.Completer = (*scriptedCompleter)(nil)
)
