package server_test

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AhmedEldessouki1982/cdns/internal/models"
	"github.com/AhmedEldessouki1982/cdns/internal/types"
	"github.com/AhmedEldessouki1982/cdns/pkg/rag"
	"github.com/AhmedEldessouki1982/cdns/pkg/store"
	"github.com/AhmedEldessouki1982/cdns/server"
)

const testDim = 64

type wordEmbedder struct{}

func (wordEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, testDim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,:;!?\"'()")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%testDim]++
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

type fixedCompleter struct{ reply string }

func (c fixedCompleter) Complete(context.Context, []types.Message, float64) (string, error) {
	return c.reply, nil
}

type stubRecords struct {
	records []rag.SourceRecord
}

func (s *stubRecords) Table() string { return "tods" }

func (s *stubRecords) ListPage(_ context.Context, offset, limit int) ([]rag.SourceRecord, error) {
	if offset >= len(s.records) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.records) {
		end = len(s.records)
	}
	return s.records[offset:end], nil
}

func newTestServer(t *testing.T, reply string, records rag.RecordSource) *server.Server {
	t.Helper()
	idx, err := store.NewMemory(testDim)
	require.NoError(t, err)
	pipeline := rag.NewPipeline(wordEmbedder{}, fixedCompleter{reply: reply}, idx, rag.Config{MaxChars: 40}, zerolog.Nop())
	return server.New(server.Config{DocsDir: t.TempDir()}, pipeline, records, zerolog.Nop())
}

func doJSON(t *testing.T, handler http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestIngestAndSearch(t *testing.T) {
	srv := newTestServer(t, "ok", nil)

	rec, body := doJSON(t, srv.Handler(), http.MethodPost, "/rag/ingest", `{
		"source_table": "tods",
		"source_pk": "TOD-7",
		"field": "description",
		"content": "Compressor tripped due to vibration.\n\nRoot cause: bearing wear.",
		"tags": ["compressor"]
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["chunks"])

	rec, body = doJSON(t, srv.Handler(), http.MethodGet, "/rag/search?q=compressor+trip&k=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	results := body["results"].([]any)
	require.Len(t, results, 2)
	first := results[0].(map[string]any)
	assert.Equal(t, "Compressor tripped due to vibration.", first["content"])
	assert.Equal(t, "TOD-7", first["source_pk"])
}

func TestSearch_TagFilter(t *testing.T) {
	srv := newTestServer(t, "ok", nil)

	for _, req := range []string{
		`{"source_table": "tods", "source_pk": "TOD-1", "field": "description", "content": "Compressor inspection pending.", "tags": ["open"]}`,
		`{"source_table": "tods", "source_pk": "TOD-2", "field": "description", "content": "Compressor inspection finished.", "tags": ["closed"]}`,
	} {
		rec, _ := doJSON(t, srv.Handler(), http.MethodPost, "/rag/ingest", req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, body := doJSON(t, srv.Handler(), http.MethodGet, "/rag/search?q=compressor+inspection&tags=closed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	results := body["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "TOD-2", results[0].(map[string]any)["source_pk"])
}

func TestIngest_ValidationErrors(t *testing.T) {
	srv := newTestServer(t, "ok", nil)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"source_table":`},
		{"missing key parts", `{"content": "text"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := doJSON(t, srv.Handler(), http.MethodPost, "/rag/ingest", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestSearch_BadK(t *testing.T) {
	srv := newTestServer(t, "ok", nil)

	rec, _ := doJSON(t, srv.Handler(), http.MethodGet, "/rag/search?q=x&k=many", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnswer_EmptyIndex(t *testing.T) {
	srv := newTestServer(t, "Not enough information.", nil)

	req := httptest.NewRequest(http.MethodGet, "/rag/answer?q=What+caused+the+trip%3F", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var answer models.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
	assert.Equal(t, "Not enough information.", answer.Answer)
	assert.NotNil(t, answer.Citations)
	assert.Empty(t, answer.Citations)
}

func TestAnswer_MissingQuestion(t *testing.T) {
	srv := newTestServer(t, "ok", nil)

	rec, _ := doJSON(t, srv.Handler(), http.MethodGet, "/rag/answer", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBackfill(t *testing.T) {
	records := &stubRecords{records: []rag.SourceRecord{
		{PK: "TOD-1", Content: "Compressor tripped due to vibration."},
		{PK: "TOD-2", Content: ""},
	}}
	srv := newTestServer(t, "ok", records)

	rec, body := doJSON(t, srv.Handler(), http.MethodPost, "/rag/backfill", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["records"])
	assert.Equal(t, float64(1), body["chunks"])
	assert.Equal(t, float64(0), body["failed"])
}

func TestBackfill_ConfiguredField(t *testing.T) {
	records := &stubRecords{records: []rag.SourceRecord{
		{PK: "TOD-1", Content: "Compressor tripped due to vibration."},
	}}
	idx, err := store.NewMemory(testDim)
	require.NoError(t, err)
	pipeline := rag.NewPipeline(wordEmbedder{}, fixedCompleter{reply: "ok"}, idx, rag.Config{}, zerolog.Nop())
	srv := server.New(server.Config{DocsDir: t.TempDir(), BackfillField: "notes"}, pipeline, records, zerolog.Nop())

	rec, _ := doJSON(t, srv.Handler(), http.MethodPost, "/rag/backfill", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := doJSON(t, srv.Handler(), http.MethodGet, "/rag/search?q=compressor", "")
	require.Equal(t, http.StatusOK, rec.Code)
	results := body["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "notes", results[0].(map[string]any)["field"])
}

func TestBackfill_NoRecordStore(t *testing.T) {
	srv := newTestServer(t, "ok", nil)

	rec, _ := doJSON(t, srv.Handler(), http.MethodPost, "/rag/backfill", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadDocument_MissingFile(t *testing.T) {
	srv := newTestServer(t, "ok", nil)

	rec, _ := doJSON(t, srv.Handler(), http.MethodPost, "/documents", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, "ok", nil)

	rec, body := doJSON(t, srv.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}
