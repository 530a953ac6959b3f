package models

import "time"

// ChunkPart is one fragment emitted by the chunker, before embedding.
type ChunkPart struct {
	Index   int
	Content string
}

// Chunk is a unit of indexed text: a fragment of one field of one source
// record, together with its embedding and filtering metadata. The tuple
// (SourceTable, SourcePK, Field, ChunkIndex) identifies it within a
// persistent index.
type Chunk struct {
	SourceTable string
	SourcePK    string
	Field       string
	ChunkIndex  int
	Content     string
	Embedding   []float32
	Tags        []string
	UpdatedAt   time.Time
}

// RetrievedChunk is one ranked search result. Score semantics depend on the
// engine that produced it (cosine similarity for the persistent engine,
// squared L2 distance for the ephemeral one); results are always ordered
// best match first.
type RetrievedChunk struct {
	ID          int64   `json:"id"`
	Content     string  `json:"content"`
	SourceTable string  `json:"source_table"`
	SourcePK    string  `json:"source_pk"`
	Field       string  `json:"field"`
	Score       float64 `json:"score"`
}

// Answer is a generated answer paired with the chunks it was grounded in.
type Answer struct {
	Answer    string           `json:"answer"`
	Citations []RetrievedChunk `json:"citations"`
}
