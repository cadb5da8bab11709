package models

import "time"

// MemoryEmbedding is one chunk of text and its vector embedding, stored
// for similarity search by the Memory layer (e.g. past resolutions,
// CEO teachings, room-specific context).
type MemoryEmbedding struct {
	ID        string
	TenantID  string
	RoomID    string
	Source    string
	Content   string
	Embedding []float32
	CreatedAt time.Time
}

// CreateMemoryEmbeddingRequest contains the fields needed to persist a new
// embedding.
type CreateMemoryEmbeddingRequest struct {
	TenantID  string
	RoomID    string
	Source    string
	Content   string
	Embedding []float32
}

// SimilarMemory is one result of a nearest-neighbor memory search, paired
// with its cosine distance from the query embedding (lower is closer).
type SimilarMemory struct {
	Memory   MemoryEmbedding
	Distance float64
}
