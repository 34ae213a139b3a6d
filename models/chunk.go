package models

// Chunk is the immutable unit of retrieval produced by a chunk builder:
// full content, a short summary used for the summary embedding path, and
// free-form metadata whose keys depend on the source document type.
type Chunk struct {
	ChunkID  string         `json:"chunk_id"`
	Content  string         `json:"content"`
	Summary  string         `json:"summary"`
	Metadata map[string]any `json:"metadata"`
}
