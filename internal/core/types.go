package core

// EmbeddingDim is the only vector length the pipeline accepts.
const EmbeddingDim = 768

// Record is a stored chunk and its embedding.
type Record struct {
	Text      string    `json:"text" bson:"text"`
	Embedding []float32 `json:"embedding,omitempty" bson:"embedding,omitempty"`
}

// SearchRequest describes one approximate nearest-neighbor query.
type SearchRequest struct {
	Collection    string
	Index         string
	Field         string
	Vector        []float32
	Limit         int
	NumCandidates int // candidate pool handed to the index, >= Limit
}

// RankedResult is a chunk annotated with its exact cosine similarity to the query.
type RankedResult struct {
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}
