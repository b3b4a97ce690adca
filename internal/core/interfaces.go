package core

import (
	"context"
	"time"
)

// Embedder turns text into a validated embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore owns the persisted collection. ReplaceAll has full-replace
// semantics; the store only ever reflects the last ingested document.
type VectorStore interface {
	// ReplaceAll deletes every record in the collection and inserts the
	// records that carry a vector and non-blank text. Returns the number inserted.
	ReplaceAll(ctx context.Context, collection string, records []Record) (int, error)

	// ApproximateSearch confirms req.Index is a vector-search index on the
	// collection and returns up to req.Limit candidates with their vectors.
	// A missing or wrong-kind index yields an empty slice and an error
	// wrapping ErrIndexUnavailable.
	ApproximateSearch(ctx context.Context, req SearchRequest) ([]Record, error)

	// Count returns the number of records in the collection.
	Count(ctx context.Context, collection string) (int64, error)

	Close() error
}

// DocumentSource locates, downloads and converts a document to plain text.
type DocumentSource interface {
	Fetch(ctx context.Context, documentID string) (string, error)
}

// ResultCache stores a value under key for ttl. Fire-and-forget from the
// pipeline's point of view.
type ResultCache interface {
	Put(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}
