// Package rag holds the vector store backends used for retrieval.
package rag

import (
	"context"
	"strings"

	"github.com/hunterwarburton/pantry/internal/core"
)

// Default names used when the configuration leaves them empty.
const (
	DefaultCollection = "Vector"
	DefaultIndex      = "cvector"
	DefaultField      = "embedding"

	fieldText = "text"
)

// Bootstrapper is implemented by stores that can create the collection and
// its vector index themselves. The index is normally managed outside the bot.
type Bootstrapper interface {
	EnsureCollection(ctx context.Context, collection, index, field string) error
}

// storable keeps the records that carry a vector and non-blank text.
func storable(records []core.Record) []core.Record {
	out := make([]core.Record, 0, len(records))
	for _, r := range records {
		if len(r.Embedding) == 0 || strings.TrimSpace(r.Text) == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

func indexError(req core.SearchRequest, kind string) error {
	return &core.IndexError{Collection: req.Collection, Index: req.Index, Kind: kind}
}

// candidatePool returns the number of candidates to request from the index.
func candidatePool(req core.SearchRequest) int {
	if req.NumCandidates < req.Limit {
		return req.Limit
	}
	return req.NumCandidates
}
