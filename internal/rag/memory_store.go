package rag

import (
	"context"
	"sort"
	"sync"

	"github.com/hunterwarburton/pantry/internal/core"
	"github.com/hunterwarburton/pantry/internal/logger"
	"github.com/hunterwarburton/pantry/internal/rank"
)

// IndexKindVector marks an in-memory index as able to serve vector search.
const IndexKindVector = "vector"

// MemoryStore keeps collections in process. Used for local runs and tests;
// search is exhaustive over the stored vectors.
type MemoryStore struct {
	mu      sync.RWMutex
	data    map[string][]core.Record
	indexes map[string]map[string]string // collection -> index name -> kind
	log     logger.Sink
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(log logger.Sink) *MemoryStore {
	if log == nil {
		log = logger.Nop()
	}
	return &MemoryStore{
		data:    make(map[string][]core.Record),
		indexes: make(map[string]map[string]string),
		log:     log,
	}
}

// RegisterIndex declares an index of the given kind on a collection.
func (s *MemoryStore) RegisterIndex(collection, name, kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexes[collection] == nil {
		s.indexes[collection] = make(map[string]string)
	}
	s.indexes[collection][name] = kind
}

// EnsureCollection registers a vector index; the field name is ignored.
func (s *MemoryStore) EnsureCollection(_ context.Context, collection, index, _ string) error {
	s.RegisterIndex(collection, index, IndexKindVector)
	return nil
}

// ReplaceAll implements core.VectorStore.
func (s *MemoryStore) ReplaceAll(_ context.Context, collection string, records []core.Record) (int, error) {
	keep := storable(records)
	copied := make([]core.Record, len(keep))
	for i, r := range keep {
		copied[i] = core.Record{Text: r.Text, Embedding: append([]float32(nil), r.Embedding...)}
	}

	s.mu.Lock()
	s.data[collection] = copied
	s.mu.Unlock()

	s.log.Debugf("Replaced %s with %d records", collection, len(copied))
	return len(copied), nil
}

// ApproximateSearch implements core.VectorStore.
func (s *MemoryStore) ApproximateSearch(_ context.Context, req core.SearchRequest) ([]core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	kind, ok := s.indexes[req.Collection][req.Index]
	if !ok {
		return []core.Record{}, indexError(req, "")
	}
	if kind != IndexKindVector {
		return []core.Record{}, indexError(req, kind)
	}

	stored := s.data[req.Collection]
	order := make([]int, len(stored))
	scores := make([]float64, len(stored))
	for i, r := range stored {
		order[i] = i
		scores[i] = rank.CosineSimilarity(req.Vector, r.Embedding)
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	limit := req.Limit
	if limit <= 0 || limit > len(order) {
		limit = len(order)
	}
	out := make([]core.Record, 0, limit)
	for _, i := range order[:limit] {
		out = append(out, stored[i])
	}
	return out, nil
}

// Count implements core.VectorStore.
func (s *MemoryStore) Count(_ context.Context, collection string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data[collection])), nil
}

// Records returns a copy of the stored records of a collection.
func (s *MemoryStore) Records(collection string) []core.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Record(nil), s.data[collection]...)
}

// Close implements core.VectorStore.
func (s *MemoryStore) Close() error { return nil }
