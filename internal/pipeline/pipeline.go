// Package pipeline runs fetch, chunk, embed, replace, search and rank for a
// single configured document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hunterwarburton/pantry/internal/chunker"
	"github.com/hunterwarburton/pantry/internal/core"
	"github.com/hunterwarburton/pantry/internal/logger"
	"github.com/hunterwarburton/pantry/internal/rank"
)

// Messages carried by synthetic results.
const (
	MsgDownloadFailed       = "Failed to download or extract text from document"
	MsgSplitFailed          = "Failed to split document text"
	MsgQueryEmbeddingFailed = "Failed to generate query embedding"
	MsgTimedOut             = "Timed out waiting for the previous request to finish"

	msgNoResultsPrefix = "No results found. Ensure the vector search index"
	msgNoResults       = msgNoResultsPrefix + " '%s' exists on collection '%s' and is a vector-search index."
)

// IsStatusMessage reports whether results is a single synthetic message
// produced by Run rather than a ranked match.
func IsStatusMessage(results []core.RankedResult) bool {
	if len(results) != 1 || results[0].Similarity != 0 {
		return false
	}
	switch text := results[0].Text; text {
	case MsgDownloadFailed, MsgSplitFailed, MsgQueryEmbeddingFailed, MsgTimedOut:
		return true
	default:
		return strings.HasPrefix(text, msgNoResultsPrefix)
	}
}

// Config holds the tunables of a Pipeline.
type Config struct {
	Collection    string
	Index         string
	Field         string
	ChunkSize     int
	ChunkOverlap  int
	Limit         int
	Oversampling  int
	CacheTTL      time.Duration
	ProgressEvery int
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Collection:    "Vector",
		Index:         "cvector",
		Field:         "embedding",
		ChunkSize:     1000,
		ChunkOverlap:  200,
		Limit:         3,
		Oversampling:  20,
		CacheTTL:      300 * time.Second,
		ProgressEvery: 10,
	}
}

// IngestReport summarizes one ingestion.
type IngestReport struct {
	Chunks   int `json:"chunks"`
	Embedded int `json:"embedded"`
	Skipped  int `json:"skipped"`
	Stored   int `json:"stored"`
}

// Status describes the stored collection.
type Status struct {
	Collection string `json:"collection"`
	Index      string `json:"index"`
	Records    int64  `json:"records"`
}

// Pipeline wires the collaborators together. Run and Ingest hold a
// one-slot semaphore so the replace and search phases of two requests never
// interleave; waiting for it honours the caller's context.
type Pipeline struct {
	sem      chan struct{}
	cfg      Config
	source   core.DocumentSource
	embedder core.Embedder
	store    core.VectorStore
	cache    core.ResultCache
	log      logger.Sink
}

// New creates a Pipeline. cache may be nil.
func New(cfg Config, source core.DocumentSource, embedder core.Embedder, store core.VectorStore, cache core.ResultCache, log logger.Sink) *Pipeline {
	def := DefaultConfig()
	if cfg.Collection == "" {
		cfg.Collection = def.Collection
	}
	if cfg.Index == "" {
		cfg.Index = def.Index
	}
	if cfg.Field == "" {
		cfg.Field = def.Field
	}
	if cfg.Limit <= 0 {
		cfg.Limit = def.Limit
	}
	if cfg.Oversampling <= 0 {
		cfg.Oversampling = def.Oversampling
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = def.ProgressEvery
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{sem: make(chan struct{}, 1), cfg: cfg, source: source, embedder: embedder, store: store, cache: cache, log: log}
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Run re-ingests documentID and answers query against it. It never fails:
// terminal errors come back as a single result with similarity 0.
func (p *Pipeline) Run(ctx context.Context, documentID, query, requesterID string) []core.RankedResult {
	if err := p.lock(ctx); err != nil {
		p.log.Warnf("Request from %s gave up waiting: %v", requesterID, err)
		return synthetic(MsgTimedOut)
	}
	defer p.unlock()

	if _, err := p.ingest(ctx, documentID); err != nil {
		if errors.Is(err, chunker.ErrInvalidConfig) {
			return synthetic(MsgSplitFailed)
		}
		return synthetic(MsgDownloadFailed)
	}

	queryVec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		p.log.Errorf("Query embedding failed: %v", err)
		return synthetic(MsgQueryEmbeddingFailed)
	}

	candidates, err := p.store.ApproximateSearch(ctx, core.SearchRequest{
		Collection:    p.cfg.Collection,
		Index:         p.cfg.Index,
		Field:         p.cfg.Field,
		Vector:        queryVec,
		Limit:         p.cfg.Limit,
		NumCandidates: p.cfg.Limit * p.cfg.Oversampling,
	})
	if err != nil {
		p.log.Errorf("Approximate search failed: %v", err)
	}
	p.log.Debugf("Search returned %d candidates", len(candidates))

	results := rank.Top(rank.Rank(queryVec, candidates), p.cfg.Limit)
	p.cacheResults(ctx, requesterID, results)

	if len(results) == 0 {
		return synthetic(fmt.Sprintf(msgNoResults, p.cfg.Index, p.cfg.Collection))
	}
	return results
}

// Ingest fetches, chunks, embeds and stores documentID.
func (p *Pipeline) Ingest(ctx context.Context, documentID string) (IngestReport, error) {
	if err := p.lock(ctx); err != nil {
		return IngestReport{}, fmt.Errorf("waiting for the previous request: %w", err)
	}
	defer p.unlock()
	return p.ingest(ctx, documentID)
}

func (p *Pipeline) lock(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) unlock() { <-p.sem }

func (p *Pipeline) ingest(ctx context.Context, documentID string) (IngestReport, error) {
	var report IngestReport

	text, err := p.source.Fetch(ctx, documentID)
	if err != nil {
		p.log.Errorf("Fetching document %s failed: %v", documentID, err)
		return report, err
	}
	if strings.TrimSpace(text) == "" {
		err := fmt.Errorf("%w: document %s has no text", core.ErrDownloadFailed, documentID)
		p.log.Errorf("Fetching document %s failed: %v", documentID, err)
		return report, err
	}

	chunks, err := chunker.Split(text, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	if err != nil {
		p.log.Errorf("Splitting document %s failed: %v", documentID, err)
		return report, err
	}
	report.Chunks = len(chunks)
	p.log.Infof("Split document %s into %d chunks", documentID, len(chunks))

	records := p.embedChunks(ctx, chunks, &report)

	stored, err := p.store.ReplaceAll(ctx, p.cfg.Collection, records)
	if err != nil {
		p.log.Errorf("Persisting %d records failed: %v", len(records), err)
	}
	report.Stored = stored
	return report, nil
}

// embedChunks embeds every chunk, skipping the ones that fail.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []string, report *IngestReport) []core.Record {
	records := make([]core.Record, 0, len(chunks))
	for i, chunk := range chunks {
		vec, err := p.embedder.Embed(ctx, chunk)
		if err != nil {
			report.Skipped++
			p.log.Warnf("Skipping chunk %d/%d: %v", i+1, len(chunks), err)
		} else {
			report.Embedded++
			records = append(records, core.Record{Text: chunk, Embedding: vec})
		}

		if (i+1)%p.cfg.ProgressEvery == 0 && i+1 < len(chunks) {
			p.log.Infof("Embedded %d/%d chunks", i+1, len(chunks))
		}
	}
	p.log.Infof("Embedded %d/%d chunks (%d skipped)", report.Embedded, len(chunks), report.Skipped)
	return records
}

func (p *Pipeline) cacheResults(ctx context.Context, requesterID string, results []core.RankedResult) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Put(ctx, "chat:"+requesterID, results, p.cfg.CacheTTL); err != nil {
		p.log.Warnf("Caching results for %s failed: %v", requesterID, err)
	}
}

// Status reports the number of stored records.
func (p *Pipeline) Status(ctx context.Context) (Status, error) {
	n, err := p.store.Count(ctx, p.cfg.Collection)
	if err != nil {
		return Status{}, err
	}
	return Status{Collection: p.cfg.Collection, Index: p.cfg.Index, Records: n}, nil
}

func synthetic(msg string) []core.RankedResult {
	return []core.RankedResult{{Text: msg, Similarity: 0}}
}
