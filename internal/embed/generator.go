// Package embed produces validated embedding vectors for chunks and queries.
package embed

import (
	"context"
	"fmt"
	"strings"

	"github.com/hunterwarburton/pantry/internal/core"
	"github.com/hunterwarburton/pantry/internal/logger"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "nomic-embed-text"

// Generator implements core.Embedder on top of a Model. Every returned vector
// has exactly core.EmbeddingDim elements.
type Generator struct {
	model Model
	name  string
	log   logger.Sink
}

// NewGenerator creates a Generator using the named model.
func NewGenerator(model Model, name string, log logger.Sink) *Generator {
	if name == "" {
		name = DefaultModel
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Generator{model: model, name: name, log: log}
}

// ModelName returns the configured model name.
func (g *Generator) ModelName() string { return g.name }

// Embed trims text and asks the model for its vector. No retries.
func (g *Generator) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, core.ErrEmptyInput
	}

	vec, err := g.model.Embed(ctx, g.name, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrModelUnavailable, g.name, err)
	}
	if len(vec) == 0 {
		return nil, core.ErrEmptyEmbedding
	}
	if len(vec) != core.EmbeddingDim {
		return nil, &core.DimensionMismatchError{Expected: core.EmbeddingDim, Actual: len(vec)}
	}

	g.log.Debugf("embedded %d chars into %d dims", len(text), len(vec))
	return vec, nil
}
