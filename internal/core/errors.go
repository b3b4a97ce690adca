package core

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every component.
var (
	ErrDownloadFailed    = errors.New("document download failed")
	ErrUnsupportedFormat = errors.New("unsupported document format")

	ErrEmbedding         = errors.New("embedding failed")
	ErrEmptyInput        = fmt.Errorf("%w: empty input", ErrEmbedding)
	ErrModelUnavailable  = fmt.Errorf("%w: model unavailable", ErrEmbedding)
	ErrEmptyEmbedding    = fmt.Errorf("%w: model returned no vector", ErrEmbedding)
	ErrDimensionMismatch = fmt.Errorf("%w: dimension mismatch", ErrEmbedding)

	ErrIndexUnavailable = errors.New("vector search index unavailable")
	ErrStore            = errors.New("vector store failure")
	ErrCache            = errors.New("result cache failure")
)

// DimensionMismatchError reports an embedding of the wrong length.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Is lets errors.Is match ErrDimensionMismatch and ErrEmbedding.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch || target == ErrEmbedding
}

// IndexError describes why a named index cannot serve vector search.
type IndexError struct {
	Collection string
	Index      string
	Kind       string // empty when the index does not exist
}

func (e *IndexError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("vector search index %q not found on collection %q", e.Index, e.Collection)
	}
	return fmt.Sprintf("index %q on collection %q is of kind %q, not a vector search index", e.Index, e.Collection, e.Kind)
}

func (e *IndexError) Unwrap() error { return ErrIndexUnavailable }
