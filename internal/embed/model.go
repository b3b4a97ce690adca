package embed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

// Model is the external embedding model. Implementations return the raw
// vector; validation happens in Generator.
type Model interface {
	Embed(ctx context.Context, model, input string) ([]float32, error)
}

// OllamaModel calls the Ollama /api/embed endpoint.
type OllamaModel struct {
	client *api.Client
}

// NewOllamaModel creates a client for the Ollama server at host
// (for example http://localhost:11434).
func NewOllamaModel(host string) (*OllamaModel, error) {
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	return &OllamaModel{client: api.NewClient(base, http.DefaultClient)}, nil
}

// Embed implements Model.
func (m *OllamaModel) Embed(ctx context.Context, model, input string) ([]float32, error) {
	resp, err := m.client.Embed(ctx, &api.EmbedRequest{
		Model: model,
		Input: input,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, nil
	}
	return resp.Embeddings[0], nil
}
