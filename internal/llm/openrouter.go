// Package llm summarizes search matches with an OpenAI-compatible chat model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hunterwarburton/pantry/internal/core"
	"github.com/hunterwarburton/pantry/internal/logger"
)

// Defaults for OpenRouter.
const (
	DefaultBaseURL   = "https://openrouter.ai/api/v1"
	DefaultModel     = "meta-llama/llama-3-70b-instruct"
	DefaultMaxTokens = 300
)

// ErrNothingToSummarize is returned when no real match was found.
var ErrNothingToSummarize = errors.New("no matches to summarize")

// Summarizer turns ranked matches into a short answer.
type Summarizer struct {
	client    openai.Client
	model     string
	maxTokens int64
	prompts   *PromptGenerator
	log       logger.Sink
}

// Config holds the chat model connection settings.
type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int64
}

// NewSummarizer creates a Summarizer talking to cfg.BaseURL.
func NewSummarizer(cfg Config, prompts *PromptGenerator, log logger.Sink, opts ...option.RequestOption) *Summarizer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if prompts == nil {
		prompts = NewPromptGenerator("")
	}
	if log == nil {
		log = logger.Nop()
	}

	opts = append([]option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHeader("X-Title", "pantry"),
	}, opts...)

	return &Summarizer{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		prompts:   prompts,
		log:       log,
	}
}

// Summarize asks the model to answer query from results. Synthetic results
// (similarity <= 0) are never sent.
func (s *Summarizer) Summarize(ctx context.Context, query string, results []core.RankedResult) (string, error) {
	if len(results) == 0 || results[0].Similarity <= 0 {
		return "", ErrNothingToSummarize
	}

	s.log.Infof("Sending %d matches to %s", len(results), s.model)
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(s.prompts.SystemPrompt()),
			openai.UserMessage(s.prompts.UserPrompt(query, results)),
		},
		MaxTokens: openai.Int(s.maxTokens),
	})
	if err != nil {
		s.log.Errorf("Chat completion failed: %v", err)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", errors.New("chat completion returned an empty answer")
	}
	return answer, nil
}
