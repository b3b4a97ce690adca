// Package httpapi exposes the search pipeline over HTTP.
package httpapi

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/hunterwarburton/pantry/internal/core"
	"github.com/hunterwarburton/pantry/internal/logger"
	"github.com/hunterwarburton/pantry/internal/pipeline"
)

// Searcher runs the document pipeline.
type Searcher interface {
	Run(ctx context.Context, documentID, query, requesterID string) []core.RankedResult
	Status(ctx context.Context) (pipeline.Status, error)
}

// Summarizer turns ranked matches into a short answer.
type Summarizer interface {
	Summarize(ctx context.Context, query string, results []core.RankedResult) (string, error)
}

// Handler serves the search API.
type Handler struct {
	searcher   Searcher
	summarizer Summarizer
	documentID string
	timeout    time.Duration
	log        logger.Sink
}

// NewHandler creates a handler for documentID. summarizer may be nil.
func NewHandler(searcher Searcher, summarizer Summarizer, documentID string, timeout time.Duration, log logger.Sink) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		searcher:   searcher,
		summarizer: summarizer,
		documentID: documentID,
		timeout:    timeout,
		log:        log,
	}
}

// Register sets up the API routes.
func (h *Handler) Register(router fiber.Router) {
	api := router.Group("/api/v1")
	api.Get("/health", h.Health)
	api.Post("/search", h.Search)
	api.Get("/status", h.Status)
}

// Health reports liveness.
func (h *Handler) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "healthy"})
}

type searchRequest struct {
	Query       string `json:"query"`
	RequesterID string `json:"requester_id"`
	Summarize   bool   `json:"summarize"`
}

type match struct {
	Rank       int     `json:"rank"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

// Search runs the pipeline for the posted query.
func (h *Handler) Search(c fiber.Ctx) error {
	var body searchRequest
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	body.Query = strings.TrimSpace(body.Query)
	if body.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "query is required"})
	}
	if body.RequesterID == "" {
		body.RequesterID = "http"
	}

	ctx, cancel := h.context(c)
	defer cancel()

	results := h.searcher.Run(ctx, h.documentID, body.Query, body.RequesterID)
	matches := make([]match, len(results))
	for i, r := range results {
		matches[i] = match{Rank: i + 1, Text: r.Text, Similarity: r.Similarity}
	}

	resp := fiber.Map{"results": matches}
	if body.Summarize && h.summarizer != nil {
		answer, err := h.summarizer.Summarize(ctx, body.Query, results)
		if err != nil {
			h.log.Warnf("Summary failed for %q: %v", body.Query, err)
		} else {
			resp["answer"] = answer
		}
	}
	return c.JSON(resp)
}

// Status reports the stored collection size.
func (h *Handler) Status(c fiber.Ctx) error {
	ctx, cancel := h.context(c)
	defer cancel()

	st, err := h.searcher.Status(ctx)
	if err != nil {
		h.log.Errorf("Status failed: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "vector store unavailable"})
	}
	return c.JSON(st)
}

func (h *Handler) context(c fiber.Ctx) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.Context())
	}
	return context.WithTimeout(c.Context(), h.timeout)
}
