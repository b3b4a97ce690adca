package rag

import (
	"encoding/json"

	"github.com/hunterwarburton/pantry/internal/core"
	"github.com/hunterwarburton/pantry/internal/logger"
)

// FormatResultsAsJSON renders ranked matches as the JSON context handed to
// the summarizer.
func FormatResultsAsJSON(results []core.RankedResult) string {
	if len(results) == 0 {
		return `{"matches": [], "message": "No relevant passages found."}`
	}

	type match struct {
		Rank       int     `json:"rank"`
		Passage    string  `json:"passage"`
		Similarity float64 `json:"similarity"`
	}

	out := make([]match, 0, len(results))
	for i, r := range results {
		out = append(out, match{Rank: i + 1, Passage: r.Text, Similarity: r.Similarity})
	}

	data, err := json.Marshal(map[string]interface{}{"matches": out})
	if err != nil {
		logger.Error("Failed to marshal search results to JSON: %v", err)
		return `{"error": "Failed to format results as JSON"}`
	}
	return string(data)
}
