package telegram

import (
	"fmt"
	"strings"

	"github.com/hunterwarburton/pantry/internal/core"
	"github.com/hunterwarburton/pantry/internal/pipeline"
)

const (
	maxMessageLength = 4096
	maxMatchLength   = 1000
)

const msgNoMatches = "No results found."

// FormatResults renders ranked results as a chat message. Pipeline status
// messages are shown as is; matches that are not similar at all are not shown.
func FormatResults(results []core.RankedResult, limit int) string {
	if pipeline.IsStatusMessage(results) {
		return truncate(results[0].Text, maxMessageLength)
	}
	if len(results) == 0 || results[0].Similarity <= 0 {
		return msgNoMatches
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Top Match (Similarity: %.2f)\n%s", results[0].Similarity, truncate(results[0].Text, maxMatchLength))
	if len(results) > 1 {
		b.WriteString("\n\nOther matches:")
		for i, r := range results[1:] {
			fmt.Fprintf(&b, "\n\n%d. (Similarity: %.2f)\n%s", i+2, r.Similarity, truncate(r.Text, maxMatchLength))
		}
	}
	return truncate(b.String(), maxMessageLength)
}

// truncate cuts s to at most n characters, marking the cut with "...".
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
