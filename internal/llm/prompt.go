package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/hunterwarburton/pantry/internal/core"
	"github.com/hunterwarburton/pantry/internal/rag"
)

// DefaultPrePrompt is the base instruction of every summary request.
const DefaultPrePrompt = "You are a helpful assistant. Keep the answer short and suitable for a Telegram chat."

// PromptGenerator builds the messages sent to the chat model.
type PromptGenerator struct {
	PrePrompt string
	Style     []string
	now       func() time.Time
}

// NewPromptGenerator creates a generator with the given style hints.
func NewPromptGenerator(prePrompt string, style ...string) *PromptGenerator {
	if prePrompt == "" {
		prePrompt = DefaultPrePrompt
	}
	return &PromptGenerator{PrePrompt: prePrompt, Style: style, now: time.Now}
}

// SystemPrompt returns the system message.
func (pg *PromptGenerator) SystemPrompt() string {
	var b strings.Builder
	b.WriteString(pg.PrePrompt + "\n\n")

	if len(pg.Style) > 0 {
		b.WriteString("Your communication style: ")
		b.WriteString(strings.Join(pg.Style, ", "))
		b.WriteString("\n\n")
	}

	b.WriteString("Answer only from the document passages you are given. ")
	b.WriteString("If they do not contain the answer, say so plainly.\n\n")
	b.WriteString(fmt.Sprintf("The current time (UTC) is %s.", pg.now().UTC().Format(time.RFC1123)))
	return b.String()
}

// UserPrompt combines the question with the ranked passages.
func (pg *PromptGenerator) UserPrompt(query string, results []core.RankedResult) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(strings.TrimSpace(query))
	b.WriteString("\n\nPassages (JSON, most similar first):\n")
	b.WriteString(rag.FormatResultsAsJSON(results))
	return b.String()
}
