// Package chunker splits document text into overlapping chunks that end on
// sentence or word boundaries where possible.
package chunker

import (
	"errors"
	"strings"
)

// ErrInvalidConfig is returned when chunkSize <= overlap or overlap < 0.
var ErrInvalidConfig = errors.New("chunk size must be greater than overlap, and overlap must be non-negative")

// Normalize collapses whitespace runs into single spaces and trims both ends.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Split normalizes text and cuts it into chunks of at most chunkSize
// characters (plus the break character). Each chunk after the first starts
// overlap characters before the previous break point.
func Split(text string, chunkSize, overlap int) ([]string, error) {
	if overlap < 0 || chunkSize <= overlap {
		return nil, ErrInvalidConfig
	}

	runes := []rune(Normalize(text))
	chunks := []string{}
	for _, w := range windows(runes, chunkSize, overlap) {
		if c := strings.TrimSpace(string(runes[w.start:w.end])); c != "" {
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}

// window is the rune range runes[start:end] of one chunk before trimming.
type window struct {
	start, end int
}

// windows returns the chunk ranges. Consecutive windows always advance and
// never leave a gap: start[i-1] < start[i] <= end[i-1].
func windows(runes []rune, chunkSize, overlap int) []window {
	var out []window
	cursor := 0
	for cursor < len(runes) {
		end := cursor + chunkSize
		if end >= len(runes) {
			out = append(out, window{cursor, len(runes)})
			break
		}

		brk := breakPoint(runes, cursor, end)
		out = append(out, window{cursor, brk + 1})

		next := brk + 1 - overlap
		if next < 0 {
			next = 0
		}
		// Overlap would stall the cursor; drop it for this step.
		if next <= cursor {
			next = brk + 1
		}
		cursor = next
	}
	return out
}

// breakPoint returns the index of the last '.' in runes[from:to+1], else the
// last space, else to.
func breakPoint(runes []rune, from, to int) int {
	space := -1
	for i := to; i >= from; i-- {
		switch runes[i] {
		case '.':
			return i
		case ' ':
			if space < 0 {
				space = i
			}
		}
	}
	if space >= 0 {
		return space
	}
	return to
}
