package chunker

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_EmptyText(t *testing.T) {
	chunks, err := Split("", 1000, 200)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = Split(" \n\t ", 1000, 200)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplit_InvalidConfig(t *testing.T) {
	_, err := Split("text", 10, 10)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Split("text", 10, -1)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Split("text", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSplit_ShortTextIsSingleNormalizedChunk(t *testing.T) {
	chunks, err := Split("  hello \n\n  world\t ", 100, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello world"}, chunks)
}

func TestSplit_PrefersSentenceBreaks(t *testing.T) {
	text := "One two three. Four five six. Seven eight nine."

	chunks, err := Split(text, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"One two three.", "Four five six.", "Seven eight nine."}, chunks)
}

func TestSplit_ForcedBreakWithoutSeparators(t *testing.T) {
	chunks, err := Split("abcdefghijklmnopqrstuvwxyz", 10, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"abcdefghijk", "ijklmnopqrs", "qrstuvwxyz"}, chunks)
}

func TestSplit_RepeatedWords(t *testing.T) {
	text := strings.Repeat("word ", 2000)

	chunks, err := Split(text, 1000, 200)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		assert.NotEmpty(t, c)
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 1001, "chunk %d too long", i)
		if i == 0 {
			continue
		}
		// The next chunk starts inside the last ~200 characters of the previous one.
		prev := chunks[i-1]
		head := c
		if len(head) > 100 {
			head = head[:100]
		}
		assert.True(t, strings.Contains(prev[len(prev)-210:], head), "chunk %d does not overlap its predecessor", i)
	}
}

func TestSplit_ProgressWhenOverlapWouldStall(t *testing.T) {
	text := "a." + strings.Repeat("b", 20)

	chunks, err := Split(text, 10, 5)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "a.", chunks[0])
	assert.True(t, strings.HasSuffix(text, chunks[len(chunks)-1]))

	dense := strings.Repeat("a.", 50)
	chunks, err = Split(dense, 4, 3)
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
}

func TestSplit_ChunksCoverNormalizedText(t *testing.T) {
	words := []string{"alpha", "beta", "gamma.", "delta", "epsilon", "zeta.", "eta", "theta", "iota"}
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 25; run++ {
		var b strings.Builder
		n := 50 + rng.Intn(400)
		for i := 0; i < n; i++ {
			b.WriteString(words[rng.Intn(len(words))])
			if rng.Intn(5) == 0 {
				b.WriteString("\n\n")
			} else {
				b.WriteString(" ")
			}
		}
		size := 40 + rng.Intn(200)
		overlap := rng.Intn(size)

		normalized := Normalize(b.String())
		chunks, err := Split(b.String(), size, overlap)
		require.NoError(t, err)
		require.NotEmpty(t, chunks)

		assert.True(t, strings.HasPrefix(normalized, chunks[0]))
		assert.True(t, strings.HasSuffix(normalized, chunks[len(chunks)-1]))
		for _, c := range chunks {
			assert.NotEmpty(t, c)
			assert.Equal(t, strings.TrimSpace(c), c)
			assert.Contains(t, normalized, c)
		}

		// Every chunk starts at or before the end of the one before it, so
		// together they reconstruct the whole normalized text.
		runes := []rune(normalized)
		ws := windows(runes, size, overlap)
		require.NotEmpty(t, ws)
		assert.Equal(t, 0, ws[0].start)
		assert.Equal(t, len(runes), ws[len(ws)-1].end)
		var fromWindows []string
		for i, w := range ws {
			if i > 0 {
				assert.Greater(t, w.start, ws[i-1].start, "run %d: chunk %d does not advance", run, i)
				assert.LessOrEqual(t, w.start, ws[i-1].end, "run %d: gap before chunk %d", run, i)
			}
			if c := strings.TrimSpace(string(runes[w.start:w.end])); c != "" {
				fromWindows = append(fromWindows, c)
			}
		}
		assert.Equal(t, fromWindows, chunks)
	}
}

func TestWindows_OverlapAndNoGap(t *testing.T) {
	runes := []rune("abcdefghijklmnopqrstuvwxyz")
	assert.Equal(t, []window{{0, 11}, {8, 19}, {16, 26}}, windows(runes, 10, 3))

	runes = []rune("One two three. Four five six.")
	assert.Equal(t, []window{{0, 14}, {14, 29}}, windows(runes, 20, 0))
}

func TestSplit_MultibyteCharactersCountAsOne(t *testing.T) {
	text := strings.Repeat("ñ", 30)

	chunks, err := Split(text, 10, 2)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 11)
	}
}
