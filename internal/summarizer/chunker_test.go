package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortTextIsOneChunk(t *testing.T) {
	c := NewChunker(2000)
	chunks := c.Split("Short transcript. Nothing to split here.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "Short transcript. Nothing to split here.", chunks[0])
}

func TestSplitEmptyText(t *testing.T) {
	c := NewChunker(2000)
	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("   \n  "))
}

func TestSplitLongTextKeepsBudgetAndOrder(t *testing.T) {
	c := NewChunker(20)

	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("The quick brown fox jumps over the lazy dog. ")
	}
	text := strings.TrimSpace(b.String())

	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.LessOrEqual(t, c.CountTokens(chunk), 20, "chunk %d over budget", i)
		assert.NotEmpty(t, strings.TrimSpace(chunk))
	}

	// No words lost or reordered.
	assert.Equal(t, strings.Fields(text), strings.Fields(strings.Join(chunks, " ")))
}

func TestSplitHandlesOversizedSentence(t *testing.T) {
	c := NewChunker(10)

	// One long sentence with no terminator until the end.
	sentence := strings.Repeat("word ", 120) + "end."
	chunks := c.Split(sentence)
	require.Greater(t, len(chunks), 1)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, c.CountTokens(chunk), 10, "chunk %d over budget", i)
	}
	assert.Equal(t, strings.Fields(sentence), strings.Fields(strings.Join(chunks, " ")))
}

func TestCountTokensGrowsWithText(t *testing.T) {
	c := NewChunker(2000)
	small := c.CountTokens("a few words")
	large := c.CountTokens(strings.Repeat("a few words ", 50))
	assert.Greater(t, large, small)
	assert.Zero(t, c.CountTokens(""))
}
