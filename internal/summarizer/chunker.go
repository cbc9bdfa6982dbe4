package summarizer

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Chunker splits transcript text into pieces that fit the summarization
// budget. Token counts come from the cl100k_base encoding when available;
// loading it needs a BPE table, so when that fails the chunker degrades to a
// words-based estimate instead of refusing to work.
type Chunker struct {
	encoder     *tiktoken.Tiktoken
	chunkTokens int
}

func NewChunker(chunkTokens int) *Chunker {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		enc = nil
	}
	return &Chunker{encoder: enc, chunkTokens: chunkTokens}
}

// CountTokens measures text against the chunk budget. The fallback assumes
// roughly four tokens per three words, which overshoots slightly and keeps
// chunks on the safe side.
func (c *Chunker) CountTokens(text string) int {
	if c.encoder != nil {
		return len(c.encoder.Encode(text, nil, nil))
	}
	return (len(strings.Fields(text))*4 + 2) / 3
}

// Split breaks text into chunks of at most chunkTokens each, preferring
// sentence boundaries. A single oversized sentence is split on words rather
// than returned over budget.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if c.CountTokens(text) <= c.chunkTokens {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, sentence := range sentences(text) {
		if c.CountTokens(sentence) > c.chunkTokens {
			if current.Len() > 0 {
				chunks = append(chunks, strings.TrimSpace(current.String()))
				current.Reset()
			}
			chunks = append(chunks, c.splitWords(sentence)...)
			continue
		}
		candidate := sentence
		if current.Len() > 0 {
			candidate = current.String() + " " + sentence
		}
		if c.CountTokens(candidate) > c.chunkTokens {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
			current.WriteString(sentence)
			continue
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

func (c *Chunker) splitWords(sentence string) []string {
	words := strings.Fields(sentence)
	var chunks []string
	var current strings.Builder
	for _, word := range words {
		candidate := word
		if current.Len() > 0 {
			candidate = current.String() + " " + word
		}
		if current.Len() > 0 && c.CountTokens(candidate) > c.chunkTokens {
			chunks = append(chunks, current.String())
			current.Reset()
			current.WriteString(word)
			continue
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func sentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '?' || r == '!' || r == '\n' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}
