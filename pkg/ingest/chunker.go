// Package ingest loads Federal Reserve speeches into the vector
// knowledge base: chunking, embedding, and upserting.
package ingest

import (
	"strings"
)

const (
	// DefaultChunkSize is the chunk target in characters.
	DefaultChunkSize = 1500

	// DefaultOverlap is how many characters consecutive chunks share.
	DefaultOverlap = 200

	// DefaultMaxChunkTokens caps chunk length against the embedding
	// model's context window.
	DefaultMaxChunkTokens = 512

	// boundaryWindow is how far back from the chunk end a sentence
	// boundary is searched for.
	boundaryWindow = 200
)

var sentenceDelimiters = []string{". ", "! ", "? ", "\n\n"}

// Chunker splits speech text into overlapping chunks, preferring
// sentence boundaries and enforcing a token ceiling.
type Chunker struct {
	chunkSize int
	overlap   int
	maxTokens int
	counter   *TokenCounter
}

// NewChunker creates a chunker with the given sizes; non-positive
// values fall back to the defaults. The counter enforces the token
// ceiling on every produced chunk.
func NewChunker(chunkSize, overlap, maxTokens int, counter *TokenCounter) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultOverlap
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxChunkTokens
	}
	return &Chunker{
		chunkSize: chunkSize,
		overlap:   overlap,
		maxTokens: maxTokens,
		counter:   counter,
	}
}

// Split chunks text with overlap. Chunks end on a sentence boundary
// when one falls within the boundary window, else on a word boundary.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= c.chunkSize {
		return c.capTokens([]string{text})
	}

	var chunks []string
	start := 0

	for start < len(text) {
		end := start + c.chunkSize

		if end < len(text) {
			end = c.adjustToBoundary(text, start, end)
		} else {
			end = len(text)
		}

		chunk := strings.TrimSpace(text[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(text) {
			break
		}
		next := end - c.overlap
		if next <= start {
			// Boundary adjustment must not stall the scan
			next = end
		}
		start = next
	}

	return c.capTokens(chunks)
}

// adjustToBoundary moves the chunk end back to the last sentence
// delimiter inside the boundary window, or to the last space when no
// sentence ends there.
func (c *Chunker) adjustToBoundary(text string, start, end int) int {
	windowStart := end - boundaryWindow
	if windowStart < start {
		windowStart = start
	}
	window := text[windowStart:end]

	for _, delimiter := range sentenceDelimiters {
		if idx := strings.LastIndex(window, delimiter); idx != -1 {
			return windowStart + idx + len(delimiter)
		}
	}

	if idx := strings.LastIndex(text[start:end], " "); idx != -1 {
		return start + idx
	}

	return end
}

// capTokens hard-splits any chunk that exceeds the token ceiling.
func (c *Chunker) capTokens(chunks []string) []string {
	if c.counter == nil {
		return chunks
	}
	capped := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if c.counter.Count(chunk) <= c.maxTokens {
			capped = append(capped, chunk)
			continue
		}
		for _, piece := range c.counter.SplitByTokens(chunk, c.maxTokens) {
			piece = strings.TrimSpace(piece)
			if piece != "" {
				capped = append(capped, piece)
			}
		}
	}
	return capped
}
