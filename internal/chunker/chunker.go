// Package chunker splits extracted text into overlapping chunks with
// deterministic identities, preferring sentence and paragraph boundaries
// over hard cuts.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"unicode"

	"github.com/clienthubhq/clienthub-api/internal/models"
)

// DefaultChunkSize is the default number of runes per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping runes.
const DefaultChunkOverlap = 200

// Chunker splits document text into bounded chunks. Each chunk ends at the
// latest paragraph or sentence boundary inside its window when one exists
// past the window midpoint, and at the size limit otherwise. Chunk identity
// is a pure function of the document content hash and the chunk offset, so
// re-chunking unchanged content always reproduces the same IDs.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in runes.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between adjacent chunks in runes.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Ensure overlap doesn't exceed chunk size
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}

	return c
}

// Split chunks the document text. Offsets are measured in runes so a chunk
// never splits a multi-byte character. Every chunk after the first begins
// overlap runes before the previous chunk's end. Empty text produces no
// chunks; text no longer than the chunk size produces exactly one.
func (c *Chunker) Split(doc *models.ExtractedDocument) []models.Chunk {
	if doc == nil || doc.Text == "" {
		return nil
	}

	runes := []rune(doc.Text)
	total := len(runes)

	chunks := make([]models.Chunk, 0, total/(c.chunkSize-c.overlap)+1)

	start := 0
	for start < total {
		end := c.cut(runes, start)

		chunks = append(chunks, models.Chunk{
			ID:          ChunkID(doc.ContentHash, start),
			ContentHash: doc.ContentHash,
			SourceURL:   doc.SourceURL,
			Offset:      start,
			Text:        string(runes[start:end]),
			FetchedAt:   doc.FetchedAt,
		})

		if end == total {
			break
		}
		start = end - c.overlap
	}

	return chunks
}

// cut returns the exclusive end of the chunk starting at start. Paragraph
// breaks take priority over sentence ends; both are searched backward from
// the size limit so the cut is as late as possible. The floor keeps a
// boundary cut from producing a chunk shorter than half a window or from
// moving the next start backwards.
func (c *Chunker) cut(runes []rune, start int) int {
	end := start + c.chunkSize
	if end >= len(runes) {
		return len(runes)
	}

	floor := start + c.chunkSize/2
	if min := start + c.overlap + 1; floor < min {
		floor = min
	}

	for i := end; i > floor; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	for i := end; i > floor; i-- {
		if isSentenceEnd(runes[i-1]) && unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// ChunkID derives the deterministic chunk identifier from the document
// content hash and the chunk's rune offset.
func ChunkID(contentHash string, offset int) string {
	sum := sha256.Sum256([]byte(contentHash + ":" + strconv.Itoa(offset)))
	return hex.EncodeToString(sum[:])
}
