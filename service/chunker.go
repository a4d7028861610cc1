package service

import (
	"strings"

	"pharmassist-backend/models"

	"github.com/google/uuid"
)

const (
	// DefaultChunkSize is the target chunk length in characters
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the number of characters shared by consecutive chunks
	DefaultChunkOverlap = 200

	// sentenceBoundaryRatio is how far into the window a sentence terminator
	// must fall for the window to be truncated there
	sentenceBoundaryRatio = 0.7
)

// Chunker splits extracted document text into overlapping, sentence-aware
// segments sized for retrieval.
type Chunker struct {
	chunkSize int
	overlap   int
}

// NewChunker creates a chunker. Non-positive parameters fall back to the
// defaults; overlap is capped below chunk size.
func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	return &Chunker{
		chunkSize: chunkSize,
		overlap:   overlap,
	}
}

// Chunk splits documentText into chunks for the given file. Ordinal indices
// start at 0 and are contiguous; whitespace-only slices are discarded before
// they receive an index. Empty or whitespace-only input yields zero chunks,
// which callers must treat as "no extractable text".
func (c *Chunker) Chunk(documentText string, fileID uuid.UUID) []models.DocumentChunk {
	runes := []rune(documentText)

	var chunks []models.DocumentChunk
	start := 0
	index := 0

	for start < len(runes) {
		end := start + c.chunkSize
		atEnd := end >= len(runes)
		if atEnd {
			end = len(runes)
		}

		window := runes[start:end]
		if !atEnd {
			// Prefer ending on a sentence boundary, but only when the
			// boundary falls far enough into the window that the chunk
			// does not become too short.
			if cut := lastRuneIndex(window, '.'); cut >= int(float64(c.chunkSize)*sentenceBoundaryRatio) {
				window = window[:cut+1]
			}
		}

		content := strings.TrimSpace(string(window))
		if content != "" {
			chunks = append(chunks, models.DocumentChunk{
				ID:         uuid.New(),
				FileID:     fileID,
				Content:    content,
				ChunkIndex: index,
				Metadata: models.ChunkMetadata{
					WordCount:  len(strings.Fields(content)),
					PageNumber: index/3 + 1, // rough estimate, not a true page mapping
				},
			})
			index++
		}

		if atEnd {
			break
		}

		// Boundary truncation can shrink the window below the overlap;
		// clamp the step so the scan always advances.
		step := len(window) - c.overlap
		if step < 1 {
			step = 1
		}
		start += step
	}

	return chunks
}

// lastRuneIndex returns the index of the last occurrence of r in runes, or -1
func lastRuneIndex(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
