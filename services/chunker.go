package services

import (
	"fmt"
	"strings"

	"pdfrag/models"
)

// Chunker splits page text into overlapping word windows. Chunking is pure
// and deterministic: the same text and parameters always produce the same
// chunk sequence.
type Chunker struct {
	chunkSize int
	overlap   int
}

// NewChunker validates the windowing parameters. overlap must be strictly
// less than chunkSize or the window start would never advance.
func NewChunker(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must satisfy 0 <= overlap < chunk size, got %d/%d", overlap, chunkSize)
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// ChunkPage windows the page text into chunks of chunkSize words advancing by
// chunkSize-overlap, clipped at the page end. Whitespace-only windows are
// dropped without consuming a chunk index, so indices within a page are a
// contiguous 0-based sequence over the chunks actually produced.
func (c *Chunker) ChunkPage(pageText string, pageNumber int, sourceFile string) []models.Chunk {
	words := strings.Fields(pageText)
	if len(words) == 0 {
		return nil
	}

	var chunks []models.Chunk
	chunkIndex := 0

	for start := 0; start < len(words); {
		end := start + c.chunkSize
		if end > len(words) {
			end = len(words)
		}

		text := strings.Join(words[start:end], " ")
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, models.Chunk{
				Text:       text,
				SourceFile: sourceFile,
				PageNumber: pageNumber,
				ChunkIndex: chunkIndex,
			})
			chunkIndex++
		}

		// A window clipped at the page end is the last one; a further window
		// would only repeat words the overlap already covered.
		if end == len(words) {
			break
		}
		start = end - c.overlap
	}

	return chunks
}

// ChunkPages chunks every page of a document in order.
func (c *Chunker) ChunkPages(pages []models.PageText, sourceFile string) []models.Chunk {
	var chunks []models.Chunk
	for _, page := range pages {
		chunks = append(chunks, c.ChunkPage(page.Text, page.PageNumber, sourceFile)...)
	}
	return chunks
}
