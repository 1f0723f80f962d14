package models

import "fmt"

// PageText is the text extracted from a single PDF page. PageNumber is
// 1-indexed; Text may be empty when both direct extraction and OCR fail.
type PageText struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// Chunk is the atomic retrieval unit: a window of words from one page,
// tagged with its provenance.
type Chunk struct {
	Text       string `json:"text"`
	SourceFile string `json:"source_file"`
	PageNumber int    `json:"page_number"`
	ChunkIndex int    `json:"chunk_index"` // 0-indexed, scoped to the page
}

// ChunkID derives the stable, reproducible identifier used for traceability.
// Storage keys are random UUIDs; this id only travels in the payload.
func (c Chunk) ChunkID() string {
	return fmt.Sprintf("%s_p%d_c%d", c.SourceFile, c.PageNumber, c.ChunkIndex)
}

// ChunkPayload is the metadata stored alongside a vector in the index.
// A fixed-field struct instead of an open map so missing fields fail loudly.
type ChunkPayload struct {
	Text       string `json:"text"`
	SourceFile string `json:"source_file"`
	PageNumber int    `json:"page_number"`
	ChunkIndex int    `json:"chunk_index"`
	ChunkID    string `json:"chunk_id"`
}

// VectorRecord is a chunk embedding ready to be upserted.
type VectorRecord struct {
	ID      string       `json:"id"` // random UUID, unique per upsert
	Vector  []float32    `json:"vector"`
	Payload ChunkPayload `json:"payload"`
}

// SearchHit is one nearest-neighbor match with its cosine similarity score.
type SearchHit struct {
	ID      string       `json:"id"`
	Score   float32      `json:"score"`
	Payload ChunkPayload `json:"payload"`
}

// FileSummary describes what one source file contributed to the index.
type FileSummary struct {
	File      string `json:"file"`
	Chunks    int    `json:"chunks"`
	FirstPage int    `json:"first_page"`
	LastPage  int    `json:"last_page"`
}

// IngestResult is the outcome of one ingestion run.
type IngestResult struct {
	TotalChunks   int           `json:"total_chunks"`
	FilesIngested int           `json:"files_ingested"`
	FilesSkipped  []string      `json:"files_skipped,omitempty"`
	Summaries     []FileSummary `json:"summaries"`
}
