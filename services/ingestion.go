package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"pdfrag/internal/logger"
	"pdfrag/internal/telemetry"
	"pdfrag/models"
)

// ErrNoChunks is returned when no file in the batch yields any text; the
// index is left untouched in that case.
var ErrNoChunks = errors.New("no text could be extracted from any file")

// Extractor is the per-file text extraction boundary.
type Extractor interface {
	Extract(ctx context.Context, filePath string) ([]models.PageText, error)
}

// Embedder converts texts into fixed-dimension vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the vector collection boundary used by the pipelines.
type VectorIndex interface {
	EnsureCollection(ctx context.Context) error
	ReplaceAll(ctx context.Context, records []models.VectorRecord) error
	Search(ctx context.Context, vector []float32, topK int) ([]models.SearchHit, error)
	CountPoints(ctx context.Context) (int, error)
}

// IngestionService rebuilds the corpus from a batch of PDFs. Each run fully
// replaces whatever the previous run indexed.
type IngestionService struct {
	extractor Extractor
	chunker   *Chunker
	embedder  Embedder
	index     VectorIndex
	metrics   *telemetry.Metrics

	mu         sync.Mutex
	lastResult *models.IngestResult
}

func NewIngestionService(extractor Extractor, chunker *Chunker, embedder Embedder, index VectorIndex, metrics *telemetry.Metrics) *IngestionService {
	return &IngestionService{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		metrics:   metrics,
	}
}

// Ingest extracts, chunks, embeds and indexes the given PDFs as one batch.
// Files yielding no chunks are skipped; a batch yielding no chunks at all
// fails with ErrNoChunks. Embedding and upsert run once over the combined
// batch, and the index swap happens only after the whole batch embedded.
func (s *IngestionService) Ingest(ctx context.Context, paths []string) (*models.IngestResult, error) {
	tracer := otel.Tracer("ingestion")
	ctx, span := tracer.Start(ctx, "ingest.run")
	defer span.End()
	span.SetAttributes(attribute.Int("ingest.files", len(paths)))

	if len(paths) == 0 {
		return nil, fmt.Errorf("no files to ingest")
	}

	if err := s.index.EnsureCollection(ctx); err != nil {
		s.metrics.RecordIngest(ctx, len(paths), 0, false)
		return nil, fmt.Errorf("vector store unavailable: %w", err)
	}

	var allChunks []models.Chunk
	var skipped []string
	var summaries []models.FileSummary

	for _, path := range paths {
		name := filepath.Base(path)
		logger.Info("Processing PDF", "file", name)

		pages, err := s.extractor.Extract(ctx, path)
		if err != nil {
			logger.Warn("Extraction failed, skipping file", "file", name, "error", err)
			skipped = append(skipped, name)
			continue
		}

		chunks := s.chunker.ChunkPages(pages, name)
		if len(chunks) == 0 {
			logger.Warn("No text extracted, skipping file", "file", name)
			skipped = append(skipped, name)
			continue
		}

		logger.Info("Extracted chunks", "file", name, "chunks", len(chunks))
		summaries = append(summaries, summarizeFile(name, chunks))
		allChunks = append(allChunks, chunks...)
	}

	if len(allChunks) == 0 {
		s.metrics.RecordIngest(ctx, len(paths), 0, false)
		return nil, ErrNoChunks
	}

	logger.Info("Generating embeddings", "chunks", len(allChunks))
	texts := make([]string, len(allChunks))
	for i, c := range allChunks {
		texts[i] = c.Text
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		s.metrics.RecordIngest(ctx, len(paths), 0, false)
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	records := make([]models.VectorRecord, len(allChunks))
	for i, c := range allChunks {
		records[i] = models.VectorRecord{
			ID:     uuid.NewString(),
			Vector: vectors[i],
			Payload: models.ChunkPayload{
				Text:       c.Text,
				SourceFile: c.SourceFile,
				PageNumber: c.PageNumber,
				ChunkIndex: c.ChunkIndex,
				ChunkID:    c.ChunkID(),
			},
		}
	}

	if err := s.index.ReplaceAll(ctx, records); err != nil {
		s.metrics.RecordIngest(ctx, len(paths), 0, false)
		return nil, fmt.Errorf("index update failed: %w", err)
	}

	result := &models.IngestResult{
		TotalChunks:   len(allChunks),
		FilesIngested: len(summaries),
		FilesSkipped:  skipped,
		Summaries:     summaries,
	}

	s.mu.Lock()
	s.lastResult = result
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("ingest.chunks", result.TotalChunks))
	s.metrics.RecordIngest(ctx, len(paths), result.TotalChunks, true)

	logger.Info("Ingestion complete",
		"chunks", result.TotalChunks,
		"files_ingested", result.FilesIngested,
		"files_skipped", len(skipped))
	for _, sum := range summaries {
		logger.Info("Ingestion summary",
			"file", sum.File, "chunks", sum.Chunks,
			"pages", fmt.Sprintf("%d-%d", sum.FirstPage, sum.LastPage))
	}

	return result, nil
}

// LastResult returns the summary of the most recent successful ingestion.
func (s *IngestionService) LastResult() *models.IngestResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResult
}

func summarizeFile(name string, chunks []models.Chunk) models.FileSummary {
	first, last := chunks[0].PageNumber, chunks[0].PageNumber
	for _, c := range chunks {
		if c.PageNumber < first {
			first = c.PageNumber
		}
		if c.PageNumber > last {
			last = c.PageNumber
		}
	}
	return models.FileSummary{
		File:      name,
		Chunks:    len(chunks),
		FirstPage: first,
		LastPage:  last,
	}
}
