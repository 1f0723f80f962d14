package ai

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"pdfrag/internal/config"
	"pdfrag/internal/logger"
)

// EmbeddingService converts text into fixed-dimension vectors using Google
// Generative AI (text-embedding-004 by default). The genai client is created
// once on first use; ingestion and retrieval share the same instance so both
// sides of a similarity comparison live in the same vector space.
type EmbeddingService struct {
	cfg *config.Config

	once    sync.Once
	client  *genai.Client
	initErr error
}

func NewEmbeddingService(cfg *config.Config) *EmbeddingService {
	return &EmbeddingService{cfg: cfg}
}

func (s *EmbeddingService) model(ctx context.Context) (*genai.EmbeddingModel, error) {
	s.once.Do(func() {
		if s.cfg.GeminiAPIKey == "" {
			s.initErr = fmt.Errorf("missing GEMINI_API_KEY for embeddings")
			return
		}
		logger.Info("Initializing embedding client", "model", s.cfg.GoogleEmbeddingsModel)
		s.client, s.initErr = genai.NewClient(ctx, option.WithAPIKey(s.cfg.GeminiAPIKey))
	})
	if s.initErr != nil {
		return nil, s.initErr
	}
	return s.client.EmbeddingModel(s.cfg.GoogleEmbeddingsModel), nil
}

// EmbedBatch embeds many texts in a single API call. Any failure aborts the
// whole batch; callers must not write partial results to the index.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	model, err := s.model(ctx)
	if err != nil {
		return nil, err
	}

	batch := model.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("batch embedding failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(resp.Embeddings))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("no embedding returned for text %d", i)
		}
		if err := s.checkDimension(len(emb.Values)); err != nil {
			return nil, err
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// EmbedQuery embeds a single query string with the same model used at
// ingestion time.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	model, err := s.model(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	if err := s.checkDimension(len(resp.Embedding.Values)); err != nil {
		return nil, err
	}
	return resp.Embedding.Values, nil
}

// Dimension is the vector size the collection must be created with.
func (s *EmbeddingService) Dimension() int {
	return s.cfg.VectorDimensions
}

// A dimension mismatch means the configured VECTOR_DIM does not match the
// embedding model's output. That is a configuration error, not something to
// recover from at runtime.
func (s *EmbeddingService) checkDimension(got int) error {
	if got != s.cfg.VectorDimensions {
		return fmt.Errorf("embedding dimension %d does not match configured VECTOR_DIM %d", got, s.cfg.VectorDimensions)
	}
	return nil
}

// Close releases the underlying genai client, if it was ever created.
func (s *EmbeddingService) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
