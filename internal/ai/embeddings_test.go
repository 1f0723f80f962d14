package ai

import (
	"context"
	"os"
	"testing"

	"pdfrag/internal/config"
)

// Live-credential test; exercises the real embedding endpoint when a key is
// configured.
func TestEmbedQueryLive(t *testing.T) {
	if os.Getenv("GEMINI_API_KEY") == "" {
		t.Skip("GEMINI_API_KEY not set")
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		t.Skipf("config load failed: %v", err)
	}

	svc := NewEmbeddingService(cfg)
	defer svc.Close()

	vec, err := svc.EmbedQuery(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("embedding error: %v", err)
	}
	if len(vec) != cfg.VectorDimensions {
		t.Fatalf("dimension = %d, want %d", len(vec), cfg.VectorDimensions)
	}
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	svc := NewEmbeddingService(&config.Config{GeminiAPIKey: "test", VectorDimensions: 8})
	vectors, err := svc.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("empty batch must not error: %v", err)
	}
	if vectors != nil {
		t.Fatalf("expected nil vectors for empty batch")
	}
}
