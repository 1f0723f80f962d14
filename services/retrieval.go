package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"pdfrag/internal/logger"
	"pdfrag/internal/telemetry"
	"pdfrag/models"
)

// Generator is the text completion boundary: one prompt in, one answer out.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RetrievalService answers a question from the indexed corpus: embed the
// question, fetch the nearest chunks, assemble a tagged context and ask the
// generation model to answer only from it. Questions are independent; no
// conversational state survives between calls.
type RetrievalService struct {
	embedder  Embedder
	index     VectorIndex
	generator Generator
	topK      int
	metrics   *telemetry.Metrics
}

func NewRetrievalService(embedder Embedder, index VectorIndex, generator Generator, topK int, metrics *telemetry.Metrics) *RetrievalService {
	if topK <= 0 {
		topK = 5
	}
	return &RetrievalService{
		embedder:  embedder,
		index:     index,
		generator: generator,
		topK:      topK,
		metrics:   metrics,
	}
}

// Answer runs the full ask pipeline and returns the generated answer with
// one attribution per context chunk, in ranked order and unfiltered by score.
func (s *RetrievalService) Answer(ctx context.Context, question string) (*models.AskResponse, error) {
	tracer := otel.Tracer("retrieval")
	ctx, span := tracer.Start(ctx, "ask.run")
	defer span.End()

	queryVector, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		s.metrics.RecordQuestion(ctx, 0, false)
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	hits, err := s.index.Search(ctx, queryVector, s.topK)
	if err != nil {
		s.metrics.RecordQuestion(ctx, 0, false)
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	span.SetAttributes(attribute.Int("ask.hits", len(hits)))
	logger.Debug("Retrieved context", "question_chars", len(question), "hits", len(hits))

	contextBlock := BuildContext(hits)
	prompt := BuildPrompt(contextBlock, question)

	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.metrics.RecordQuestion(ctx, 0, false)
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	sources := BuildSources(hits)
	s.metrics.RecordQuestion(ctx, sources.ChunksUsed, true)

	return &models.AskResponse{
		Question: question,
		Answer:   answer,
		Sources:  sources,
	}, nil
}

// BuildContext concatenates the retrieved chunks in ranked order, best match
// first, each prefixed with its provenance tag and separated by a blank line.
func BuildContext(hits []models.SearchHit) string {
	var b strings.Builder
	for i, hit := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Source: %s, Page %d]\n%s", hit.Payload.SourceFile, hit.Payload.PageNumber, hit.Payload.Text)
	}
	return b.String()
}

// BuildPrompt embeds the tagged context and the verbatim question into the
// grounded-answer instructions.
func BuildPrompt(contextBlock, question string) string {
	return fmt.Sprintf(`You are an assistant answering questions based only on the provided document context.

Context:
%s

Question:
%s

Instructions:
- Answer only using the provided context.
- Cite the source as [filename, page] for each claim you make.
- If the context contains nothing relevant, state that the information is not available in the documents.
- If the question has multiple parts, answer each part using whatever context is relevant to it.`, contextBlock, question)
}

// BuildSources turns the hits placed in the context into the structured
// attribution block returned to the caller.
func BuildSources(hits []models.SearchHit) models.SourcesBlock {
	details := make([]models.SourceAttribution, 0, len(hits))
	citations := make([]string, 0, len(hits))
	var files []string
	seen := make(map[string]bool)

	for _, hit := range hits {
		details = append(details, models.SourceAttribution{
			File:      hit.Payload.SourceFile,
			Page:      hit.Payload.PageNumber,
			ChunkID:   hit.Payload.ChunkID,
			Relevance: RelevancePercent(hit.Score),
		})
		citations = append(citations, fmt.Sprintf("%s (Page %d)", hit.Payload.SourceFile, hit.Payload.PageNumber))
		if !seen[hit.Payload.SourceFile] {
			seen[hit.Payload.SourceFile] = true
			files = append(files, hit.Payload.SourceFile)
		}
	}

	return models.SourcesBlock{
		ChunksUsed: len(hits),
		Details:    details,
		Files:      files,
		Citations:  citations,
	}
}

// RelevancePercent converts a cosine similarity score into a display
// percentage rounded to one decimal. Qdrant returns similarity (higher is
// better), so the score maps directly; it is clamped to [0,100].
func RelevancePercent(score float32) float64 {
	pct := float64(score) * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return math.Round(pct*10) / 10
}
