package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	IngestRuns       metric.Int64Counter
	ChunksIndexed    metric.Int64Counter
	QuestionsAsked   metric.Int64Counter
	GeminiTokensUsed metric.Int64Counter
	ExtractionTime   metric.Float64Histogram
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("pdfrag")

	ingestRuns, err := meter.Int64Counter(
		"ingest.runs.total",
		metric.WithDescription("Total ingestion runs"),
	)
	if err != nil {
		return nil, err
	}

	chunksIndexed, err := meter.Int64Counter(
		"ingest.chunks.indexed",
		metric.WithDescription("Total chunks written to the vector index"),
	)
	if err != nil {
		return nil, err
	}

	questionsAsked, err := meter.Int64Counter(
		"ask.questions.total",
		metric.WithDescription("Total questions answered"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"gemini.tokens.used",
		metric.WithDescription("Total Gemini tokens used"),
	)
	if err != nil {
		return nil, err
	}

	extractionTime, err := meter.Float64Histogram(
		"pdf.extraction.duration",
		metric.WithDescription("PDF extraction duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		IngestRuns:       ingestRuns,
		ChunksIndexed:    chunksIndexed,
		QuestionsAsked:   questionsAsked,
		GeminiTokensUsed: tokensUsed,
		ExtractionTime:   extractionTime,
	}, nil
}

// RecordIngest records one ingestion run and its chunk volume
func (m *Metrics) RecordIngest(ctx context.Context, files, chunks int, ok bool) {
	if m == nil {
		return
	}
	m.IngestRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("success", ok),
		attribute.Int("files", files),
	))
	if chunks > 0 {
		m.ChunksIndexed.Add(ctx, int64(chunks))
	}
}

// RecordQuestion records one answered question
func (m *Metrics) RecordQuestion(ctx context.Context, sources int, ok bool) {
	if m == nil {
		return
	}
	m.QuestionsAsked.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("success", ok),
		attribute.Int("sources", sources),
	))
}

// RecordTokens records Gemini token consumption
func (m *Metrics) RecordTokens(ctx context.Context, tokens int) {
	if m == nil || tokens <= 0 {
		return
	}
	m.GeminiTokensUsed.Add(ctx, int64(tokens))
}
