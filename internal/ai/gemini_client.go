package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"pdfrag/internal/config"
	"pdfrag/internal/logger"
	"pdfrag/internal/telemetry"
)

// GeminiClient wraps the generative model behind a circuit breaker and a
// client-side rate limiter. Generation failures surface to the caller as
// errors; no fallback answer is synthesized.
type GeminiClient struct {
	model       string
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	client      *genai.Client
	metrics     *telemetry.Metrics
}

func NewGeminiClient(cfg *config.Config, metrics *telemetry.Metrics) (*GeminiClient, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	// Free-tier Gemini allows ~10 RPM; leave headroom.
	rateLimiter := rate.NewLimiter(rate.Limit(9.0/60.0), 2)

	return &GeminiClient{
		model:       cfg.GeminiModel,
		breaker:     breaker,
		rateLimiter: rateLimiter,
		client:      client,
		metrics:     metrics,
	}, nil
}

// Generate performs one synchronous completion call for the given prompt.
func (gc *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.generate_content")
	defer span.End()

	span.SetAttributes(
		attribute.String("gemini.model", gc.model),
		attribute.Int("gemini.prompt_chars", len(prompt)),
	)

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", err
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.GenerativeModel(gc.model)
		model.SetTemperature(0.2)
		model.SetMaxOutputTokens(2048)

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
			return "", fmt.Errorf("generation service unavailable: %w", err)
		}
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return "", err
	}

	resp := result.(*genai.GenerateContentResponse)
	if resp.UsageMetadata != nil {
		tokens := int(resp.UsageMetadata.TotalTokenCount)
		span.SetAttributes(attribute.Int("gemini.total_tokens", tokens))
		gc.metrics.RecordTokens(ctx, tokens)
	}

	text := collectText(resp)
	if text == "" {
		return "", fmt.Errorf("empty response from generation model")
	}

	span.SetAttributes(attribute.Bool("gemini.success", true))
	return text, nil
}

func collectText(resp *genai.GenerateContentResponse) string {
	out := ""
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				out += string(text)
			}
		}
	}
	return out
}

// Close the client
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
