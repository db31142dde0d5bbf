package ai

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"rag-docqa-platform/internal/telemetry"
)

type GeminiClient struct {
	client  *genai.Client
	model   string
	guard   *guard
	metrics *telemetry.Metrics
}

func NewGeminiClient(ctx context.Context, apiKey, model, tier string, metrics *telemetry.Metrics) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{
		client:  client,
		model:   model,
		guard:   newGuard("GeminiAPI", tier, metrics),
		metrics: metrics,
	}, nil
}

func (gc *GeminiClient) Provider() string { return "gemini" }
func (gc *GeminiClient) Model() string    { return gc.model }

func (gc *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("gemini-client").Start(ctx, "gemini.generate_content")
	defer span.End()

	estimated := estimateTokens(prompt)
	span.SetAttributes(
		attribute.Int("gemini.estimated_tokens", estimated),
		attribute.String("gemini.model", gc.model),
	)

	used := 0
	text, err := gc.guard.do(ctx, estimated, func() (string, int, error) {
		model := gc.client.GenerativeModel(gc.model)
		model.SetTemperature(0.2)
		model.SetMaxOutputTokens(2048)

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", 0, err
		}
		text := responseText(resp)
		if text == "" {
			return "", 0, ErrEmptyResponse
		}
		used = extractTokenUsage(resp, text)
		return text, used, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(attribute.Int("gemini.actual_tokens", used))
	gc.metrics.RecordTokensUsed(int64(used), gc.Provider(), gc.model)
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		// first candidate with content is the answer
		if b.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

func extractTokenUsage(resp *genai.GenerateContentResponse, text string) int {
	if resp.UsageMetadata != nil {
		return int(resp.UsageMetadata.TotalTokenCount)
	}
	return estimateTokens(text)
}

func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
