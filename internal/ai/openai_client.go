package ai

import (
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"rag-docqa-platform/internal/telemetry"
)

// OpenAIClient answers prompts with the chat completions API.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	guard   *guard
	metrics *telemetry.Metrics
}

func NewOpenAIClient(apiKey, model, tier string, metrics *telemetry.Metrics) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	return &OpenAIClient{
		client:  openai.NewClient(apiKey),
		model:   model,
		guard:   newGuard("OpenAIAPI", tier, metrics),
		metrics: metrics,
	}, nil
}

func (oc *OpenAIClient) Provider() string { return "openai" }
func (oc *OpenAIClient) Model() string    { return oc.model }

func (oc *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("openai-client").Start(ctx, "openai.chat_completion")
	defer span.End()

	estimated := estimateTokens(prompt)
	span.SetAttributes(
		attribute.Int("openai.estimated_tokens", estimated),
		attribute.String("openai.model", oc.model),
	)

	used := 0
	text, err := oc.guard.do(ctx, estimated, func() (string, int, error) {
		resp, err := oc.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       oc.model,
			Temperature: 0.2,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return "", 0, err
		}
		if len(resp.Choices) == 0 {
			return "", 0, ErrEmptyResponse
		}
		text := strings.TrimSpace(resp.Choices[0].Message.Content)
		if text == "" {
			return "", 0, ErrEmptyResponse
		}
		used = resp.Usage.TotalTokens
		if used == 0 {
			used = estimateTokens(text)
		}
		return text, used, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(attribute.Int("openai.actual_tokens", used))
	oc.metrics.RecordTokensUsed(int64(used), oc.Provider(), oc.model)
	return text, nil
}
