package client

import (
	"context"
	"net/http"
	"strings"

	"github.com/boddenberg/ar-collections-go/internal/domain"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicClient calls the Anthropic Messages API through the official SDK.
type AnthropicClient struct {
	client sdk.Client
	model  string
	cb     *gobreaker.CircuitBreaker
}

// NewAnthropicClient creates a new AnthropicClient. SDK-level retries are disabled.
func NewAnthropicClient(httpClient *http.Client, baseURL, apiKey, model string, cb *gobreaker.CircuitBreaker) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &AnthropicClient{
		client: sdk.NewClient(opts...),
		model:  model,
		cb:     cb,
	}
}

// Provider implements port.TextGenerator.
func (c *AnthropicClient) Provider() string { return "anthropic" }

// Generate sends one message request through the circuit breaker.
// JSON output is requested by the prompt itself; the API has no JSON mode flag.
func (c *AnthropicClient) Generate(ctx context.Context, req *domain.GenerationRequest) (*domain.GenerationResult, error) {
	ctx, span := tracer.Start(ctx, "AnthropicClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", c.model))

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}

	result, err := c.cb.Execute(func() (any, error) {
		return c.client.Messages.New(ctx, params)
	})
	if err != nil {
		span.RecordError(err)
		return nil, &domain.ErrUpstream{Provider: c.Provider(), Err: err}
	}
	msg := result.(*sdk.Message)

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &domain.GenerationResult{
		Content: text.String(),
		Model:   string(msg.Model),
		Usage: domain.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}, nil
}
