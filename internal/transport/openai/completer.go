package openai

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/retriever/internal/domain"
	"github.com/kailas-cloud/retriever/internal/metrics"
)

// Compile-time check: Completer implements domain.Completer.
var _ domain.Completer = (*Completer)(nil)

// CompleterConfig holds the chat-completion provider settings.
type CompleterConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Limiter *rate.Limiter // nil = unlimited
	Logger  *zap.Logger
}

// Completer runs single-turn chat completions against an OpenAI-compatible API.
type Completer struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewCompleter creates a chat-completion client.
func NewCompleter(cfg *CompleterConfig) *Completer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Completer{
		client:  newClient(cfg.APIKey, cfg.BaseURL, cfg.Timeout),
		model:   cfg.Model,
		limiter: cfg.Limiter,
		logger:  logger,
	}
}

// Complete sends a system+user prompt and returns the first choice's content.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	if err := wait(ctx, c.limiter); err != nil {
		metrics.CompletionRequestsTotal.WithLabelValues(c.model, "rate_limited").Inc()
		return "", fmt.Errorf("%w: %w", domain.ErrCompletionProviderError, err)
	}

	chatReq := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	// go-openai omits a zero temperature, which the API reads as its default of 1.
	if req.Temperature == 0 {
		chatReq.Temperature = math.SmallestNonzeroFloat32
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	duration := time.Since(start)

	if err != nil {
		metrics.CompletionRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", parseAPIError("completion", err, domain.ErrCompletionProviderError)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.CompletionRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", fmt.Errorf("empty completion response: %w", domain.ErrCompletionProviderError)
	}

	metrics.CompletionRequestsTotal.WithLabelValues(c.model, "success").Inc()
	c.logger.Debug("Completion request completed",
		zap.String("model", c.model),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return resp.Choices[0].Message.Content, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Completer) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
