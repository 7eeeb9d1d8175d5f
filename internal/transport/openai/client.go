package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/retriever/internal/domain"
)

func newClient(apiKey, baseURL string, timeout time.Duration) *openai.Client {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	if timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return openai.NewClientWithConfig(clientCfg)
}

// NewLimiter builds an outbound request limiter. rps <= 0 disables limiting (nil limiter).
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// wait blocks until the limiter admits one request or ctx ends.
func wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	if err := l.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w: %w", domain.ErrRateLimited, err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// Errors are wrapped with wrap for correct 502 mapping; HTTP 429 additionally
// carries domain.ErrRateLimited.
func parseAPIError(kind string, err error, wrap error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		wrap = withRateLimit(reqErr.HTTPStatusCode, wrap)
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("%s API error %d: %s: %w", kind, reqErr.HTTPStatusCode, detail, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		wrap = withRateLimit(apiErr.HTTPStatusCode, wrap)
		return fmt.Errorf("%s API error %d: %s: %w", kind, apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s request: %w: %w", kind, wrap, err)
	}

	return fmt.Errorf("%s request failed: %w", kind, wrap)
}

func withRateLimit(status int, wrap error) error {
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", wrap, domain.ErrRateLimited)
	}
	return wrap
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
