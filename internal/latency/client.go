/*
PURPOSE:
  Transport side of the latency tester: builds OpenAI-compatible clients
  per model card, traces connections, and retries failed requests.

REQUIREMENTS:
  User-specified:
  - Every registry provider speaks the OpenAI chat-completions protocol.
  - API keys come from the env var named on the model card.

  Implementation-discovered:
  - Connection reuse skews the first run; the trace logs it at debug level.
  - 4xx responses other than 408/429 never succeed on retry.

ARCHITECTURE INTEGRATION:
  - Called by: internal/latency/tester.go
  - Uses: github.com/sashabaranov/go-openai, internal/output

ERROR HANDLING:
  - Missing key: *MissingAPIKeyError before any request is sent.
  - Retries are exhausted -> last error, wrapped.

IMPLEMENTATION RULES:
  - Per-request timeout is a context deadline, not http.Client.Timeout,
    so streaming bodies are covered too.

USAGE:
  client, err := t.newClient(card)
  err = t.withRetry(ctx, key, "streaming", func() error { ... })

SELF-HEALING INSTRUCTIONS:
  - If a provider needs extra headers, add them in tracingTransport.

RELATED FILES:
  - internal/latency/tester.go
  - internal/registry/registry.go

MAINTENANCE:
  - Update isRetryable when providers add new transient status codes.
*/

package latency

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptrace"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/daryltucker/apispeedtest-runner/internal/output"
	"github.com/daryltucker/apispeedtest-runner/internal/registry"
)

// MissingAPIKeyError means the env var holding a model's API key is unset.
type MissingAPIKeyError struct {
	Key string
	Env string
}

func (e *MissingAPIKeyError) Error() string {
	return fmt.Sprintf("model %s: env %s is empty", e.Key, e.Env)
}

// tracingTransport logs connection events for every request.
type tracingTransport struct {
	base http.RoundTripper
	key  string
}

func (t *tracingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			output.Logger.Debug("Network: Connected", "key", t.key, "remote", info.Conn.RemoteAddr(), "reused", info.Reused)
		},
		GotFirstResponseByte: func() {
			output.Logger.Debug("Network: First Byte Received", "key", t.key)
		},
	}
	return t.base.RoundTrip(req.WithContext(httptrace.WithClientTrace(req.Context(), trace)))
}

func (t *Tester) newClient(card registry.ModelCard) (*openai.Client, error) {
	apiKey := ""
	if card.APIKeyEnv != "" {
		v, _ := t.lookupEnv(card.APIKeyEnv)
		apiKey = strings.TrimSpace(v)
		if apiKey == "" {
			return nil, &MissingAPIKeyError{Key: card.Key, Env: card.APIKeyEnv}
		}
	}

	cfg := openai.DefaultConfig(apiKey)
	if card.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(card.BaseURL, "/")
	}

	base := http.DefaultTransport
	if t.HTTPClient != nil && t.HTTPClient.Transport != nil {
		base = t.HTTPClient.Transport
	}
	cfg.HTTPClient = &http.Client{Transport: &tracingTransport{base: base, key: card.Key}}

	return openai.NewClientWithConfig(cfg), nil
}

// withTimeout derives a per-request context; zero means no deadline.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// withRetry runs fn up to MaxRetries+1 times.
func (t *Tester) withRetry(ctx context.Context, key, kind string, fn func() error) error {
	var lastErr error
	for i := 0; i <= t.MaxRetries; i++ {
		if i > 0 {
			output.Logger.Info("Retrying request", "key", key, "kind", kind, "attempt", i+1, "error", lastErr)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s request cancelled: %w", kind, lastErr)
			case <-time.After(t.RetryDelay):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil || !isRetryable(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("%s request failed after %d attempts: %w", kind, t.MaxRetries+1, lastErr)
}

// isRetryable reports whether a request error is worth another attempt.
func isRetryable(err error) bool {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		// transport failures and per-request timeouts
		return true
	}
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return true
	case status >= 400 && status < 500:
		return false
	default:
		return true
	}
}
