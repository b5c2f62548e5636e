/*
PURPOSE:
  Latency measurement collaborator. Times streaming and non-streaming chat
  completions for one model and reduces them to a ModelLatencySummary.

REQUIREMENTS:
  User-specified:
  - Nonstreaming average latency, streaming TTFB and total averages.
  - Token totals and tokens/second per mode.

  Implementation-discovered:
  - TTFB is measured to the first non-empty content delta; role-only
    chunks arrive before any generated text.
  - Usage on streams needs stream_options.include_usage.

ARCHITECTURE INTEGRATION:
  - Implements: engine.Summarizer
  - Called by: internal/engine (RunBatch) through the interface
  - Uses: internal/latency/client.go

ERROR HANDLING:
  - Any run failing after retries fails the whole model (the executor
    isolates it from the batch).

IMPLEMENTATION RULES:
  - Runs are sequential; never measure two requests at once.

USAGE:
  t := latency.New(settings)
  summary, err := t.Summarize(ctx, req)

SELF-HEALING INSTRUCTIONS:
  - If a provider never reports usage, token fields stay 0 and the
    tokens/second values are null.

RELATED FILES:
  - internal/engine/batch.go
  - internal/model/types.go

MAINTENANCE:
  - Update when the summary gains new metrics.
*/

package latency

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/samber/lo"
	openai "github.com/sashabaranov/go-openai"

	"github.com/daryltucker/apispeedtest-runner/internal/config"
	"github.com/daryltucker/apispeedtest-runner/internal/engine"
	"github.com/daryltucker/apispeedtest-runner/internal/model"
	"github.com/daryltucker/apispeedtest-runner/internal/output"
)

// Tester measures models over OpenAI-compatible endpoints.
type Tester struct {
	MaxRetries int
	RetryDelay time.Duration
	MaxTokens  int
	// HTTPClient supplies the base transport; nil uses http.DefaultTransport.
	HTTPClient *http.Client
	// LookupEnv resolves API key variables; nil uses os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

var _ engine.Summarizer = (*Tester)(nil)

// New creates a Tester from the job settings.
func New(s *config.Settings) *Tester {
	return &Tester{
		MaxRetries: s.MaxRetries,
		RetryDelay: s.RetryDelay,
		MaxTokens:  s.MaxTokens,
	}
}

func (t *Tester) lookupEnv(name string) (string, bool) {
	if t.LookupEnv != nil {
		return t.LookupEnv(name)
	}
	return os.LookupEnv(name)
}

// Summarize runs req.Runs requests per measured mode and aggregates them.
func (t *Tester) Summarize(ctx context.Context, req engine.Request) (model.ModelLatencySummary, error) {
	client, err := t.newClient(req.Card)
	if err != nil {
		return model.ModelLatencySummary{}, err
	}

	sum := model.ModelLatencySummary{
		Key:              req.Key,
		Provider:         req.Card.Provider,
		Model:            req.Card.Model,
		NonStreamingRuns: []model.NonStreamingRun{},
		StreamingRuns:    []model.StreamingRun{},
	}

	if req.Mode.NonStreaming() {
		for i := 1; i <= req.Runs; i++ {
			run, err := t.measureNonStreaming(ctx, client, req)
			if err != nil {
				return model.ModelLatencySummary{}, fmt.Errorf("nonstreaming run %d/%d: %w", i, req.Runs, err)
			}
			output.Logger.Debug("Nonstreaming run", "key", req.Key, "run", i, "latency_s", run.LatencyS)
			sum.NonStreamingRuns = append(sum.NonStreamingRuns, run)
		}
		latencies := lo.SumBy(sum.NonStreamingRuns, func(r model.NonStreamingRun) float64 { return r.LatencyS })
		tokens := lo.SumBy(sum.NonStreamingRuns, func(r model.NonStreamingRun) int { return r.CompletionTokens })
		sum.NonStreamingAvgS = lo.ToPtr(latencies / float64(len(sum.NonStreamingRuns)))
		sum.NonStreamTokensPerSecond = tokensPerSecond(tokens, latencies)
		for _, r := range sum.NonStreamingRuns {
			sum.TotalPromptTokens += r.PromptTokens
			sum.TotalCompletionTokens += r.CompletionTokens
			sum.TotalTokens += r.TotalTokens
		}
	}

	if req.Mode.Streaming() {
		for i := 1; i <= req.Runs; i++ {
			run, err := t.measureStreaming(ctx, client, req)
			if err != nil {
				return model.ModelLatencySummary{}, fmt.Errorf("streaming run %d/%d: %w", i, req.Runs, err)
			}
			output.Logger.Debug("Streaming run", "key", req.Key, "run", i, "ttfb_s", run.TTFBS, "total_s", run.TotalS)
			sum.StreamingRuns = append(sum.StreamingRuns, run)
		}
		n := float64(len(sum.StreamingRuns))
		ttfb := lo.SumBy(sum.StreamingRuns, func(r model.StreamingRun) float64 { return r.TTFBS })
		total := lo.SumBy(sum.StreamingRuns, func(r model.StreamingRun) float64 { return r.TotalS })
		tokens := lo.SumBy(sum.StreamingRuns, func(r model.StreamingRun) int { return r.CompletionTokens })
		sum.StreamingTTFBAvgS = lo.ToPtr(ttfb / n)
		sum.StreamingTotalAvgS = lo.ToPtr(total / n)
		sum.StreamTokensPerSecond = tokensPerSecond(tokens, total)
		for _, r := range sum.StreamingRuns {
			sum.TotalPromptTokens += r.PromptTokens
			sum.TotalCompletionTokens += r.CompletionTokens
			sum.TotalTokens += r.TotalTokens
		}
	}

	return sum, nil
}

func (t *Tester) chatRequest(req engine.Request) openai.ChatCompletionRequest {
	r := openai.ChatCompletionRequest{
		Model: req.Card.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens: t.MaxTokens,
	}
	if o := req.Override; o != nil {
		if o.MaxTokens > 0 {
			r.MaxTokens = o.MaxTokens
		}
		if o.Temperature != nil {
			r.Temperature = *o.Temperature
		}
	}
	return r
}

func (t *Tester) measureNonStreaming(ctx context.Context, client *openai.Client, req engine.Request) (model.NonStreamingRun, error) {
	var run model.NonStreamingRun
	err := t.withRetry(ctx, req.Key, "nonstreaming", func() error {
		rctx, cancel := withTimeout(ctx, req.Timeout)
		defer cancel()

		start := time.Now()
		resp, err := client.CreateChatCompletion(rctx, t.chatRequest(req))
		if err != nil {
			return err
		}
		run = model.NonStreamingRun{
			LatencyS:         time.Since(start).Seconds(),
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
		return nil
	})
	return run, err
}

func (t *Tester) measureStreaming(ctx context.Context, client *openai.Client, req engine.Request) (model.StreamingRun, error) {
	var run model.StreamingRun
	err := t.withRetry(ctx, req.Key, "streaming", func() error {
		rctx, cancel := withTimeout(ctx, req.Timeout)
		defer cancel()

		r := t.chatRequest(req)
		r.Stream = true
		r.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

		start := time.Now()
		stream, err := client.CreateChatCompletionStream(rctx, r)
		if err != nil {
			return err
		}
		defer stream.Close()

		var (
			ttfb  time.Duration
			first bool
			usage openai.Usage
		)
		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			if !first && lo.SomeBy(chunk.Choices, func(c openai.ChatCompletionStreamChoice) bool { return c.Delta.Content != "" }) {
				ttfb = time.Since(start)
				first = true
			}
			if chunk.Usage != nil {
				usage = *chunk.Usage
			}
		}
		total := time.Since(start)
		if !first {
			ttfb = total
		}

		run = model.StreamingRun{
			TTFBS:            ttfb.Seconds(),
			TotalS:           total.Seconds(),
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
		}
		return nil
	})
	return run, err
}

func tokensPerSecond(tokens int, seconds float64) *float64 {
	if tokens <= 0 || seconds <= 0 {
		return nil
	}
	return lo.ToPtr(float64(tokens) / seconds)
}
