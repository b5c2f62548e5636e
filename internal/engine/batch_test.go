package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/apispeedtest-runner/internal/config"
	"github.com/daryltucker/apispeedtest-runner/internal/model"
	"github.com/daryltucker/apispeedtest-runner/internal/output"
	"github.com/daryltucker/apispeedtest-runner/internal/registry"
)

type rateLimitError struct{ retryAfter int }

func (e *rateLimitError) Error() string { return fmt.Sprintf("rate limited, retry after %ds", e.retryAfter) }

var fixedNow = time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func silenceLogs(t *testing.T) {
	t.Helper()
	old := output.Logger
	output.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { output.SetLogger(old) })
}

func testRegistry(t *testing.T, keys ...string) *registry.Registry {
	t.Helper()
	cards := lo.Map(keys, func(k string, _ int) registry.ModelCard {
		return registry.ModelCard{Key: k, Provider: "prov-" + k, Model: "model-" + k}
	})
	r, err := registry.New(cards...)
	require.NoError(t, err)
	return r
}

func runConfig(models ...string) config.RunConfig {
	return config.RunConfig{
		Prompt:         "p",
		Models:         models,
		Runs:           2,
		Mode:           config.ModeBoth,
		ModelOverrides: map[string]config.ModelOverride{},
	}
}

// fakeSummarizer succeeds for every key not listed in fail and records calls.
type fakeSummarizer struct {
	fail  map[string]error
	calls []Request
}

func (f *fakeSummarizer) Summarize(_ context.Context, req Request) (model.ModelLatencySummary, error) {
	f.calls = append(f.calls, req)
	if err, ok := f.fail[req.Key]; ok {
		return model.ModelLatencySummary{}, err
	}
	return model.ModelLatencySummary{
		Key:              req.Key,
		Provider:         req.Card.Provider,
		Model:            req.Card.Model,
		NonStreamingAvgS: lo.ToPtr(1.0),
	}, nil
}

func resultKeys(b Batch) []string {
	return lo.Map(b.Results, func(r model.ModelLatencySummary, _ int) string { return r.Key })
}

func TestRunBatch_AllSucceed(t *testing.T) {
	silenceLogs(t)
	s := &fakeSummarizer{}
	b := RunBatch(context.Background(), runConfig("a", "b"), testRegistry(t, "a", "b"), s, clock)

	assert.Equal(t, []string{"a", "b"}, resultKeys(b))
	assert.Empty(t, b.ErrorMessage)
	assert.Equal(t, "2026-10-19T06:00:00Z", b.Timestamp)
	assert.Equal(t, map[string]string{"a": b.Timestamp, "b": b.Timestamp}, b.UpdatedAt)

	require.Len(t, s.calls, 2)
	assert.Equal(t, "p", s.calls[0].Prompt)
	assert.Equal(t, 2, s.calls[0].Runs)
	assert.Equal(t, config.ModeBoth, s.calls[0].Mode)
	assert.Equal(t, "model-a", s.calls[0].Card.Model)
	assert.Zero(t, s.calls[0].Timeout)
	assert.Nil(t, s.calls[0].Override)
}

func TestRunBatch_FailureIsIsolated(t *testing.T) {
	silenceLogs(t)
	s := &fakeSummarizer{fail: map[string]error{"x": &rateLimitError{retryAfter: 30}}}
	b := RunBatch(context.Background(), runConfig("x", "y"), testRegistry(t, "x", "y"), s, clock)

	assert.Equal(t, []string{"y"}, resultKeys(b))
	assert.Contains(t, b.ErrorMessage, "rateLimitError")
	assert.Contains(t, b.ErrorMessage, "rate limited, retry after 30s")
	require.Len(t, b.Failures, 1)
	assert.Equal(t, "x", b.Failures[0].Key)
	assert.NotContains(t, b.UpdatedAt, "x")
}

func TestRunBatch_OnlyFirstFailureIsSurfaced(t *testing.T) {
	silenceLogs(t)
	s := &fakeSummarizer{fail: map[string]error{
		"a": errors.New("first problem"),
		"c": &rateLimitError{retryAfter: 1},
	}}
	b := RunBatch(context.Background(), runConfig("a", "b", "c"), testRegistry(t, "a", "b", "c"), s, clock)

	assert.Equal(t, []string{"b"}, resultKeys(b))
	assert.Equal(t, "Benchmark failures encountered. Last error: error: first problem", b.ErrorMessage,
		"the label keeps the historical wording but the first failure wins")
	assert.NotContains(t, b.ErrorMessage, "rate limited")
	assert.Len(t, b.Failures, 2)
	assert.Len(t, s.calls, 3, "processing continues after a failure")
}

func TestRunBatch_UnknownKeysAreSkipped(t *testing.T) {
	silenceLogs(t)
	s := &fakeSummarizer{}
	b := RunBatch(context.Background(), runConfig("ghost", "a"), testRegistry(t, "a"), s, clock)

	assert.Equal(t, []string{"a"}, resultKeys(b))
	assert.Equal(t, []string{"ghost"}, b.Skipped)
	assert.Empty(t, b.Failures)
	assert.Empty(t, b.ErrorMessage)
	assert.Len(t, s.calls, 1)
}

func TestRunBatch_NoKnownModelsSynthesizesMessage(t *testing.T) {
	silenceLogs(t)
	b := RunBatch(context.Background(), runConfig("ghost", "phantom"), testRegistry(t, "a"), &fakeSummarizer{}, clock)

	assert.Empty(t, b.Results)
	assert.NotNil(t, b.Results)
	assert.Equal(t, NoResultsMessage, b.ErrorMessage)
}

func TestRunBatch_AllFailKeepsFailureMessage(t *testing.T) {
	silenceLogs(t)
	s := &fakeSummarizer{fail: map[string]error{"a": errors.New("down")}}
	b := RunBatch(context.Background(), runConfig("a"), testRegistry(t, "a"), s, clock)

	assert.Empty(t, b.Results)
	assert.Contains(t, b.ErrorMessage, "down")
	assert.NotEqual(t, NoResultsMessage, b.ErrorMessage)
}

func TestRunBatch_PreservesOrderAndDuplicates(t *testing.T) {
	silenceLogs(t)
	b := RunBatch(context.Background(), runConfig("b", "a", "b"), testRegistry(t, "a", "b"), &fakeSummarizer{}, clock)
	assert.Equal(t, []string{"b", "a", "b"}, resultKeys(b))
}

func TestRunBatch_PassesTimeoutAndOverride(t *testing.T) {
	silenceLogs(t)
	cfg := runConfig("a")
	cfg.RequestTimeoutSeconds = lo.ToPtr(1.5)
	cfg.ModelOverrides["a"] = config.ModelOverride{MaxTokens: 32}
	s := &fakeSummarizer{}

	RunBatch(context.Background(), cfg, testRegistry(t, "a"), s, clock)

	require.Len(t, s.calls, 1)
	assert.Equal(t, 1500*time.Millisecond, s.calls[0].Timeout)
	require.NotNil(t, s.calls[0].Override)
	assert.Equal(t, 32, s.calls[0].Override.MaxTokens)
}

func TestRunBatch_FillsMissingKey(t *testing.T) {
	silenceLogs(t)
	s := SummarizerFunc(func(_ context.Context, req Request) (model.ModelLatencySummary, error) {
		return model.ModelLatencySummary{Model: req.Card.Model}, nil
	})
	b := RunBatch(context.Background(), runConfig("a"), testRegistry(t, "a"), s, clock)
	require.Len(t, b.Results, 1)
	assert.Equal(t, "a", b.Results[0].Key)
	assert.Contains(t, b.UpdatedAt, "a")
}

func TestErrorTypeName(t *testing.T) {
	rl := &rateLimitError{}
	assert.Equal(t, "rateLimitError", errorTypeName(rl))
	assert.Equal(t, "rateLimitError", errorTypeName(fmt.Errorf("model x: %w", rl)))
	assert.Equal(t, "error", errorTypeName(errors.New("plain")))
	assert.Equal(t, "deadlineExceededError", errorTypeName(context.DeadlineExceeded))
}
