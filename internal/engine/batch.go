/*
PURPOSE:
  Batch executor. Runs the measurement collaborator once per configured
  model, in order, and folds the outcomes into a single Batch.

REQUIREMENTS:
  User-specified:
  - One model failing never aborts the batch.
  - Every successful model shares one batch timestamp.
  - Only the first failure is surfaced in meta.json.

  Implementation-discovered:
  - Unknown keys are skipped with a warning and are not failures.
  - An empty batch without failures still needs an explanation.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (Pipeline.Run)
  - Calls: Summarizer (internal/latency in production)
  - Uses: internal/config, internal/registry, internal/model, internal/output

ERROR HANDLING:
  - Collaborator errors are logged and recorded in Batch.Failures.

IMPLEMENTATION RULES:
  - Strictly sequential, no goroutines.
  - Each iteration is step(acc, key) -> acc; no state outside the accumulator.

USAGE:
  b := engine.RunBatch(ctx, cfg, reg, tester, time.Now)

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/engine/runner.go
  - internal/latency/tester.go

MAINTENANCE:
  - Update iteration logic if parallelism is ever introduced (it is not today).
*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/daryltucker/apispeedtest-runner/internal/config"
	"github.com/daryltucker/apispeedtest-runner/internal/model"
	"github.com/daryltucker/apispeedtest-runner/internal/output"
	"github.com/daryltucker/apispeedtest-runner/internal/registry"
)

// NoResultsMessage explains an empty batch that had no failures.
const NoResultsMessage = "No benchmark results were produced. Check API keys and configuration."

// Request is everything the collaborator needs to measure one model.
type Request struct {
	Key      string
	Card     registry.ModelCard
	Prompt   string
	Runs     int
	Mode     config.Mode
	Timeout  time.Duration // zero means no timeout
	Override *config.ModelOverride
}

// Summarizer measures one model. It may block for a long time.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (model.ModelLatencySummary, error)
}

// SummarizerFunc adapts a function to Summarizer.
type SummarizerFunc func(ctx context.Context, req Request) (model.ModelLatencySummary, error)

func (f SummarizerFunc) Summarize(ctx context.Context, req Request) (model.ModelLatencySummary, error) {
	return f(ctx, req)
}

// Failure records one model that raised.
type Failure struct {
	Key string
	Err error
}

// Batch is the outcome of one invocation.
type Batch struct {
	Timestamp    string
	Results      []model.ModelLatencySummary
	UpdatedAt    map[string]string
	Skipped      []string
	Failures     []Failure
	ErrorMessage string
}

// batchState is the fold accumulator.
type batchState struct {
	Batch
	index int
	total int
}

type batchEnv struct {
	ctx        context.Context
	cfg        config.RunConfig
	reg        *registry.Registry
	summarizer Summarizer
}

// RunBatch executes every model in cfg.Models. cfg must already be valid.
func RunBatch(ctx context.Context, cfg config.RunConfig, reg *registry.Registry, s Summarizer, now func() time.Time) Batch {
	env := batchEnv{ctx: ctx, cfg: cfg, reg: reg, summarizer: s}
	acc := batchState{
		Batch: Batch{
			Timestamp: output.FormatTimestamp(now()),
			Results:   []model.ModelLatencySummary{},
			UpdatedAt: map[string]string{},
		},
		total: len(cfg.Models),
	}

	output.Logger.Info("Starting benchmark", "models", acc.total, "runs", cfg.Runs, "mode", cfg.Mode)
	for _, key := range cfg.Models {
		acc = env.step(acc, key)
	}

	if len(acc.Results) == 0 && acc.ErrorMessage == "" {
		acc.ErrorMessage = NoResultsMessage
	}
	return acc.Batch
}

func (e batchEnv) step(acc batchState, key string) batchState {
	acc.index++

	card, ok := e.reg.Lookup(key)
	if !ok {
		output.Logger.Warn("Skipping unknown model key", "key", key)
		acc.Skipped = append(acc.Skipped, key)
		return acc
	}

	output.Logger.Info("Running model",
		"progress", fmt.Sprintf("%d/%d", acc.index, acc.total),
		"key", key,
		"provider", card.Provider,
		"model", card.Model,
	)

	res, err := e.summarizer.Summarize(e.ctx, Request{
		Key:      key,
		Card:     card,
		Prompt:   e.cfg.Prompt,
		Runs:     e.cfg.Runs,
		Mode:     e.cfg.Mode,
		Timeout:  e.cfg.RequestTimeout(),
		Override: e.cfg.Override(key),
	})
	if err != nil {
		output.Logger.Error("Model failed", "key", key, "error_type", errorTypeName(err), "error", err)
		acc.Failures = append(acc.Failures, Failure{Key: key, Err: err})
		if acc.ErrorMessage == "" {
			acc.ErrorMessage = fmt.Sprintf("Benchmark failures encountered. Last error: %s: %v", errorTypeName(err), err)
		}
		return acc
	}

	if res.Key == "" {
		res.Key = key
	}
	acc.Results = append(acc.Results, res)
	acc.UpdatedAt[res.Key] = acc.Timestamp
	output.Logger.Info("Completed model", "key", key)
	return acc
}

// errorTypeName names the most specific error type in err's chain, skipping
// the generic wrappers from fmt, errors and net/url.
func errorTypeName(err error) string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		t := reflect.TypeOf(e)
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		switch t.PkgPath() {
		case "fmt", "errors", "net/url":
			continue
		}
		if t.Name() != "" {
			return t.Name()
		}
	}
	return "error"
}
