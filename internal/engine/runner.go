/*
PURPOSE:
  High-level runner that orchestrates one scheduled invocation:
  batch -> meta.json -> results.json (+ results.csv) -> history.json.

REQUIREMENTS:
  User-specified:
  - Artifacts are written even when some or all models fail.
  - Data flows strictly forward; nothing re-reads a later artifact.

  Implementation-discovered:
  - The output directory may not exist on a fresh checkout.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: internal/engine (RunBatch), internal/output

ERROR HANDLING:
  - Model failures are reported in meta.json, never returned.
  - Filesystem failures are returned (wrapped with the path).

IMPLEMENTATION RULES:
  - cfg is validated by the caller (config.BuildRunConfig).
  - Single writer: do not run two pipelines against one output directory.

USAGE:
  report, err := engine.Run(ctx, settings, cfg, reg, tester)

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/engine/batch.go
  - internal/output/json.go
  - internal/output/history.go

MAINTENANCE:
  - Add new artifacts here, after results.json and before history.json.
*/

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/daryltucker/apispeedtest-runner/internal/config"
	"github.com/daryltucker/apispeedtest-runner/internal/model"
	"github.com/daryltucker/apispeedtest-runner/internal/output"
	"github.com/daryltucker/apispeedtest-runner/internal/registry"
)

// Report is what one pipeline invocation produced.
type Report struct {
	Batch   Batch
	Meta    model.Meta
	Records []model.ResultRecord
	History []json.RawMessage // history.json as written
}

// Pipeline wires the batch executor to the artifact writers.
type Pipeline struct {
	Settings   *config.Settings
	Registry   *registry.Registry
	Summarizer Summarizer
	// Now defaults to time.Now.
	Now func() time.Time
}

// Run executes the full pipeline with the wall clock.
func Run(ctx context.Context, settings *config.Settings, cfg config.RunConfig, reg *registry.Registry, s Summarizer) (*Report, error) {
	p := &Pipeline{Settings: settings, Registry: reg, Summarizer: s}
	return p.Run(ctx, cfg)
}

// Run executes one batch and persists its artifacts.
func (p *Pipeline) Run(ctx context.Context, cfg config.RunConfig) (*Report, error) {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	dir := p.Settings.OutputDir

	output.Logger.Info("Preparing output directory", "path", dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	timeout := "none"
	if cfg.RequestTimeoutSeconds != nil {
		timeout = cfg.RequestTimeout().String()
	}
	output.Logger.Info("Config", "models", len(cfg.Models), "runs", cfg.Runs, "mode", cfg.Mode, "timeout", timeout)

	batch := RunBatch(ctx, cfg, p.Registry, p.Summarizer, now)

	meta, err := output.WriteMeta(filepath.Join(dir, output.MetaFile), cfg, batch.Timestamp, batch.ErrorMessage)
	if err != nil {
		return nil, err
	}
	output.Logger.Info("Wrote meta.json", "error_message", meta.ErrorMessage)

	records := output.BuildResultRecords(batch.Results, batch.UpdatedAt, meta.GeneratedAt)
	if err := output.WriteResults(filepath.Join(dir, output.ResultsFile), records); err != nil {
		return nil, err
	}
	output.Logger.Info("Wrote results.json", "summaries", len(records))

	if p.Settings.WriteCSV {
		csvPath := filepath.Join(dir, output.ResultsCSVFile)
		if err := output.WriteResultsCSV(csvPath, records); err != nil {
			return nil, err
		}
		output.Logger.Info("Wrote results.csv", "path", csvPath)
	}

	history, err := output.UpdateHistory(filepath.Join(dir, output.HistoryFile), records, now())
	if err != nil {
		return nil, err
	}

	return &Report{
		Batch:   batch,
		Meta:    meta,
		Records: records,
		History: history,
	}, nil
}
