/*
PURPOSE:
  Writes the per-batch JSON artifacts: meta.json and results.json.
  Both are pretty-printed and fully overwritten on every run.

REQUIREMENTS:
  User-specified:
  - meta.json carries generated_at, runs, mode, models, timeout and an
    error_message only when something went wrong.
  - results.json carries every successful summary with its updated_at.

  Implementation-discovered:
  - The dashboard reads absence of error_message as "all good", so the key
    must be omitted, not empty.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (Run)
  - Consumes: internal/model, internal/config.RunConfig

ERROR HANDLING:
  - Returns wrapped error on encode or write failure.

IMPLEMENTATION RULES:
  - 2-space indent, UTF-8, trailing newline.
  - No merge with previous content; only history.json merges.

USAGE:
  meta, err := output.WriteMeta(path, cfg, ts, errMsg)
  err = output.WriteResults(path, output.BuildResultRecords(results, updatedAt, meta.GeneratedAt))

SELF-HEALING INSTRUCTIONS:
  - If the dashboard fails to parse, validate the files with `jq .`.

RELATED FILES:
  - internal/model/types.go
  - internal/output/history.go

MAINTENANCE:
  - Update if artifact fields change (keep the dashboard in sync).
*/

package output

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/samber/lo"

	"github.com/daryltucker/apispeedtest-runner/internal/config"
	"github.com/daryltucker/apispeedtest-runner/internal/model"
)

// Artifact file names inside the output directory.
const (
	MetaFile       = "meta.json"
	ResultsFile    = "results.json"
	HistoryFile    = "history.json"
	ResultsCSVFile = "results.csv"
)

// writeJSON replaces path with the indented encoding of v.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// NewMeta builds the meta record for a batch.
func NewMeta(cfg config.RunConfig, timestamp, errorMessage string) model.Meta {
	return model.Meta{
		GeneratedAt:           timestamp,
		Runs:                  cfg.Runs,
		Mode:                  string(cfg.Mode),
		Models:                lo.Ternary(cfg.Models == nil, []string{}, cfg.Models),
		RequestTimeoutSeconds: cfg.RequestTimeoutSeconds,
		ErrorMessage:          errorMessage,
	}
}

// WriteMeta writes meta.json and returns what was written.
func WriteMeta(path string, cfg config.RunConfig, timestamp, errorMessage string) (model.Meta, error) {
	meta := NewMeta(cfg, timestamp, errorMessage)
	if err := writeJSON(path, meta); err != nil {
		return model.Meta{}, err
	}
	return meta, nil
}

// BuildResultRecords annotates each summary with its updated_at, falling back
// to generatedAt when no per-model timestamp was recorded.
func BuildResultRecords(results []model.ModelLatencySummary, updatedAt map[string]string, generatedAt string) []model.ResultRecord {
	return lo.Map(results, func(r model.ModelLatencySummary, _ int) model.ResultRecord {
		ts := updatedAt[r.Key]
		if ts == "" {
			ts = generatedAt
		}
		return model.ResultRecord{ModelLatencySummary: r, UpdatedAt: ts}
	})
}

// WriteResults writes results.json. A nil slice is written as [].
func WriteResults(path string, records []model.ResultRecord) error {
	if records == nil {
		records = []model.ResultRecord{}
	}
	return writeJSON(path, records)
}
