/*
PURPOSE:
  Writes the batch summaries to results.csv for spreadsheet users.
  Optional export, enabled with write_csv in the settings file.

REQUIREMENTS:
  User-specified:
  - Same rows as results.json, one per model, flat columns only.

  Implementation-discovered:
  - Per-run records are JSON-only; CSV carries averages and totals.
  - Unmeasured averages are empty cells, not 0.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (Run)
  - Consumes: model.ResultRecord

ERROR HANDLING:
  - Returns error on file creation or write failure.

IMPLEMENTATION RULES:
  - Use encoding/csv.
  - Overwrites the file each run, like results.json.

USAGE:
  w, err := output.NewCSVWriter("results.csv")
  w.Write(record)
  w.Close()

SELF-HEALING INSTRUCTIONS:
  - If CSV format changes, update header and record conversion.

RELATED FILES:
  - internal/model/types.go

MAINTENANCE:
  - Update Write() mapping when ModelLatencySummary changes.
*/

package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/daryltucker/apispeedtest-runner/internal/model"
)

var csvHeader = []string{
	"key", "provider", "model", "updated_at",
	"nonstreaming_avg_s", "streaming_ttfb_avg_s", "streaming_total_avg_s",
	"total_prompt_tokens", "total_completion_tokens", "total_tokens",
	"nonstream_tokens_per_second", "stream_tokens_per_second",
}

// CSVWriter handles writing result records to a CSV file.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates a new CSVWriter.
// It overwrites the file if it exists.
func NewCSVWriter(path string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()

	return &CSVWriter{
		file:   f,
		writer: w,
	}, nil
}

// Write writes a single record to the CSV file.
func (cw *CSVWriter) Write(r model.ResultRecord) error {
	record := []string{
		r.Key,
		r.Provider,
		r.Model,
		r.UpdatedAt,
		formatOptional(r.NonStreamingAvgS),
		formatOptional(r.StreamingTTFBAvgS),
		formatOptional(r.StreamingTotalAvgS),
		strconv.Itoa(r.TotalPromptTokens),
		strconv.Itoa(r.TotalCompletionTokens),
		strconv.Itoa(r.TotalTokens),
		formatOptional(r.NonStreamTokensPerSecond),
		formatOptional(r.StreamTokensPerSecond),
	}

	if err := cw.writer.Write(record); err != nil {
		return err
	}
	cw.writer.Flush()
	return cw.writer.Error()
}

// Close closes the underlying file.
func (cw *CSVWriter) Close() error {
	cw.writer.Flush()
	return cw.file.Close()
}

// WriteResultsCSV writes every record to path.
func WriteResultsCSV(path string, records []model.ResultRecord) error {
	w, err := NewCSVWriter(path)
	if err != nil {
		return fmt.Errorf("failed to init CSV writer at %s: %w", path, err)
	}
	for _, r := range records {
		if err := w.Write(r); err != nil {
			w.Close()
			return fmt.Errorf("failed to write %s row to %s: %w", r.Key, path, err)
		}
	}
	return w.Close()
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}
