package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/apispeedtest-runner/internal/config"
	"github.com/daryltucker/apispeedtest-runner/internal/model"
	"github.com/daryltucker/apispeedtest-runner/internal/output"
)

func newPipeline(t *testing.T, s Summarizer, keys ...string) (*Pipeline, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "docs", "data")
	settings := config.DefaultSettings()
	settings.OutputDir = dir
	return &Pipeline{
		Settings:   settings,
		Registry:   testRegistry(t, keys...),
		Summarizer: s,
		Now:        clock,
	}, dir
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestPipeline_WritesAllArtifacts(t *testing.T) {
	silenceLogs(t)
	s := &fakeSummarizer{fail: map[string]error{"x": &rateLimitError{retryAfter: 5}}}
	p, dir := newPipeline(t, s, "x", "y")

	report, err := p.Run(context.Background(), runConfig("x", "y"))
	require.NoError(t, err)

	var meta map[string]any
	readJSON(t, filepath.Join(dir, output.MetaFile), &meta)
	assert.Equal(t, "2026-10-19T06:00:00Z", meta["generated_at"])
	assert.Contains(t, meta["error_message"], "rateLimitError")
	assert.Equal(t, []any{"x", "y"}, meta["models"])

	var results []model.ResultRecord
	readJSON(t, filepath.Join(dir, output.ResultsFile), &results)
	require.Len(t, results, 1)
	assert.Equal(t, "y", results[0].Key)
	assert.Equal(t, "2026-10-19T06:00:00Z", results[0].UpdatedAt)

	var history []model.HistoryEntry
	readJSON(t, filepath.Join(dir, output.HistoryFile), &history)
	require.Len(t, history, 1)
	assert.Equal(t, "y", history[0].Key)
	assert.Equal(t, results[0].UpdatedAt, history[0].Timestamp)

	assert.Equal(t, report.Meta.GeneratedAt, report.Batch.Timestamp)
	assert.NoFileExists(t, filepath.Join(dir, output.ResultsCSVFile))
}

func TestPipeline_NoResultsStillWritesArtifacts(t *testing.T) {
	silenceLogs(t)
	p, dir := newPipeline(t, &fakeSummarizer{}, "a")

	_, err := p.Run(context.Background(), runConfig("ghost"))
	require.NoError(t, err)

	var meta model.Meta
	readJSON(t, filepath.Join(dir, output.MetaFile), &meta)
	assert.Equal(t, NoResultsMessage, meta.ErrorMessage)

	data, err := os.ReadFile(filepath.Join(dir, output.ResultsFile))
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))

	data, err = os.ReadFile(filepath.Join(dir, output.HistoryFile))
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestPipeline_TwoRunsOverwriteAndAppend(t *testing.T) {
	silenceLogs(t)
	p, dir := newPipeline(t, &fakeSummarizer{}, "a", "b")
	cfg := runConfig("a", "b")

	_, err := p.Run(context.Background(), cfg)
	require.NoError(t, err)

	later := fixedNow.Add(6 * time.Hour)
	p.Now = func() time.Time { return later }
	_, err = p.Run(context.Background(), cfg)
	require.NoError(t, err)

	var meta model.Meta
	readJSON(t, filepath.Join(dir, output.MetaFile), &meta)
	assert.Equal(t, output.FormatTimestamp(later), meta.GeneratedAt)
	assert.Empty(t, meta.ErrorMessage)

	var results []model.ResultRecord
	readJSON(t, filepath.Join(dir, output.ResultsFile), &results)
	require.Len(t, results, 2, "results.json is replaced, not appended")
	assert.Equal(t, output.FormatTimestamp(later), results[0].UpdatedAt)

	var history []model.HistoryEntry
	readJSON(t, filepath.Join(dir, output.HistoryFile), &history)
	require.Len(t, history, 4)
	assert.Equal(t, output.FormatTimestamp(fixedNow), history[0].Timestamp)
	assert.Equal(t, output.FormatTimestamp(later), history[3].Timestamp)
}

func TestPipeline_WritesCSVWhenEnabled(t *testing.T) {
	silenceLogs(t)
	p, dir := newPipeline(t, &fakeSummarizer{}, "a")
	p.Settings.WriteCSV = true

	_, err := p.Run(context.Background(), runConfig("a"))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, output.ResultsCSVFile))
}

func TestPipeline_OutputDirErrorIsReturned(t *testing.T) {
	silenceLogs(t)
	p, _ := newPipeline(t, &fakeSummarizer{}, "a")
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	p.Settings.OutputDir = filepath.Join(blocker, "sub")

	_, err := p.Run(context.Background(), runConfig("a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create output directory")
}

func TestRun_UsesWallClock(t *testing.T) {
	silenceLogs(t)
	settings := config.DefaultSettings()
	settings.OutputDir = t.TempDir()
	before := time.Now().UTC().Add(-time.Second)

	report, err := Run(context.Background(), settings, runConfig("a"), testRegistry(t, "a"), &fakeSummarizer{})
	require.NoError(t, err)

	ts, err := time.Parse(time.RFC3339Nano, report.Batch.Timestamp)
	require.NoError(t, err)
	assert.True(t, ts.After(before))
}
