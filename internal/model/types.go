/*
PURPOSE:
  Defines the core data structures shared by the runner pipeline.
  These represent per-model latency summaries and the three persisted
  artifacts (meta.json, results.json, history.json).

REQUIREMENTS:
  User-specified:
  - Record nonstreaming and streaming averages, token totals and throughput.
  - Keep a reduced per-model snapshot for the history time series.

  Implementation-discovered:
  - JSON field names are consumed by the static dashboard; do not rename.
  - Averages of a mode that was not measured must serialize as null, so they
    are pointers.

ARCHITECTURE INTEGRATION:
  - Used by: internal/engine, internal/latency, internal/output, internal/cli
  - Shared across boundaries.

ERROR HANDLING:
  - None (pure data structs).

IMPLEMENTATION RULES:
  - Keep structs simple and public.
  - Timestamps are ISO-8601 UTC strings, exactly as written to disk.

USAGE:
  rec := model.ResultRecord{ModelLatencySummary: s, UpdatedAt: ts}

SELF-HEALING INSTRUCTIONS:
  - If new metrics are needed, add the field here and to HistoryEntry only if
    the dashboard charts it.

RELATED FILES:
  - internal/output/json.go
  - internal/output/history.go

MAINTENANCE:
  - Update when the collaborator reports new metrics.
*/

package model

// NonStreamingRun is one timed non-streaming completion.
type NonStreamingRun struct {
	LatencyS         float64 `json:"latency_s"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
}

// StreamingRun is one timed streaming completion.
type StreamingRun struct {
	TTFBS            float64 `json:"ttfb_s"` // time to first content byte
	TotalS           float64 `json:"total_s"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
}

// ModelLatencySummary is the collaborator's result for one model in one batch.
type ModelLatencySummary struct {
	Key      string `json:"key"`
	Provider string `json:"provider"`
	Model    string `json:"model"`

	NonStreamingAvgS *float64          `json:"nonstreaming_avg_s"`
	NonStreamingRuns []NonStreamingRun `json:"nonstreaming_runs"`

	StreamingTTFBAvgS  *float64       `json:"streaming_ttfb_avg_s"`
	StreamingTotalAvgS *float64       `json:"streaming_total_avg_s"`
	StreamingRuns      []StreamingRun `json:"streaming_runs"`

	TotalPromptTokens     int `json:"total_prompt_tokens"`
	TotalCompletionTokens int `json:"total_completion_tokens"`
	TotalTokens           int `json:"total_tokens"`

	NonStreamTokensPerSecond *float64 `json:"nonstream_tokens_per_second"`
	StreamTokensPerSecond    *float64 `json:"stream_tokens_per_second"`
}

// ResultRecord is one element of results.json: the flattened summary plus
// the timestamp it was produced at.
type ResultRecord struct {
	ModelLatencySummary
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Meta is the content of meta.json. An empty ErrorMessage means the batch
// fully succeeded.
type Meta struct {
	GeneratedAt           string   `json:"generated_at"`
	Runs                  int      `json:"runs"`
	Mode                  string   `json:"mode"`
	Models                []string `json:"models"`
	RequestTimeoutSeconds *float64 `json:"request_timeout_seconds"`
	ErrorMessage          string   `json:"error_message,omitempty"`
}

// HistoryEntry is the reduced per-model snapshot kept in history.json.
type HistoryEntry struct {
	Timestamp                string   `json:"timestamp"`
	Key                      string   `json:"key"`
	Provider                 string   `json:"provider"`
	Model                    string   `json:"model"`
	NonStreamingAvgS         *float64 `json:"nonstreaming_avg_s"`
	StreamingTTFBAvgS        *float64 `json:"streaming_ttfb_avg_s"`
	StreamingTotalAvgS       *float64 `json:"streaming_total_avg_s"`
	NonStreamTokensPerSecond *float64 `json:"nonstream_tokens_per_second"`
	StreamTokensPerSecond    *float64 `json:"stream_tokens_per_second"`
}
