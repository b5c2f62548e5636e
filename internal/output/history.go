/*
PURPOSE:
  Maintains history.json: an append-only, age-pruned time series of reduced
  per-model metrics used by the dashboard charts.

REQUIREMENTS:
  User-specified:
  - Keep one year of history.
  - New entries are appended after surviving ones, in batch order.

  Implementation-discovered:
  - The file is committed by CI and occasionally hand-edited; a broken file
    must not stop the job. It is reset to empty with a warning.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (Run)
  - Consumes: []model.ResultRecord

ERROR HANDLING:
  - Invalid JSON or non-array content: warning, treated as empty.
  - A single element that is not an object or has no parseable timestamp is
    dropped with a warning; the rest of the log is kept.
  - Write failures are returned.

IMPLEMENTATION RULES:
  - Never re-sort; pruning keeps the relative order of survivors.
  - Entries are never mutated. Stored entries stay json.RawMessage so fields
    this binary does not know about survive a rewrite; only "timestamp" is read.

USAGE:
  entries, err := output.UpdateHistory(path, records, time.Now())

SELF-HEALING INSTRUCTIONS:
  - Deleting history.json is always safe; the next run recreates it.

RELATED FILES:
  - internal/output/json.go

MAINTENANCE:
  - Retention is a fixed policy (HistoryRetention).
*/

package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/samber/lo"

	"github.com/daryltucker/apispeedtest-runner/internal/model"
)

// HistoryRetention is how long history entries are kept.
const HistoryRetention = 365 * 24 * time.Hour

// HistoryDecodeResult is the outcome of decoding stored history.
// When OK is false, Reason says why and Entries is empty.
type HistoryDecodeResult struct {
	OK      bool
	Entries []json.RawMessage
	Reason  string
}

// DecodeHistory splits a stored history log into its raw elements. It never
// fails; callers decide what to do with a failed result. Elements are not
// inspected here.
func DecodeHistory(data []byte) HistoryDecodeResult {
	if !json.Valid(data) {
		return HistoryDecodeResult{Reason: "failed to parse history file: invalid JSON"}
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '[' {
		return HistoryDecodeResult{Reason: "history file exists but is not a list"}
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return HistoryDecodeResult{Reason: fmt.Sprintf("failed to parse history file: %v", err)}
	}
	if entries == nil {
		entries = []json.RawMessage{}
	}
	return HistoryDecodeResult{OK: true, Entries: entries}
}

// LoadHistory reads path. A missing file is an empty log; an undecodable one
// is logged and treated as empty.
func LoadHistory(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	res := DecodeHistory(data)
	if !res.OK {
		Logger.Warn("Resetting history", "path", path, "reason", res.Reason)
		return []json.RawMessage{}, nil
	}
	return res.Entries, nil
}

// parseTimestamp accepts RFC 3339 with or without fractional seconds.
func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// entryTimestamp reads only the "timestamp" member of a stored entry.
func entryTimestamp(raw json.RawMessage) (time.Time, error) {
	var head struct {
		Timestamp *string `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return time.Time{}, fmt.Errorf("entry is not an object with a string timestamp: %w", err)
	}
	if head.Timestamp == nil {
		return time.Time{}, errors.New("entry has no timestamp")
	}
	return parseTimestamp(*head.Timestamp)
}

// PruneHistory drops entries strictly older than cutoff. Entries that are not
// objects or whose timestamp cannot be parsed are dropped too. Survivors are
// returned unchanged.
func PruneHistory(entries []json.RawMessage, cutoff time.Time) []json.RawMessage {
	return lo.Filter(entries, func(e json.RawMessage, i int) bool {
		ts, err := entryTimestamp(e)
		if err != nil {
			Logger.Warn("Dropping history entry with invalid timestamp", "index", i, "error", err)
			return false
		}
		return !ts.Before(cutoff)
	})
}

// ExtractHistoryEntry reduces a result record to its history snapshot.
// A record without updated_at is stamped with now, not the batch time.
func ExtractHistoryEntry(r model.ResultRecord, now time.Time) model.HistoryEntry {
	ts := r.UpdatedAt
	if ts == "" {
		ts = FormatTimestamp(now)
	}
	return model.HistoryEntry{
		Timestamp:                ts,
		Key:                      r.Key,
		Provider:                 r.Provider,
		Model:                    r.Model,
		NonStreamingAvgS:         r.NonStreamingAvgS,
		StreamingTTFBAvgS:        r.StreamingTTFBAvgS,
		StreamingTotalAvgS:       r.StreamingTotalAvgS,
		NonStreamTokensPerSecond: r.NonStreamTokensPerSecond,
		StreamTokensPerSecond:    r.StreamTokensPerSecond,
	}
}

// MergeHistory prunes existing against now and appends the batch.
func MergeHistory(existing []json.RawMessage, records []model.ResultRecord, now time.Time) ([]json.RawMessage, error) {
	now = now.UTC()
	merged := PruneHistory(existing, now.Add(-HistoryRetention))
	for _, r := range records {
		data, err := json.Marshal(ExtractHistoryEntry(r, now))
		if err != nil {
			return nil, fmt.Errorf("failed to encode history entry for %s: %w", r.Key, err)
		}
		merged = append(merged, data)
	}
	return merged, nil
}

// UpdateHistory loads, merges and rewrites the history log at path.
func UpdateHistory(path string, records []model.ResultRecord, now time.Time) ([]json.RawMessage, error) {
	existing, err := LoadHistory(path)
	if err != nil {
		return nil, err
	}

	merged, err := MergeHistory(existing, records, now)
	if err != nil {
		return nil, err
	}
	if err := writeJSON(path, merged); err != nil {
		return nil, err
	}

	Logger.Info("Updated history", "path", path, "new_entries", len(records), "total_entries", len(merged))
	return merged, nil
}

// FormatTimestamp renders t as an ISO-8601 UTC timestamp.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
