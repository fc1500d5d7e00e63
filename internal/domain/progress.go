package domain

import (
	"fmt"
	"strings"
	"time"
)

// ErrorPolicy decides whether a failed batch or item stops the run.
type ErrorPolicy string

const (
	PolicySkip  ErrorPolicy = "skip"
	PolicyAbort ErrorPolicy = "abort"
)

// ParseErrorPolicy accepts "skip" or "abort" (case-insensitive).
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch ErrorPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicySkip:
		return PolicySkip, nil
	case PolicyAbort:
		return PolicyAbort, nil
	default:
		return "", fmt.Errorf("unknown error policy %q (want skip or abort)", s)
	}
}

// ItemState tracks one work item through a batch run.
type ItemState string

const (
	StatePending    ItemState = "PENDING"
	StateInProgress ItemState = "IN_PROGRESS"
	StateDone       ItemState = "DONE"
	StateError      ItemState = "ERROR"
)

// Batch statuses.
const (
	BatchCompleted = "completed"
	BatchTimeout   = "timeout"
	BatchAborted   = "aborted"
	BatchCancelled = "cancelled"
)

// ProcessingProgress is the per-place outcome recorded after an item runs.
type ProcessingProgress struct {
	Key           string    `json:"key" bson:"key"`
	Processed     bool      `json:"processed" bson:"processed"`
	TheatersFound int       `json:"theaters_found" bson:"theaters_found"`
	Error         string    `json:"error,omitempty" bson:"error,omitempty"`
	ProcessedAt   time.Time `json:"processed_at" bson:"processed_at"`
}

// BatchStats is saved to the progress collection once per driver batch.
type BatchStats struct {
	RunID           string    `json:"run_id" bson:"run_id"`
	Batch           int       `json:"batch" bson:"batch"`
	BatchSize       int       `json:"batch_size" bson:"batch_size"`
	Pending         int       `json:"pending" bson:"pending"`
	Processed       int       `json:"processed" bson:"processed"`
	Found           int       `json:"found" bson:"found"`
	Errors          int       `json:"errors" bson:"errors"`
	Status          string    `json:"status" bson:"status"`
	Start           time.Time `json:"batch_start" bson:"batch_start"`
	End             time.Time `json:"batch_end" bson:"batch_end"`
	DurationSeconds float64   `json:"duration_seconds" bson:"duration_seconds"`
	Timestamp       time.Time `json:"timestamp" bson:"timestamp"`
}

// RunSummary totals a driver run across batches.
type RunSummary struct {
	RunID      string `json:"run_id"`
	Batches    int    `json:"batches"`
	Processed  int    `json:"processed"`
	Found      int    `json:"found"`
	Errors     int    `json:"errors"`
	StopReason string `json:"stop_reason"`
}

// Add folds one batch into the summary.
func (s *RunSummary) Add(b BatchStats) {
	s.Batches++
	s.Processed += b.Processed
	s.Found += b.Found
	s.Errors += b.Errors
}
