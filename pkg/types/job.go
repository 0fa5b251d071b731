// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Status is a stage of the processing state machine. Non-terminal statuses
// form a fixed total order; failed is reachable from any non-terminal one.
type Status string

const (
	StatusPending             Status = "pending"
	StatusFetching            Status = "fetching"
	StatusExtractingStructure Status = "extracting_structure"
	StatusExtractingContent   Status = "extracting_content"
	StatusGenerating          Status = "generating"
	StatusFinalizing          Status = "finalizing"
	StatusCompleted           Status = "completed"
	StatusFailed              Status = "failed"
)

// statusRank orders the pipeline stages. Failed has no rank; it preserves
// the progress value of the last successful stage.
var statusRank = map[Status]int{
	StatusPending:             0,
	StatusFetching:            1,
	StatusExtractingStructure: 2,
	StatusExtractingContent:   3,
	StatusGenerating:          4,
	StatusFinalizing:          5,
	StatusCompleted:           6,
}

// Rank returns the stage's position in the fixed order, or -1 for failed
// and unknown statuses.
func (s Status) Rank() int {
	r, ok := statusRank[s]
	if !ok {
		return -1
	}
	return r
}

// Terminal reports whether no further transitions can occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	return s == StatusFailed || s.Rank() >= 0
}

// EntryProgress is the progress percentage reported when a stage begins.
// Stages map to fixed bands: pending 0-10, fetching 10-30, extraction 30-65,
// generating 65-95, finalizing 95-99, completed 100.
func (s Status) EntryProgress() int {
	switch s {
	case StatusPending:
		return 0
	case StatusFetching:
		return 10
	case StatusExtractingStructure:
		return 30
	case StatusExtractingContent:
		return 45
	case StatusGenerating:
		return 65
	case StatusFinalizing:
		return 95
	case StatusCompleted:
		return 100
	default:
		return 0
	}
}

// ProcessingJob is the orchestration record for one paper. It is owned and
// mutated exclusively by the pipeline runner; observers read it through the
// metadata store.
type ProcessingJob struct {
	// PaperID is the stable key derived from the input source.
	PaperID string `json:"paper_id" yaml:"paper_id"`

	Status Status `json:"status" yaml:"status"`

	// Progress is 0-100 and monotonically non-decreasing within one run.
	Progress int `json:"progress" yaml:"progress"`

	// Message is the latest human-readable progress message.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// Title and Authors are filled in once extraction completes; before
	// that Title holds a placeholder derived from the input.
	Title   string   `json:"title,omitempty" yaml:"title,omitempty"`
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// SourceURL is the resolved origin of the paper, when known.
	SourceURL string `json:"source_url,omitempty" yaml:"source_url,omitempty"`

	// FormatUsed records which fetch strategy succeeded.
	FormatUsed Format `json:"format_used,omitempty" yaml:"format_used,omitempty"`

	// Language is the requested output language.
	Language string `json:"language,omitempty" yaml:"language,omitempty"`

	// OutputPath is the rendered summary location after completion.
	OutputPath string `json:"output_path,omitempty" yaml:"output_path,omitempty"`

	// ProcessingTime is the wall-clock duration of the last completed run
	// in seconds.
	ProcessingTime float64 `json:"processing_time,omitempty" yaml:"processing_time,omitempty"`

	// RetryCount counts explicit retry actions, never hidden ones.
	RetryCount int `json:"retry_count" yaml:"retry_count"`

	// ErrorMessage holds the failure reason while Status is failed.
	ErrorMessage string `json:"error_message,omitempty" yaml:"error_message,omitempty"`

	// LastFailedAt is set on every transition to failed.
	LastFailedAt *time.Time `json:"last_failed_at,omitempty" yaml:"last_failed_at,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// ProgressEvent is pushed to the progress sink on every status transition.
// Delivery is best-effort, at least once; the runner never blocks on it.
type ProgressEvent struct {
	PaperID   string    `json:"paper_id"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`

	// Error is non-empty only on the transition to failed.
	Error string `json:"error,omitempty"`
}
