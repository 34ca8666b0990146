package audit

import (
	"context"
	"time"

	"mercator-hq/gatekeeper/pkg/transform"
)

// Entry is the audit record of one synthesis run.
type Entry struct {
	ID             string                       `json:"id"`
	RunID          string                       `json:"run_id"`
	CreatedAt      time.Time                    `json:"created_at"`
	DocumentType   string                       `json:"document_type,omitempty"`
	ModuleIDs      []string                     `json:"module_ids,omitempty"`
	PolicyVersion  string                       `json:"policy_version,omitempty"`
	Outcome        string                       `json:"outcome"`
	IterationsUsed int                          `json:"iterations_used"`
	InputHash      string                       `json:"input_hash"`
	FinalHash      string                       `json:"final_hash"`
	Residual       []string                     `json:"residual_failures,omitempty"`
	Corrections    []transform.CorrectionRecord `json:"corrections"`

	// InputText and FinalText are kept only when text retention is enabled.
	// Without them the chain can be checked by hash only.
	InputText string `json:"input_text,omitempty"`
	FinalText string `json:"final_text,omitempty"`
}

// HasText reports whether the entry retained document text.
func (e *Entry) HasText() bool {
	return e.InputText != "" || e.FinalText != ""
}

// Query filters entries. Zero fields match everything.
type Query struct {
	Outcome      string
	DocumentType string
	Since        *time.Time
	Until        *time.Time

	// Limit caps the number of entries returned. Default: 100.
	Limit int
}

// DefaultLimit is used when Query.Limit is zero.
const DefaultLimit = 100

// Sink receives finished runs.
type Sink interface {
	Record(ctx context.Context, entry *Entry) error
}

// Store is a queryable Sink.
type Store interface {
	Sink

	// Get returns the entry for a run id or ErrNotFound.
	Get(ctx context.Context, runID string) (*Entry, error)

	// List returns entries matching q, newest first.
	List(ctx context.Context, q *Query) ([]*Entry, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int64, error)

	// DeleteBefore removes entries created before cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Trim removes the oldest entries so that at most keep remain.
	Trim(ctx context.Context, keep int64) (int64, error)

	Close() error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, entry *Entry) error

// Record calls f.
func (f SinkFunc) Record(ctx context.Context, entry *Entry) error {
	return f(ctx, entry)
}
