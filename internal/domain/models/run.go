package models

import "time"

// DispatchStatus classifies the outcome of one dispatch attempt.
// It describes whether the work was started, not whether it succeeded.
type DispatchStatus string

const (
	DispatchAccepted  DispatchStatus = "accepted"
	DispatchDuplicate DispatchStatus = "rejected-duplicate"
	DispatchFailed    DispatchStatus = "dispatch-failed"
)

// DispatchRecord is the per-symbol entry in a RunSummary.
type DispatchRecord struct {
	Symbol string         `json:"symbol"`
	Status DispatchStatus `json:"status"`
	Handle string         `json:"handle,omitempty"`
	Err    string         `json:"error,omitempty"`
}

// RunSummary is the Coordinator's result: dispatch bookkeeping only,
// never the analytic outcome of the workers it started.
type RunSummary struct {
	RunID      string           `json:"run_id"`
	StartedAt  time.Time        `json:"started_at"`
	Universe   int              `json:"universe"`
	Dispatched int              `json:"dispatched"`
	Duplicates int              `json:"duplicates"`
	Failures   int              `json:"failures"`
	Symbols    []DispatchRecord `json:"symbols"`
}

// Handles returns the dispatch handle of every symbol that was accepted.
func (s RunSummary) Handles() []string {
	out := make([]string, 0, s.Dispatched)
	for _, r := range s.Symbols {
		if r.Status == DispatchAccepted && r.Handle != "" {
			out = append(out, r.Handle)
		}
	}
	return out
}
