package domain

import "time"

// ItemStatus is the terminal status of one resource within a batch.
type ItemStatus string

const (
	ItemSuccess ItemStatus = "success"
	ItemError   ItemStatus = "error"
	ItemSkipped ItemStatus = "skipped"
)

// BatchState is the overall state the control-plane reports for a batch.
type BatchState string

const (
	BatchInProgress BatchState = "in-progress"
	BatchCompleted  BatchState = "completed"
	BatchFailed     BatchState = "failed"
)

// Terminal reports whether the control-plane considers the batch finished.
func (s BatchState) Terminal() bool {
	return s == BatchCompleted || s == BatchFailed
}

// BatchHandle identifies one in-flight orchestration run. It is created
// when a submission succeeds and never mutated afterwards.
type BatchHandle struct {
	BatchID     string    `json:"batch_id"`
	Action      string    `json:"action"`
	ResourceIDs []string  `json:"resource_ids"`
	CreatedAt   time.Time `json:"created_at"`
}

// Total is the number of resources targeted by this batch.
func (h *BatchHandle) Total() int {
	return len(h.ResourceIDs)
}

// ItemOutcome is the terminal result for one resource within a batch.
// Immutable once recorded.
type ItemOutcome struct {
	ResourceID string     `json:"resourceId"`
	Status     ItemStatus `json:"status"`
	Message    string     `json:"message,omitempty"`
}

// BatchProgress is a complete snapshot of one batch's progress. The tracker
// replaces it wholesale on every poll tick; it is never merged field by
// field, so observers always see a consistent view.
//
// Invariant: Completed == Successful+Failed+Skipped and Completed <= Total.
type BatchProgress struct {
	BatchID    string        `json:"batch_id"`
	State      BatchState    `json:"state"`
	Total      int           `json:"total"`
	Completed  int           `json:"completed"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Outcomes   []ItemOutcome `json:"outcomes"`
}

// Terminal reports whether progress can no longer advance.
func (p *BatchProgress) Terminal() bool {
	return p.State.Terminal() || (p.Total > 0 && p.Completed >= p.Total)
}

// BatchOutcome classifies the overall result of a finished batch.
type BatchOutcome string

const (
	AllSucceeded BatchOutcome = "all-succeeded"
	AllFailed    BatchOutcome = "all-failed"
	Partial      BatchOutcome = "partial"
)

// BatchReport is the final reduction of a batch's per-item outcomes.
type BatchReport struct {
	BatchID  string         `json:"batch_id"`
	Action   string         `json:"action"`
	Outcome  BatchOutcome   `json:"outcome"`
	Summary  string         `json:"summary"`
	Progress *BatchProgress `json:"progress"`
}

// FailedIDs returns the identifiers whose outcome status is error, in the
// order the control-plane reported them. Skipped resources are excluded:
// a skip is a deliberate exclusion by the control-plane, not a transient
// failure, so it is not a retry candidate.
func (r *BatchReport) FailedIDs() []string {
	if r.Progress == nil {
		return nil
	}
	var ids []string
	for _, o := range r.Progress.Outcomes {
		if o.Status == ItemError {
			ids = append(ids, o.ResourceID)
		}
	}
	return ids
}

// RunState tracks one orchestration run through its lifecycle.
type RunState string

const (
	RunIdle       RunState = "idle"
	RunSubmitting RunState = "submitting"
	RunTracking   RunState = "tracking"
	RunCompleted  RunState = "completed"
	RunFailed     RunState = "failed"
	RunTimedOut   RunState = "timed-out"
	RunCancelled  RunState = "cancelled"
)

// BatchRecord is the persisted audit row for one orchestration run.
type BatchRecord struct {
	ID          string       `json:"id" db:"id"`
	BatchID     string       `json:"batch_id" db:"batch_id"`
	Action      string       `json:"action" db:"action"`
	Total       int          `json:"total" db:"total"`
	Successful  int          `json:"successful" db:"successful"`
	Failed      int          `json:"failed" db:"failed"`
	Skipped     int          `json:"skipped" db:"skipped"`
	State       RunState     `json:"state" db:"state"`
	Outcome     BatchOutcome `json:"outcome,omitempty" db:"outcome"`
	Summary     string       `json:"summary,omitempty" db:"summary"`
	FailedIDs   StringList   `json:"failed_ids,omitempty" db:"failed_ids"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	FinishedAt  *time.Time   `json:"finished_at,omitempty" db:"finished_at"`
	RequestedBy string       `json:"requested_by,omitempty" db:"requested_by"`
}

// ExecuteBulkRequest is the request body for starting a bulk operation.
type ExecuteBulkRequest struct {
	Action      string            `json:"action"`
	ResourceIDs []string          `json:"resourceIds"`
	Options     map[string]string `json:"options,omitempty"`
	Confirmed   bool              `json:"confirmed,omitempty"`
}

// RetryBulkRequest is the request body for retrying the failed subset of a
// recorded batch.
type RetryBulkRequest struct {
	Action  string `json:"action"`
	BatchID string `json:"batchId"`
}
