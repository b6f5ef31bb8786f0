package domain

import (
	"errors"
	"fmt"
)

// Common errors used throughout the application.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrUnknownAction     = errors.New("unknown bulk action")
	ErrSubmissionFailed  = errors.New("batch submission failed")
	ErrOperationTimedOut = errors.New("bulk operation timed out")
	ErrBatchCancelled    = errors.New("bulk operation cancelled")
	ErrNoFailedItems     = errors.New("no failed items to retry")
	ErrNoAPIKeys         = errors.New("no API keys configured")
	ErrInvalidAPIKey     = errors.New("invalid API key")
	ErrBootstrapDisabled = errors.New("bootstrap key disabled - API keys exist")
)

// SubmissionError describes a rejected or unreachable batch submission.
// It carries whatever the control-plane returned so the caller can decide
// whether to resubmit; the orchestrator never retries submissions itself.
type SubmissionError struct {
	Action     string
	StatusCode int    // 0 when the request never reached the control-plane
	Body       string // response body, if any
	Err        error  // underlying transport error, if any
}

// Error implements the error interface.
func (e *SubmissionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("submitting %q batch: control-plane returned %d: %s", e.Action, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("submitting %q batch: %v", e.Action, e.Err)
}

// Unwrap makes the error match ErrSubmissionFailed via errors.Is.
func (e *SubmissionError) Unwrap() error {
	return ErrSubmissionFailed
}

// TimeoutError is returned when a batch did not reach a terminal state
// within the poll budget. The last observed progress is attached so no
// information is lost.
type TimeoutError struct {
	BatchID      string
	Polls        int
	LastProgress *BatchProgress
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.LastProgress != nil {
		return fmt.Sprintf("batch %s timed out after %d polls (%d/%d completed)",
			e.BatchID, e.Polls, e.LastProgress.Completed, e.LastProgress.Total)
	}
	return fmt.Sprintf("batch %s timed out after %d polls", e.BatchID, e.Polls)
}

// Unwrap makes the error match ErrOperationTimedOut via errors.Is.
func (e *TimeoutError) Unwrap() error {
	return ErrOperationTimedOut
}

// Error codes for standardized API error responses.
const (
	ErrCodeResourceNotFound = "RESOURCE_NOT_FOUND"
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeUnknownAction    = "UNKNOWN_ACTION"
	ErrCodeSubmissionFailed = "SUBMISSION_FAILED"
	ErrCodeOperationTimeout = "OPERATION_TIMED_OUT"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// APIError represents an error response from the API.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}
