// Package service implements the bulk fleet-operation orchestrator: it
// submits a batch of resource identifiers to the control-plane, polls for
// per-item completion, and reduces the outcomes into a final report with
// cancel and retry-failed semantics.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/virtualdesk/fleet-console/internal/catalog"
	"github.com/virtualdesk/fleet-console/internal/controlplane"
	"github.com/virtualdesk/fleet-console/internal/domain"
	"github.com/virtualdesk/fleet-console/internal/storage"
	"github.com/virtualdesk/fleet-console/internal/validation"
)

// Defaults for the poll loop. Both are configurable via NewBulkService.
const (
	DefaultPollInterval = 1 * time.Second
	DefaultMaxPolls     = 300
)

// ProgressFunc receives a complete BatchProgress snapshot after every
// successful poll. Snapshots are never deltas, so a late subscriber needs
// no prior state.
type ProgressFunc func(*domain.BatchProgress)

// ExecuteOptions carries per-run options for a bulk operation.
type ExecuteOptions struct {
	// Options is passed through to the control-plane unmodified.
	Options map[string]string
	// OnProgress, if set, is invoked once per successful poll.
	OnProgress ProgressFunc
	// RequestedBy is recorded on the persisted batch record.
	RequestedBy string
}

// BulkService orchestrates bulk fleet operations. Independent batches run
// concurrently; each run owns its progress exclusively and shares nothing
// with other runs beyond the read-only action catalog.
type BulkService struct {
	cp           controlplane.Client
	store        storage.Storage
	pollInterval time.Duration
	maxPolls     int

	mu   sync.Mutex
	runs map[string]*run // keyed by batch ID, active runs only
}

// run tracks one orchestration through its state machine:
// Idle -> Submitting -> Tracking -> {Completed, Failed, TimedOut, Cancelled}.
type run struct {
	handle    *domain.BatchHandle
	state     domain.RunState
	cancelled atomic.Bool
}

// NewBulkService creates a BulkService. Zero interval or maxPolls fall back
// to the defaults.
func NewBulkService(cp controlplane.Client, store storage.Storage, pollInterval time.Duration, maxPolls int) *BulkService {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if maxPolls <= 0 {
		maxPolls = DefaultMaxPolls
	}
	return &BulkService{
		cp:           cp,
		store:        store,
		pollInterval: pollInterval,
		maxPolls:     maxPolls,
		runs:         make(map[string]*run),
	}
}

// Execute runs one bulk operation end to end: submit, track, finalize.
// Per-item failures are data, not errors: a batch with some failures still
// returns a (Partial or AllFailed) report and a nil error. The returned
// error is non-nil only for unknown actions, invalid input, submission
// failures, timeout, and cancellation.
func (s *BulkService) Execute(ctx context.Context, action string, resourceIDs []string, opts ExecuteOptions) (*domain.BatchReport, error) {
	// Fail fast, before any network call.
	act, err := catalog.Lookup(action)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateResourceIDs(resourceIDs); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, err)
	}

	handle, err := s.submit(ctx, act, resourceIDs, opts.Options)
	if err != nil {
		// Submitting -> Failed, without entering Tracking.
		return nil, err
	}

	r := &run{handle: handle, state: domain.RunTracking}
	s.register(r)
	defer s.unregister(r)

	progress, err := s.track(ctx, r, opts.OnProgress)
	finished := time.Now()

	switch {
	case err == nil:
		report := finalize(act, handle.BatchID, progress)
		s.record(handle, opts.RequestedBy, domain.RunCompleted, report, progress, finished)
		return report, nil

	case errors.Is(err, domain.ErrBatchCancelled):
		s.record(handle, opts.RequestedBy, domain.RunCancelled, nil, progress, finished)
		return nil, err

	case errors.Is(err, domain.ErrOperationTimedOut):
		s.record(handle, opts.RequestedBy, domain.RunTimedOut, nil, progress, finished)
		return nil, err

	default:
		s.record(handle, opts.RequestedBy, domain.RunFailed, nil, progress, finished)
		return nil, err
	}
}

// Cancel requests cancellation of an active run. The flag is observed at
// the top of the run's next poll iteration; a best-effort cancellation is
// also sent to the control-plane. Cancellation is advisory: items already
// in flight on the remote side may still complete.
func (s *BulkService) Cancel(ctx context.Context, batchID string) error {
	s.mu.Lock()
	r, ok := s.runs[batchID]
	s.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}

	r.cancelled.Store(true)
	if err := s.cp.CancelBatch(ctx, batchID); err != nil {
		// The local flag already stops the tracker; the remote call is
		// fire-and-forget.
		log.Printf("Best-effort cancel of batch %s failed: %v", batchID, err)
	}
	return nil
}

// RetryFailed re-submits exactly the failed identifiers of a previous
// report as a fresh batch. Skipped identifiers are not retried.
func (s *BulkService) RetryFailed(ctx context.Context, action string, report *domain.BatchReport, opts ExecuteOptions) (*domain.BatchReport, error) {
	failed := report.FailedIDs()
	if len(failed) == 0 {
		return nil, domain.ErrNoFailedItems
	}
	return s.Execute(ctx, action, failed, opts)
}

// submit validates nothing further; it issues the one-shot submission
// request and wraps the control-plane's batch ID into a handle. The handle
// is the sole local record of the submission.
func (s *BulkService) submit(ctx context.Context, act catalog.Action, resourceIDs []string, options map[string]string) (*domain.BatchHandle, error) {
	batchID, err := s.cp.SubmitBatch(ctx, act.Endpoint, &controlplane.SubmitRequest{
		ResourceIDs: resourceIDs,
		Action:      act.Name,
		Options:     options,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	return &domain.BatchHandle{
		BatchID:     batchID,
		Action:      act.Name,
		ResourceIDs: append([]string(nil), resourceIDs...),
		CreatedAt:   time.Now(),
	}, nil
}

func (s *BulkService) register(r *run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.handle.BatchID] = r
}

func (s *BulkService) unregister(r *run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, r.handle.BatchID)
}

// record persists the audit row for a terminal run. Persistence failures
// are logged, not propagated: the report already exists in memory and the
// history row is advisory.
func (s *BulkService) record(handle *domain.BatchHandle, requestedBy string, state domain.RunState, report *domain.BatchReport, progress *domain.BatchProgress, finished time.Time) {
	if s.store == nil {
		return
	}

	rec := &domain.BatchRecord{
		ID:          uuid.New().String(),
		BatchID:     handle.BatchID,
		Action:      handle.Action,
		Total:       handle.Total(),
		State:       state,
		CreatedAt:   handle.CreatedAt,
		FinishedAt:  &finished,
		RequestedBy: requestedBy,
	}
	if progress != nil {
		rec.Successful = progress.Successful
		rec.Failed = progress.Failed
		rec.Skipped = progress.Skipped
	}
	if report != nil {
		rec.Outcome = report.Outcome
		rec.Summary = report.Summary
		rec.FailedIDs = report.FailedIDs()
	}

	if err := s.store.CreateBatchRecord(context.Background(), rec); err != nil {
		log.Printf("Warning: failed to persist batch record for %s: %v", handle.BatchID, err)
	}
}
