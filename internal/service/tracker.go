package service

import (
	"context"
	"errors"
	"log"

	"github.com/sethvargo/go-retry"

	"github.com/virtualdesk/fleet-console/internal/controlplane"
	"github.com/virtualdesk/fleet-console/internal/domain"
)

// Internal loop-control errors. Wrapped in retry.RetryableError they mean
// "poll again"; they never escape track.
var (
	errStillRunning = errors.New("batch still in progress")
	errStaleStatus  = errors.New("stale status ignored")
)

// track polls the control-plane for the run's batch until progress is
// terminal, the poll budget is exhausted, or the run is cancelled. It
// returns the last observed progress in every case so nothing is lost.
//
// A single failed poll is transient: it consumes a tick and contributes no
// new outcomes, but only the overall budget is fatal.
func (s *BulkService) track(ctx context.Context, r *run, onProgress ProgressFunc) (*domain.BatchProgress, error) {
	handle := r.handle
	var last *domain.BatchProgress
	polls := 0

	// One attempt plus maxPolls-1 retries at a constant interval gives
	// exactly maxPolls status checks.
	backoff := retry.WithMaxRetries(uint64(s.maxPolls-1), retry.NewConstant(s.pollInterval))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		// Cooperative cancellation: checked before issuing the next
		// status request.
		if r.cancelled.Load() {
			return domain.ErrBatchCancelled
		}

		polls++
		status, err := s.cp.BatchStatus(ctx, handle.BatchID)
		if err != nil {
			log.Printf("Transient poll error for batch %s (poll %d/%d): %v", handle.BatchID, polls, s.maxPolls, err)
			return retry.RetryableError(err)
		}

		snapshot := snapshotFromStatus(handle, status)

		// Completed must never decrease across polls for one batch. A
		// status that goes backwards is a stale read; keep the previous
		// snapshot and poll again.
		if last != nil && snapshot.Completed < last.Completed {
			return retry.RetryableError(errStaleStatus)
		}
		last = snapshot

		if onProgress != nil {
			onProgress(snapshot)
		}

		if snapshot.Terminal() {
			return nil
		}
		return retry.RetryableError(errStillRunning)
	})

	switch {
	case err == nil:
		return last, nil
	case errors.Is(err, domain.ErrBatchCancelled), errors.Is(err, context.Canceled):
		return last, domain.ErrBatchCancelled
	default:
		// Budget exhausted (or deadline): surface the timeout with the
		// last partial progress attached.
		return last, &domain.TimeoutError{
			BatchID:      handle.BatchID,
			Polls:        polls,
			LastProgress: last,
		}
	}
}

// snapshotFromStatus builds a complete progress snapshot from one status
// response. Snapshots replace each other wholesale; they are never merged
// field by field.
func snapshotFromStatus(handle *domain.BatchHandle, status *controlplane.BatchStatus) *domain.BatchProgress {
	return &domain.BatchProgress{
		BatchID:    handle.BatchID,
		State:      status.Status,
		Total:      handle.Total(),
		Completed:  status.Completed,
		Successful: status.Successful,
		Failed:     status.Failed,
		Skipped:    status.Skipped,
		Outcomes:   append([]domain.ItemOutcome(nil), status.Results...),
	}
}
