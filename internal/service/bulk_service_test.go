package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/virtualdesk/fleet-console/internal/catalog"
	"github.com/virtualdesk/fleet-console/internal/controlplane"
	"github.com/virtualdesk/fleet-console/internal/domain"
	"github.com/virtualdesk/fleet-console/internal/storage/memory"
)

// fakeControlPlane scripts batch submissions and status responses. Each
// call to BatchStatus consumes the next scripted status; the last one
// repeats once the script is exhausted.
type fakeControlPlane struct {
	mu sync.Mutex

	submitErr   error
	statuses    []*controlplane.BatchStatus
	statusErrs  []error // consumed before statuses; nil entries are skipped
	submitCalls int
	statusCalls int
	cancelCalls int
	nextBatchID int
}

func (f *fakeControlPlane) ListResources(ctx context.Context, filter domain.ResourceFilter) ([]*domain.Resource, error) {
	return nil, nil
}
func (f *fakeControlPlane) GetResource(ctx context.Context, id string) (*domain.Resource, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeControlPlane) CostSummary(ctx context.Context) (*domain.CostSummary, error) {
	return nil, nil
}
func (f *fakeControlPlane) ListFindings(ctx context.Context, severity domain.FindingSeverity) ([]*domain.Finding, error) {
	return nil, nil
}

func (f *fakeControlPlane) SubmitBatch(ctx context.Context, endpoint string, req *controlplane.SubmitRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.nextBatchID++
	return fmt.Sprintf("batch-%d", f.nextBatchID), nil
}

func (f *fakeControlPlane) BatchStatus(ctx context.Context, batchID string) (*controlplane.BatchStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if len(f.statusErrs) > 0 {
		err := f.statusErrs[0]
		f.statusErrs = f.statusErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(f.statuses) == 0 {
		return &controlplane.BatchStatus{Status: domain.BatchInProgress}, nil
	}
	status := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return status, nil
}

func (f *fakeControlPlane) CancelBatch(ctx context.Context, batchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	return nil
}

func newTestService(cp controlplane.Client) *BulkService {
	return NewBulkService(cp, memory.New(), time.Millisecond, 10)
}

func successStatus(ids []string) *controlplane.BatchStatus {
	status := &controlplane.BatchStatus{Status: domain.BatchCompleted}
	for _, id := range ids {
		status.Completed++
		status.Successful++
		status.Results = append(status.Results, domain.ItemOutcome{ResourceID: id, Status: domain.ItemSuccess})
	}
	return status
}

func TestExecute_FullSuccess(t *testing.T) {
	ids := []string{"ws-aaa1", "ws-bbb2", "ws-ccc3"}
	cp := &fakeControlPlane{statuses: []*controlplane.BatchStatus{successStatus(ids)}}
	svc := newTestService(cp)

	report, err := svc.Execute(context.Background(), catalog.ActionStart, ids, ExecuteOptions{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if report.Outcome != domain.AllSucceeded {
		t.Errorf("Expected AllSucceeded, got %s", report.Outcome)
	}
	if report.Summary != "Successfully started 3 resources" {
		t.Errorf("Unexpected summary: %q", report.Summary)
	}
	if report.Progress.Total != 3 || report.Progress.Completed != 3 {
		t.Errorf("Expected 3/3 completed, got %d/%d", report.Progress.Completed, report.Progress.Total)
	}
	if got := report.FailedIDs(); len(got) != 0 {
		t.Errorf("Expected no failed IDs, got %v", got)
	}
}

func TestExecute_UnknownAction_NoNetworkCall(t *testing.T) {
	cp := &fakeControlPlane{}
	svc := newTestService(cp)

	_, err := svc.Execute(context.Background(), "nonexistent-action", []string{"ws-aaa1"}, ExecuteOptions{})
	if !errors.Is(err, domain.ErrUnknownAction) {
		t.Fatalf("Expected ErrUnknownAction, got %v", err)
	}
	if cp.submitCalls != 0 || cp.statusCalls != 0 {
		t.Errorf("Expected no network calls, got %d submits and %d polls", cp.submitCalls, cp.statusCalls)
	}
}

func TestExecute_InvalidResourceIDs(t *testing.T) {
	cp := &fakeControlPlane{}
	svc := newTestService(cp)

	tests := []struct {
		name string
		ids  []string
	}{
		{"empty list", nil},
		{"malformed id", []string{"not-a-resource"}},
		{"empty id", []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Execute(context.Background(), catalog.ActionStop, tt.ids, ExecuteOptions{})
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
		})
	}
	if cp.submitCalls != 0 {
		t.Errorf("Expected no submissions, got %d", cp.submitCalls)
	}
}

func TestExecute_SubmissionFailed(t *testing.T) {
	cp := &fakeControlPlane{
		submitErr: &domain.SubmissionError{Action: "stop", StatusCode: 503, Body: "unavailable"},
	}
	svc := newTestService(cp)

	_, err := svc.Execute(context.Background(), catalog.ActionStop, []string{"ws-aaa1"}, ExecuteOptions{})
	if !errors.Is(err, domain.ErrSubmissionFailed) {
		t.Fatalf("Expected ErrSubmissionFailed, got %v", err)
	}

	var subErr *domain.SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("Expected *SubmissionError, got %T", err)
	}
	if subErr.StatusCode != 503 || subErr.Body != "unavailable" {
		t.Errorf("Expected status and body preserved, got %d %q", subErr.StatusCode, subErr.Body)
	}
	if cp.statusCalls != 0 {
		t.Errorf("Submission failure must not enter tracking, got %d polls", cp.statusCalls)
	}
}

func TestExecute_ProgressInvariantsAndMonotonicity(t *testing.T) {
	ids := []string{"ws-aaa1", "ws-bbb2", "ws-ccc3", "ws-ddd4"}
	cp := &fakeControlPlane{statuses: []*controlplane.BatchStatus{
		{Status: domain.BatchInProgress, Completed: 1, Successful: 1,
			Results: []domain.ItemOutcome{{ResourceID: "ws-aaa1", Status: domain.ItemSuccess}}},
		{Status: domain.BatchInProgress, Completed: 3, Successful: 2, Failed: 1,
			Results: []domain.ItemOutcome{
				{ResourceID: "ws-aaa1", Status: domain.ItemSuccess},
				{ResourceID: "ws-bbb2", Status: domain.ItemSuccess},
				{ResourceID: "ws-ccc3", Status: domain.ItemError, Message: "boom"},
			}},
		{Status: domain.BatchCompleted, Completed: 4, Successful: 3, Failed: 1,
			Results: []domain.ItemOutcome{
				{ResourceID: "ws-aaa1", Status: domain.ItemSuccess},
				{ResourceID: "ws-bbb2", Status: domain.ItemSuccess},
				{ResourceID: "ws-ccc3", Status: domain.ItemError, Message: "boom"},
				{ResourceID: "ws-ddd4", Status: domain.ItemSuccess},
			}},
	}}
	svc := newTestService(cp)

	var snapshots []*domain.BatchProgress
	opts := ExecuteOptions{OnProgress: func(p *domain.BatchProgress) {
		snapshots = append(snapshots, p)
	}}

	report, err := svc.Execute(context.Background(), catalog.ActionRestart, ids, opts)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(snapshots) != 3 {
		t.Fatalf("Expected 3 progress snapshots, got %d", len(snapshots))
	}

	prev := -1
	for i, p := range snapshots {
		if p.Completed != p.Successful+p.Failed+p.Skipped {
			t.Errorf("Snapshot %d: completed %d != %d+%d+%d", i, p.Completed, p.Successful, p.Failed, p.Skipped)
		}
		if p.Completed > p.Total {
			t.Errorf("Snapshot %d: completed %d exceeds total %d", i, p.Completed, p.Total)
		}
		if p.Completed < prev {
			t.Errorf("Snapshot %d: completed decreased from %d to %d", i, prev, p.Completed)
		}
		prev = p.Completed
	}

	if report.Outcome != domain.Partial {
		t.Errorf("Expected Partial, got %s", report.Outcome)
	}
}

func TestExecute_StaleStatusIgnored(t *testing.T) {
	ids := []string{"ws-aaa1", "ws-bbb2"}
	cp := &fakeControlPlane{statuses: []*controlplane.BatchStatus{
		{Status: domain.BatchInProgress, Completed: 2, Successful: 2,
			Results: []domain.ItemOutcome{
				{ResourceID: "ws-aaa1", Status: domain.ItemSuccess},
				{ResourceID: "ws-bbb2", Status: domain.ItemSuccess},
			}},
		// Stale read: completed goes backwards. Must not be emitted.
		{Status: domain.BatchInProgress, Completed: 1, Successful: 1,
			Results: []domain.ItemOutcome{{ResourceID: "ws-aaa1", Status: domain.ItemSuccess}}},
		successStatus(ids),
	}}
	svc := newTestService(cp)

	var snapshots []*domain.BatchProgress
	opts := ExecuteOptions{OnProgress: func(p *domain.BatchProgress) {
		snapshots = append(snapshots, p)
	}}

	if _, err := svc.Execute(context.Background(), catalog.ActionStart, ids, opts); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	prev := -1
	for i, p := range snapshots {
		if p.Completed < prev {
			t.Errorf("Snapshot %d: completed decreased from %d to %d", i, prev, p.Completed)
		}
		prev = p.Completed
	}
}

func TestExecute_PartialFailureAndRetry(t *testing.T) {
	ids := []string{"ws-aaa1", "ws-bbb2", "ws-ccc3", "ws-ddd4", "ws-eee5"}
	final := &controlplane.BatchStatus{
		Status: domain.BatchCompleted, Completed: 5, Successful: 3, Failed: 2,
		Results: []domain.ItemOutcome{
			{ResourceID: "ws-aaa1", Status: domain.ItemSuccess},
			{ResourceID: "ws-bbb2", Status: domain.ItemError, Message: "agent unreachable"},
			{ResourceID: "ws-ccc3", Status: domain.ItemSuccess},
			{ResourceID: "ws-ddd4", Status: domain.ItemError, Message: "agent unreachable"},
			{ResourceID: "ws-eee5", Status: domain.ItemSuccess},
		},
	}
	cp := &fakeControlPlane{statuses: []*controlplane.BatchStatus{final}}
	svc := newTestService(cp)

	report, err := svc.Execute(context.Background(), catalog.ActionStop, ids, ExecuteOptions{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if report.Outcome != domain.Partial {
		t.Fatalf("Expected Partial, got %s", report.Outcome)
	}

	failed := report.FailedIDs()
	if len(failed) != 2 || failed[0] != "ws-bbb2" || failed[1] != "ws-ddd4" {
		t.Fatalf("Expected failed IDs [ws-bbb2 ws-ddd4], got %v", failed)
	}
	if len(failed) != report.Progress.Failed {
		t.Errorf("FailedIDs length %d != failed count %d", len(failed), report.Progress.Failed)
	}

	// Retry produces a fresh batch over exactly the failed subset.
	cp.statuses = []*controlplane.BatchStatus{successStatus(failed)}
	retryReport, err := svc.RetryFailed(context.Background(), catalog.ActionStop, report, ExecuteOptions{})
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if retryReport.BatchID == report.BatchID {
		t.Errorf("Retry must produce a fresh batch handle")
	}
	if retryReport.Progress.Total != 2 {
		t.Errorf("Expected retry total 2, got %d", retryReport.Progress.Total)
	}
	if retryReport.Outcome != domain.AllSucceeded {
		t.Errorf("Expected AllSucceeded on retry, got %s", retryReport.Outcome)
	}
}

func TestRetryFailed_NothingToRetry(t *testing.T) {
	svc := newTestService(&fakeControlPlane{})
	report := &domain.BatchReport{
		Progress: &domain.BatchProgress{
			Outcomes: []domain.ItemOutcome{
				{ResourceID: "ws-aaa1", Status: domain.ItemSuccess},
				{ResourceID: "ws-bbb2", Status: domain.ItemSkipped},
			},
		},
	}

	if _, err := svc.RetryFailed(context.Background(), catalog.ActionStart, report, ExecuteOptions{}); !errors.Is(err, domain.ErrNoFailedItems) {
		t.Errorf("Expected ErrNoFailedItems, got %v", err)
	}
}

func TestExecute_SkippedNotRetried(t *testing.T) {
	ids := []string{"ws-aaa1", "ws-bbb2", "ws-ccc3"}
	cp := &fakeControlPlane{statuses: []*controlplane.BatchStatus{{
		Status: domain.BatchCompleted, Completed: 3, Successful: 1, Failed: 1, Skipped: 1,
		Results: []domain.ItemOutcome{
			{ResourceID: "ws-aaa1", Status: domain.ItemSuccess},
			{ResourceID: "ws-bbb2", Status: domain.ItemSkipped, Message: "already stopped"},
			{ResourceID: "ws-ccc3", Status: domain.ItemError, Message: "boom"},
		},
	}}}
	svc := newTestService(cp)

	report, err := svc.Execute(context.Background(), catalog.ActionStop, ids, ExecuteOptions{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	failed := report.FailedIDs()
	if len(failed) != 1 || failed[0] != "ws-ccc3" {
		t.Errorf("Expected only the errored ID, got %v", failed)
	}
}

func TestExecute_Timeout(t *testing.T) {
	ids := []string{"ws-aaa1", "ws-bbb2", "ws-ccc3"}
	// Status never reaches a terminal state.
	cp := &fakeControlPlane{statuses: []*controlplane.BatchStatus{{
		Status: domain.BatchInProgress, Completed: 1, Successful: 1,
		Results: []domain.ItemOutcome{{ResourceID: "ws-aaa1", Status: domain.ItemSuccess}},
	}}}
	svc := newTestService(cp)

	_, err := svc.Execute(context.Background(), catalog.ActionStart, ids, ExecuteOptions{})
	if !errors.Is(err, domain.ErrOperationTimedOut) {
		t.Fatalf("Expected ErrOperationTimedOut, got %v", err)
	}

	var timeoutErr *domain.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("Expected *TimeoutError, got %T", err)
	}
	if timeoutErr.LastProgress == nil {
		t.Fatal("Expected last partial progress attached")
	}
	if timeoutErr.LastProgress.Completed >= timeoutErr.LastProgress.Total {
		t.Errorf("Expected completed < total, got %d/%d",
			timeoutErr.LastProgress.Completed, timeoutErr.LastProgress.Total)
	}
}

func TestExecute_TransientPollErrorsTolerated(t *testing.T) {
	ids := []string{"ws-aaa1"}
	cp := &fakeControlPlane{
		statusErrs: []error{
			errors.New("connection refused"),
			errors.New("connection refused"),
		},
		statuses: []*controlplane.BatchStatus{successStatus(ids)},
	}
	svc := newTestService(cp)

	report, err := svc.Execute(context.Background(), catalog.ActionStart, ids, ExecuteOptions{})
	if err != nil {
		t.Fatalf("Transient poll errors must not abort tracking: %v", err)
	}
	if report.Outcome != domain.AllSucceeded {
		t.Errorf("Expected AllSucceeded, got %s", report.Outcome)
	}
	if cp.statusCalls < 3 {
		t.Errorf("Expected at least 3 polls (2 transient + 1 success), got %d", cp.statusCalls)
	}
}

func TestExecute_Cancel(t *testing.T) {
	ids := []string{"ws-aaa1", "ws-bbb2", "ws-ccc3"}
	// Never terminal: the run only ends via cancellation.
	cp := &fakeControlPlane{statuses: []*controlplane.BatchStatus{{
		Status: domain.BatchInProgress, Completed: 1, Successful: 1,
		Results: []domain.ItemOutcome{{ResourceID: "ws-aaa1", Status: domain.ItemSuccess}},
	}}}
	svc := NewBulkService(cp, memory.New(), time.Millisecond, 1000)

	started := make(chan string, 1)
	opts := ExecuteOptions{OnProgress: func(p *domain.BatchProgress) {
		select {
		case started <- p.BatchID:
		default:
		}
	}}

	done := make(chan error, 1)
	go func() {
		_, err := svc.Execute(context.Background(), catalog.ActionStop, ids, opts)
		done <- err
	}()

	var batchID string
	select {
	case batchID = <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for tracking to start")
	}

	if err := svc.Cancel(context.Background(), batchID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, domain.ErrBatchCancelled) {
			t.Errorf("Expected ErrBatchCancelled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for cancelled run to finish")
	}

	if cp.cancelCalls != 1 {
		t.Errorf("Expected 1 best-effort cancel call, got %d", cp.cancelCalls)
	}

	// The run is gone; cancelling again reports not found.
	if err := svc.Cancel(context.Background(), batchID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after run finished, got %v", err)
	}
}

func TestExecute_PersistsBatchRecord(t *testing.T) {
	ids := []string{"ws-aaa1", "ws-bbb2"}
	cp := &fakeControlPlane{statuses: []*controlplane.BatchStatus{{
		Status: domain.BatchCompleted, Completed: 2, Successful: 1, Failed: 1,
		Results: []domain.ItemOutcome{
			{ResourceID: "ws-aaa1", Status: domain.ItemSuccess},
			{ResourceID: "ws-bbb2", Status: domain.ItemError, Message: "boom"},
		},
	}}}
	store := memory.New()
	svc := NewBulkService(cp, store, time.Millisecond, 10)

	report, err := svc.Execute(context.Background(), catalog.ActionDelete, ids, ExecuteOptions{RequestedBy: "ops@example.com"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	rec, err := store.GetBatchRecordByBatchID(context.Background(), report.BatchID)
	if err != nil {
		t.Fatalf("Expected a persisted batch record: %v", err)
	}
	if rec.State != domain.RunCompleted {
		t.Errorf("Expected RunCompleted, got %s", rec.State)
	}
	if rec.Outcome != domain.Partial {
		t.Errorf("Expected Partial outcome, got %s", rec.Outcome)
	}
	if rec.Total != 2 || rec.Successful != 1 || rec.Failed != 1 {
		t.Errorf("Unexpected counts: total=%d successful=%d failed=%d", rec.Total, rec.Successful, rec.Failed)
	}
	if len(rec.FailedIDs) != 1 || rec.FailedIDs[0] != "ws-bbb2" {
		t.Errorf("Expected failed IDs [ws-bbb2], got %v", rec.FailedIDs)
	}
	if rec.RequestedBy != "ops@example.com" {
		t.Errorf("Expected requested_by recorded, got %q", rec.RequestedBy)
	}
}

func TestFinalize_ClassificationExhaustive(t *testing.T) {
	act, _ := catalog.Lookup(catalog.ActionStart)

	tests := []struct {
		name                        string
		successful, failed, skipped int
		want                        domain.BatchOutcome
	}{
		{"all succeeded", 3, 0, 0, domain.AllSucceeded},
		{"all failed", 0, 3, 0, domain.AllFailed},
		{"all skipped", 0, 0, 3, domain.AllFailed},
		{"mixed success and failure", 2, 1, 0, domain.Partial},
		{"mixed success and skip", 2, 0, 1, domain.Partial},
		{"mixed all three", 1, 1, 1, domain.Partial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			progress := &domain.BatchProgress{
				Total:      tt.successful + tt.failed + tt.skipped,
				Completed:  tt.successful + tt.failed + tt.skipped,
				Successful: tt.successful,
				Failed:     tt.failed,
				Skipped:    tt.skipped,
			}
			report := finalize(act, "batch-x", progress)
			if report.Outcome != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, report.Outcome)
			}
		})
	}
}

func TestSummarize_SingularResource(t *testing.T) {
	act, _ := catalog.Lookup(catalog.ActionArchive)
	progress := &domain.BatchProgress{Total: 1, Completed: 1, Successful: 1}

	report := finalize(act, "batch-x", progress)
	if report.Summary != "Successfully archived 1 resource" {
		t.Errorf("Unexpected summary: %q", report.Summary)
	}
}
