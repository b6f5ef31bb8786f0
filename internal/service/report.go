package service

import (
	"fmt"

	"github.com/virtualdesk/fleet-console/internal/catalog"
	"github.com/virtualdesk/fleet-console/internal/domain"
)

// finalize reduces terminal progress into a BatchReport. Classification is
// exhaustive and exclusive: AllSucceeded when nothing failed or was
// skipped, AllFailed when nothing succeeded, Partial otherwise.
func finalize(act catalog.Action, batchID string, progress *domain.BatchProgress) *domain.BatchReport {
	var outcome domain.BatchOutcome
	switch {
	case progress.Failed == 0 && progress.Skipped == 0:
		outcome = domain.AllSucceeded
	case progress.Successful == 0:
		outcome = domain.AllFailed
	default:
		outcome = domain.Partial
	}

	return &domain.BatchReport{
		BatchID:  batchID,
		Action:   act.Name,
		Outcome:  outcome,
		Summary:  summarize(act, outcome, progress),
		Progress: progress,
	}
}

// summarize builds the human-readable one-liner using the action's
// past-tense label from the catalog.
func summarize(act catalog.Action, outcome domain.BatchOutcome, p *domain.BatchProgress) string {
	switch outcome {
	case domain.AllSucceeded:
		return fmt.Sprintf("Successfully %s %d %s", act.Label, p.Successful, pluralize(p.Successful))
	case domain.AllFailed:
		return fmt.Sprintf("Bulk %s failed for all %d %s", act.Name, p.Total, pluralize(p.Total))
	default:
		return fmt.Sprintf("Successfully %s %d of %d %s (%d failed, %d skipped)",
			act.Label, p.Successful, p.Total, pluralize(p.Total), p.Failed, p.Skipped)
	}
}

func pluralize(n int) string {
	if n == 1 {
		return "resource"
	}
	return "resources"
}
