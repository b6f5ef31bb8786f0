package domain

import "time"

// FindingSeverity ranks IAM/security findings.
type FindingSeverity string

const (
	SeverityCritical FindingSeverity = "critical"
	SeverityHigh     FindingSeverity = "high"
	SeverityMedium   FindingSeverity = "medium"
	SeverityLow      FindingSeverity = "low"
)

// Finding is one IAM or security finding surfaced on the dashboard.
type Finding struct {
	ID          string          `json:"id"`
	Severity    FindingSeverity `json:"severity"`
	Category    string          `json:"category"` // e.g. "iam", "network", "encryption"
	ResourceID  string          `json:"resource_id,omitempty"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	DetectedAt  time.Time       `json:"detected_at"`
}
