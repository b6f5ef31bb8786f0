package storage

import (
	"context"

	"github.com/virtualdesk/fleet-console/internal/domain"
)

// Storage defines the interface for the service's own persistence: API keys
// and the bulk-operation audit trail. Fleet resources themselves live in
// the control-plane; they are never stored here.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Close closes the storage connection.
	Close() error

	// API Keys
	CreateAPIKey(ctx context.Context, key *domain.APIKey) error
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error)
	DeleteAPIKey(ctx context.Context, id string) error
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
	CountAPIKeys(ctx context.Context) (int, error)

	// Batch records (bulk-operation history)
	CreateBatchRecord(ctx context.Context, rec *domain.BatchRecord) error
	GetBatchRecordByBatchID(ctx context.Context, batchID string) (*domain.BatchRecord, error)
	ListBatchRecords(ctx context.Context, limit int) ([]*domain.BatchRecord, error)
}
