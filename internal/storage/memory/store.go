// Package memory provides an in-memory implementation of the storage
// interface for testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/virtualdesk/fleet-console/internal/domain"
)

// Store is an in-memory implementation of the storage interface.
type Store struct {
	mu sync.RWMutex

	apiKeys      map[string]*domain.APIKey      // key: id
	batchRecords map[string]*domain.BatchRecord // key: id
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		apiKeys:      make(map[string]*domain.APIKey),
		batchRecords: make(map[string]*domain.BatchRecord),
	}
}

func (s *Store) Close() error { return nil }

// CreateAPIKey inserts a new API key.
func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.apiKeys {
		if existing.KeyHash == key.KeyHash {
			return domain.ErrAlreadyExists
		}
	}
	cp := *key
	s.apiKeys[key.ID] = &cp
	return nil
}

// GetAPIKeyByHash looks up an API key by its hash.
func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, key := range s.apiKeys {
		if key.KeyHash == keyHash {
			cp := *key
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListAPIKeys lists all API keys, newest first.
func (s *Store) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]*domain.APIKey, 0, len(s.apiKeys))
	for _, key := range s.apiKeys {
		cp := *key
		keys = append(keys, &cp)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.After(keys[j].CreatedAt) })
	return keys, nil
}

// DeleteAPIKey deletes an API key by ID.
func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apiKeys[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.apiKeys, id)
	return nil
}

// UpdateAPIKeyLastUsed stamps the key's last-used time.
func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.apiKeys[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	key.LastUsedAt = &now
	return nil
}

// CountAPIKeys counts all API keys.
func (s *Store) CountAPIKeys(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.apiKeys), nil
}

// CreateBatchRecord inserts the audit row for one bulk-operation run.
func (s *Store) CreateBatchRecord(ctx context.Context, rec *domain.BatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.batchRecords {
		if existing.BatchID == rec.BatchID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *rec
	s.batchRecords[rec.ID] = &cp
	return nil
}

// GetBatchRecordByBatchID looks up one run by its control-plane batch ID.
func (s *Store) GetBatchRecordByBatchID(ctx context.Context, batchID string) (*domain.BatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.batchRecords {
		if rec.BatchID == batchID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListBatchRecords lists runs, newest first, up to limit (0 means all).
func (s *Store) ListBatchRecords(ctx context.Context, limit int) ([]*domain.BatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]*domain.BatchRecord, 0, len(s.batchRecords))
	for _, rec := range s.batchRecords {
		cp := *rec
		recs = append(recs, &cp)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].CreatedAt.After(recs[j].CreatedAt) })
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}
