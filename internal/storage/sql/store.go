package sql

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/virtualdesk/fleet-console/internal/domain"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// isUniqueViolation checks if an error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite
	if strings.Contains(errStr, "UNIQUE constraint failed") {
		return true
	}
	// PostgreSQL
	if strings.Contains(errStr, "duplicate key value violates unique constraint") {
		return true
	}
	return false
}

// wrapUniqueError converts UNIQUE violations to domain.ErrAlreadyExists.
func wrapUniqueError(err error) error {
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// Store implements the storage.Storage interface using SQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

// New creates a new SQL store and runs pending migrations.
func New(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db.DB, "migrations"); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind converts ? placeholders to the driver's syntax.
func (s *Store) rebind(query string) string {
	return s.db.Rebind(query)
}

// CreateAPIKey inserts a new API key.
func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	query := s.rebind(`
		INSERT INTO api_keys (id, name, key_hash, key_prefix, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.CreatedAt)
	return wrapUniqueError(err)
}

// GetAPIKeyByHash looks up an API key by its hash.
func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	var key domain.APIKey
	query := s.rebind(`SELECT * FROM api_keys WHERE key_hash = ?`)
	if err := s.db.GetContext(ctx, &key, query, keyHash); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &key, nil
}

// ListAPIKeys lists all API keys, newest first.
func (s *Store) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	keys := []*domain.APIKey{}
	query := `SELECT * FROM api_keys ORDER BY created_at DESC`
	if err := s.db.SelectContext(ctx, &keys, query); err != nil {
		return nil, err
	}
	return keys, nil
}

// DeleteAPIKey deletes an API key by ID.
func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	query := s.rebind(`DELETE FROM api_keys WHERE id = ?`)
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateAPIKeyLastUsed stamps the key's last-used time.
func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	query := s.rebind(`UPDATE api_keys SET last_used_at = ? WHERE id = ?`)
	_, err := s.db.ExecContext(ctx, query, time.Now(), id)
	return err
}

// CountAPIKeys counts all API keys.
func (s *Store) CountAPIKeys(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM api_keys`); err != nil {
		return 0, err
	}
	return count, nil
}

// CreateBatchRecord inserts the audit row for one bulk-operation run.
func (s *Store) CreateBatchRecord(ctx context.Context, rec *domain.BatchRecord) error {
	query := s.rebind(`
		INSERT INTO batch_records
			(id, batch_id, action, total, successful, failed, skipped,
			 state, outcome, summary, failed_ids, created_at, finished_at, requested_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.BatchID, rec.Action, rec.Total, rec.Successful, rec.Failed, rec.Skipped,
		rec.State, rec.Outcome, rec.Summary, rec.FailedIDs, rec.CreatedAt, rec.FinishedAt, rec.RequestedBy)
	return wrapUniqueError(err)
}

// GetBatchRecordByBatchID looks up one run by its control-plane batch ID.
func (s *Store) GetBatchRecordByBatchID(ctx context.Context, batchID string) (*domain.BatchRecord, error) {
	var rec domain.BatchRecord
	query := s.rebind(`SELECT * FROM batch_records WHERE batch_id = ?`)
	if err := s.db.GetContext(ctx, &rec, query, batchID); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// ListBatchRecords lists runs, newest first, up to limit (0 means all).
func (s *Store) ListBatchRecords(ctx context.Context, limit int) ([]*domain.BatchRecord, error) {
	recs := []*domain.BatchRecord{}
	query := `SELECT * FROM batch_records ORDER BY created_at DESC`
	if limit > 0 {
		query = s.rebind(query + ` LIMIT ?`)
		if err := s.db.SelectContext(ctx, &recs, query, limit); err != nil {
			return nil, err
		}
		return recs, nil
	}
	if err := s.db.SelectContext(ctx, &recs, query); err != nil {
		return nil, err
	}
	return recs, nil
}
