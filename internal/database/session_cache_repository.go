package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/lingobot/pkg/models"
)

// SessionCacheRepository persists interrupted-session snapshots with a
// TTL, keyed by owner. It backs the session runtime's resume support;
// expired rows are treated as absent and lazily deleted.
type SessionCacheRepository struct {
	db  *DB
	now func() time.Time
}

// NewSessionCacheRepository creates a new repository instance.
func NewSessionCacheRepository(db *DB) *SessionCacheRepository {
	return &SessionCacheRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Put stores the snapshot under the key, replacing any previous one.
func (r *SessionCacheRepository) Put(ctx context.Context, key string, snapshot *models.SessionSnapshot, ttl time.Duration) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode session snapshot: %w", err)
	}
	expiresAt := r.now().Add(ttl)

	// Delete-then-insert keeps the statement portable across backends.
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session_cache WHERE cache_key = $1`, key); err != nil {
		return fmt.Errorf("failed to replace session snapshot: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO session_cache (cache_key, payload, expires_at) VALUES ($1, $2, $3)`,
		key, string(payload), expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store session snapshot: %w", err)
	}
	return nil
}

// Get returns the snapshot stored under the key, or nil when none exists
// or the stored one has expired.
func (r *SessionCacheRepository) Get(ctx context.Context, key string) (*models.SessionSnapshot, error) {
	var row struct {
		Payload   string    `db:"payload"`
		ExpiresAt time.Time `db:"expires_at"`
	}
	err := r.db.GetContext(ctx, &row,
		`SELECT payload, expires_at FROM session_cache WHERE cache_key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session snapshot: %w", err)
	}

	if !row.ExpiresAt.After(r.now()) {
		_ = r.Delete(ctx, key)
		return nil, nil
	}

	var snapshot models.SessionSnapshot
	if err := json.Unmarshal([]byte(row.Payload), &snapshot); err != nil {
		// A corrupt snapshot is as good as no snapshot.
		_ = r.Delete(ctx, key)
		return nil, nil
	}
	return &snapshot, nil
}

// Delete removes the snapshot stored under the key.
func (r *SessionCacheRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session_cache WHERE cache_key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete session snapshot: %w", err)
	}
	return nil
}
