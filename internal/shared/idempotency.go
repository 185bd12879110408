package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
)

// IdempotencyStore persists processed Idempotency-Key values per module.
type IdempotencyStore struct {
	db  Execer
	now func() time.Time
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(exec Execer) *IdempotencyStore {
	return &IdempotencyStore{db: exec, now: time.Now}
}

// ErrIdempotencyConflict indicates a duplicate key.
var ErrIdempotencyConflict = fmt.Errorf("idempotent request already processed: %w", httpx.ErrDuplicate)

// CheckAndInsert ensures key uniqueness per module.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	_, err := s.db.Exec(ctx, `INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, $3)`, key, module, s.now())
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

// Cleanup removes entries older than retention.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if s == nil {
		return nil
	}
	cutoff := s.now().Add(-olderThan)
	_, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	return err
}

// Delete removes a key, typically used to roll back failed processing.
func (s *IdempotencyStore) Delete(ctx context.Context, key string) error {
	if s == nil {
		return nil
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	_, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE key=$1`, key)
	return err
}
