package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IdempotencyRow mirrors the idempotency_keys table.
type IdempotencyRow struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Key          string
	RequestHash  string
	ResponseJSON []byte
	StatusCode   int
	CreatedAt    time.Time
}

// IdempotencyRepository persists idempotency replay records.
type IdempotencyRepository struct {
	c *Client
}

func NewIdempotencyRepository(c *Client) *IdempotencyRepository { return &IdempotencyRepository{c: c} }

func (r *IdempotencyRepository) Insert(ctx context.Context, tx *Tx, rec *IdempotencyRow) error {
	q := `INSERT INTO idempotency_keys (id, tenant_id, key, request_hash, response_json, status_code, created_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7)`
	args := []any{rec.ID, rec.TenantID, rec.Key, rec.RequestHash, rec.ResponseJSON, rec.StatusCode, rec.CreatedAt}
	var err error
	if tx != nil {
		_, err = tx.Raw().ExecContext(ctx, q, args...)
	} else {
		_, err = r.c.db.ExecContext(ctx, q, args...)
	}
	if err != nil {
		return fmt.Errorf("database: insert idempotency record: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) GetByKey(ctx context.Context, tenantID uuid.UUID, key string) (*IdempotencyRow, error) {
	row := r.c.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, key, request_hash, response_json, status_code, created_at
		 FROM idempotency_keys WHERE tenant_id = $1 AND key = $2`, tenantID, key)
	var rec IdempotencyRow
	if err := row.Scan(&rec.ID, &rec.TenantID, &rec.Key, &rec.RequestHash, &rec.ResponseJSON, &rec.StatusCode, &rec.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrIdempotencyNotFound
		}
		return nil, fmt.Errorf("database: scan idempotency record: %w", err)
	}
	return &rec, nil
}

// RateLimitRepository persists fixed-window request counters.
type RateLimitRepository struct {
	c *Client
}

func NewRateLimitRepository(c *Client) *RateLimitRepository { return &RateLimitRepository{c: c} }

// IncrementAndGet atomically bumps the counter for (identity, window) and
// returns the post-increment count, creating the row on first use.
func (r *RateLimitRepository) IncrementAndGet(ctx context.Context, identity string, window int64) (int, error) {
	row := r.c.db.QueryRowContext(ctx,
		`INSERT INTO rate_limit_counters (identity, window, count) VALUES ($1, $2, 1)
		 ON CONFLICT (identity, window) DO UPDATE SET count = rate_limit_counters.count + 1
		 RETURNING count`, identity, window)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("database: increment rate limit counter: %w", err)
	}
	return count, nil
}

// EvictBefore deletes counters for windows strictly before the given
// window, bounding table growth per the rate limiter's eviction rule.
func (r *RateLimitRepository) EvictBefore(ctx context.Context, window int64) error {
	_, err := r.c.db.ExecContext(ctx, `DELETE FROM rate_limit_counters WHERE window < $1`, window)
	if err != nil {
		return fmt.Errorf("database: evict rate limit counters: %w", err)
	}
	return nil
}
