package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TenantRow mirrors the tenants table.
type TenantRow struct {
	ID             uuid.UUID
	Name           string
	LifecycleState string
	IsActive       bool
	CreatedAt      time.Time
}

// TenantRepository persists tenants.
type TenantRepository struct {
	c *Client
}

func NewTenantRepository(c *Client) *TenantRepository { return &TenantRepository{c: c} }

func (r *TenantRepository) Insert(ctx context.Context, t *TenantRow) error {
	_, err := r.c.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, lifecycle_state, is_active, created_at) VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.Name, t.LifecycleState, t.IsActive, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("database: insert tenant: %w", err)
	}
	return nil
}

// ListAll returns every tenant, used by the admin anchor snapshot route.
func (r *TenantRepository) ListAll(ctx context.Context) ([]TenantRow, error) {
	rows, err := r.c.db.QueryContext(ctx,
		`SELECT id, name, lifecycle_state, is_active, created_at FROM tenants ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("database: list tenants: %w", err)
	}
	defer rows.Close()
	var out []TenantRow
	for rows.Next() {
		var t TenantRow
		if err := rows.Scan(&t.ID, &t.Name, &t.LifecycleState, &t.IsActive, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("database: scan tenant: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*TenantRow, error) {
	row := r.c.db.QueryRowContext(ctx,
		`SELECT id, name, lifecycle_state, is_active, created_at FROM tenants WHERE id = $1`, id)
	return scanTenant(row)
}

func (r *TenantRepository) SetLifecycleState(ctx context.Context, tx *Tx, id uuid.UUID, state string, isActive bool) error {
	q := `UPDATE tenants SET lifecycle_state = $2, is_active = $3 WHERE id = $1`
	args := []any{id, state, isActive}
	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.Raw().ExecContext(ctx, q, args...)
	} else {
		res, err = r.c.db.ExecContext(ctx, q, args...)
	}
	if err != nil {
		return fmt.Errorf("database: update tenant lifecycle: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTenantNotFound
	}
	return nil
}

func scanTenant(row *sql.Row) (*TenantRow, error) {
	var t TenantRow
	if err := row.Scan(&t.ID, &t.Name, &t.LifecycleState, &t.IsActive, &t.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("database: scan tenant: %w", err)
	}
	return &t, nil
}

// ApiKeyRow mirrors the api_keys table.
type ApiKeyRow struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	KeyHash   string
	Label     string
	CreatedAt time.Time
	RevokedAt *time.Time
}

// ApiKeyRepository persists api keys.
type ApiKeyRepository struct {
	c *Client
}

func NewApiKeyRepository(c *Client) *ApiKeyRepository { return &ApiKeyRepository{c: c} }

func (r *ApiKeyRepository) Insert(ctx context.Context, k *ApiKeyRow) error {
	_, err := r.c.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, tenant_id, key_hash, label, created_at, revoked_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		k.ID, k.TenantID, k.KeyHash, k.Label, k.CreatedAt, k.RevokedAt)
	if err != nil {
		return fmt.Errorf("database: insert api key: %w", err)
	}
	return nil
}

func (r *ApiKeyRepository) GetByHash(ctx context.Context, keyHash string) (*ApiKeyRow, error) {
	row := r.c.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, key_hash, label, created_at, revoked_at FROM api_keys WHERE key_hash = $1`, keyHash)
	var k ApiKeyRow
	if err := row.Scan(&k.ID, &k.TenantID, &k.KeyHash, &k.Label, &k.CreatedAt, &k.RevokedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrApiKeyNotFound
		}
		return nil, fmt.Errorf("database: scan api key: %w", err)
	}
	return &k, nil
}

func (r *ApiKeyRepository) Revoke(ctx context.Context, id uuid.UUID, revokedAt time.Time) error {
	res, err := r.c.db.ExecContext(ctx, `UPDATE api_keys SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, id, revokedAt)
	if err != nil {
		return fmt.Errorf("database: revoke api key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrApiKeyNotFound
	}
	return nil
}
