package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SystemEventRow mirrors the system_event_ledger table.
type SystemEventRow struct {
	ID            uuid.UUID
	TenantID      *uuid.UUID
	EventType     string
	ResourceType  *string
	ResourceID    *string
	PayloadHash   string
	PrevEventHash *string
	EventHash     string
	CreatedAt     time.Time
}

// SystemEventRepository persists the single global system event ledger
// shared by every tenant.
type SystemEventRepository struct {
	c *Client
}

func NewSystemEventRepository(c *Client) *SystemEventRepository { return &SystemEventRepository{c: c} }

func (r *SystemEventRepository) Insert(ctx context.Context, tx *Tx, e *SystemEventRow) error {
	q := `INSERT INTO system_event_ledger (id, tenant_id, event_type, resource_type, resource_id, payload_hash, prev_event_hash, event_hash, created_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	args := []any{e.ID, e.TenantID, e.EventType, e.ResourceType, e.ResourceID, e.PayloadHash, e.PrevEventHash, e.EventHash, e.CreatedAt}
	var err error
	if tx != nil {
		_, err = tx.Raw().ExecContext(ctx, q, args...)
	} else {
		_, err = r.c.db.ExecContext(ctx, q, args...)
	}
	if err != nil {
		return fmt.Errorf("database: insert system event: %w", err)
	}
	return nil
}

// LatestCommitted returns the most recently created committed event, or
// ErrNotFound if the ledger is empty. Callers combine this with any
// events pending in the current transaction to resolve the true tip, per
// the tip-lookup discipline in pkg/systemledger.
func (r *SystemEventRepository) LatestCommitted(ctx context.Context) (*SystemEventRow, error) {
	row := r.c.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, event_type, resource_type, resource_id, payload_hash, prev_event_hash, event_hash, created_at
		 FROM system_event_ledger ORDER BY created_at DESC LIMIT 1`)
	return scanSystemEvent(row)
}

// ListAll returns the full committed ledger, oldest first, for forensic
// export and verification.
func (r *SystemEventRepository) ListAll(ctx context.Context) ([]SystemEventRow, error) {
	rows, err := r.c.db.QueryContext(ctx,
		`SELECT id, tenant_id, event_type, resource_type, resource_id, payload_hash, prev_event_hash, event_hash, created_at
		 FROM system_event_ledger ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("database: list system events: %w", err)
	}
	defer rows.Close()

	var out []SystemEventRow
	for rows.Next() {
		var e SystemEventRow
		if err := rows.Scan(&e.ID, &e.TenantID, &e.EventType, &e.ResourceType, &e.ResourceID, &e.PayloadHash, &e.PrevEventHash, &e.EventHash, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanSystemEvent(row *sql.Row) (*SystemEventRow, error) {
	var e SystemEventRow
	if err := row.Scan(&e.ID, &e.TenantID, &e.EventType, &e.ResourceType, &e.ResourceID, &e.PayloadHash, &e.PrevEventHash, &e.EventHash, &e.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("database: scan system event: %w", err)
	}
	return &e, nil
}
