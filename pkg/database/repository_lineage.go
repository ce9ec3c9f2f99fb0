package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LineageEventRow mirrors the consent_lineage_events table.
type LineageEventRow struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	ConsentID     uuid.UUID
	Action        string
	EventHash     string
	PrevEventHash *string
	CreatedAt     time.Time
}

// LineageRepository persists the per-tenant consent lineage chains.
type LineageRepository struct {
	c *Client
}

func NewLineageRepository(c *Client) *LineageRepository { return &LineageRepository{c: c} }

func (r *LineageRepository) Insert(ctx context.Context, tx *Tx, e *LineageEventRow) error {
	q := `INSERT INTO consent_lineage_events (id, tenant_id, consent_id, action, event_hash, prev_event_hash, created_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7)`
	args := []any{e.ID, e.TenantID, e.ConsentID, e.Action, e.EventHash, e.PrevEventHash, e.CreatedAt}
	var err error
	if tx != nil {
		_, err = tx.Raw().ExecContext(ctx, q, args...)
	} else {
		_, err = r.c.db.ExecContext(ctx, q, args...)
	}
	if err != nil {
		return fmt.Errorf("database: insert lineage event: %w", err)
	}
	return nil
}

// ListByConsent returns every lineage event for a consent, oldest first.
func (r *LineageRepository) ListByConsent(ctx context.Context, tenantID, consentID uuid.UUID) ([]LineageEventRow, error) {
	rows, err := r.c.db.QueryContext(ctx,
		`SELECT id, tenant_id, consent_id, action, event_hash, prev_event_hash, created_at
		 FROM consent_lineage_events WHERE tenant_id = $1 AND consent_id = $2 ORDER BY created_at ASC`,
		tenantID, consentID)
	if err != nil {
		return nil, fmt.Errorf("database: list lineage events: %w", err)
	}
	defer rows.Close()
	return scanLineageRows(rows)
}

// ListByTenant returns every lineage event for a tenant, used to build
// tenant anchor snapshots and forensic exports.
func (r *LineageRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]LineageEventRow, error) {
	rows, err := r.c.db.QueryContext(ctx,
		`SELECT id, tenant_id, consent_id, action, event_hash, prev_event_hash, created_at
		 FROM consent_lineage_events WHERE tenant_id = $1 ORDER BY created_at ASC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("database: list tenant lineage events: %w", err)
	}
	defer rows.Close()
	return scanLineageRows(rows)
}

// LatestByConsent returns the most recent lineage event for a consent, or
// ErrNotFound if the consent has no lineage yet.
func (r *LineageRepository) LatestByConsent(ctx context.Context, tenantID, consentID uuid.UUID) (*LineageEventRow, error) {
	row := r.c.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, consent_id, action, event_hash, prev_event_hash, created_at
		 FROM consent_lineage_events WHERE tenant_id = $1 AND consent_id = $2
		 ORDER BY created_at DESC LIMIT 1`, tenantID, consentID)
	var e LineageEventRow
	if err := row.Scan(&e.ID, &e.TenantID, &e.ConsentID, &e.Action, &e.EventHash, &e.PrevEventHash, &e.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("database: scan latest lineage event: %w", err)
	}
	return &e, nil
}

// LatestPerConsent returns the most recent lineage event for every
// (tenant_id, consent_id) pair across all tenants, used to build anchor
// snapshots over every consent's lineage root in one pass.
func (r *LineageRepository) LatestPerConsent(ctx context.Context) ([]LineageEventRow, error) {
	rows, err := r.c.db.QueryContext(ctx,
		`SELECT DISTINCT ON (tenant_id, consent_id) id, tenant_id, consent_id, action, event_hash, prev_event_hash, created_at
		 FROM consent_lineage_events ORDER BY tenant_id, consent_id, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("database: list latest lineage per consent: %w", err)
	}
	defer rows.Close()
	return scanLineageRows(rows)
}

func scanLineageRows(rows *sql.Rows) ([]LineageEventRow, error) {
	var out []LineageEventRow
	for rows.Next() {
		var e LineageEventRow
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ConsentID, &e.Action, &e.EventHash, &e.PrevEventHash, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
