package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConsentRow mirrors the consents table.
type ConsentRow struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	SubjectID string
	Purpose   string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// ConsentRepository persists consent records.
type ConsentRepository struct {
	c *Client
}

func NewConsentRepository(c *Client) *ConsentRepository { return &ConsentRepository{c: c} }

func (r *ConsentRepository) Insert(ctx context.Context, tx *Tx, c *ConsentRow) error {
	q := `INSERT INTO consents (id, tenant_id, subject_id, purpose, status, created_at, updated_at, revoked_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	args := []any{c.ID, c.TenantID, c.SubjectID, c.Purpose, c.Status, c.CreatedAt, c.UpdatedAt, c.RevokedAt}
	var err error
	if tx != nil {
		_, err = tx.Raw().ExecContext(ctx, q, args...)
	} else {
		_, err = r.c.db.ExecContext(ctx, q, args...)
	}
	if err != nil {
		return fmt.Errorf("database: insert consent: %w", err)
	}
	return nil
}

func (r *ConsentRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*ConsentRow, error) {
	row := r.c.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, subject_id, purpose, status, created_at, updated_at, revoked_at
		 FROM consents WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return scanConsent(row)
}

func (r *ConsentRepository) GetBySubjectPurpose(ctx context.Context, tenantID uuid.UUID, subjectID, purpose string) (*ConsentRow, error) {
	row := r.c.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, subject_id, purpose, status, created_at, updated_at, revoked_at
		 FROM consents WHERE tenant_id = $1 AND subject_id = $2 AND purpose = $3`, tenantID, subjectID, purpose)
	return scanConsent(row)
}

func (r *ConsentRepository) UpdateStatus(ctx context.Context, tx *Tx, id uuid.UUID, status string, updatedAt time.Time, revokedAt *time.Time) error {
	q := `UPDATE consents SET status = $2, updated_at = $3, revoked_at = $4 WHERE id = $1`
	args := []any{id, status, updatedAt, revokedAt}
	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.Raw().ExecContext(ctx, q, args...)
	} else {
		res, err = r.c.db.ExecContext(ctx, q, args...)
	}
	if err != nil {
		return fmt.Errorf("database: update consent status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConsentNotFound
	}
	return nil
}

func scanConsent(row *sql.Row) (*ConsentRow, error) {
	var c ConsentRow
	if err := row.Scan(&c.ID, &c.TenantID, &c.SubjectID, &c.Purpose, &c.Status, &c.CreatedAt, &c.UpdatedAt, &c.RevokedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrConsentNotFound
		}
		return nil, fmt.Errorf("database: scan consent: %w", err)
	}
	return &c, nil
}

// AuditEventRow mirrors the audit_events table.
type AuditEventRow struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	ConsentID uuid.UUID
	Action    string
	Actor     string
	At        time.Time
}

// AuditRepository persists plain audit trail rows, independent of the
// cryptographic lineage chain.
type AuditRepository struct {
	c *Client
}

func NewAuditRepository(c *Client) *AuditRepository { return &AuditRepository{c: c} }

func (r *AuditRepository) Insert(ctx context.Context, tx *Tx, a *AuditEventRow) error {
	q := `INSERT INTO audit_events (id, tenant_id, consent_id, action, actor, at) VALUES ($1, $2, $3, $4, $5, $6)`
	args := []any{a.ID, a.TenantID, a.ConsentID, a.Action, a.Actor, a.At}
	var err error
	if tx != nil {
		_, err = tx.Raw().ExecContext(ctx, q, args...)
	} else {
		_, err = r.c.db.ExecContext(ctx, q, args...)
	}
	if err != nil {
		return fmt.Errorf("database: insert audit event: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListByConsent(ctx context.Context, tenantID, consentID uuid.UUID) ([]AuditEventRow, error) {
	rows, err := r.c.db.QueryContext(ctx,
		`SELECT id, tenant_id, consent_id, action, actor, at FROM audit_events
		 WHERE tenant_id = $1 AND consent_id = $2 ORDER BY at ASC`, tenantID, consentID)
	if err != nil {
		return nil, fmt.Errorf("database: list audit events: %w", err)
	}
	defer rows.Close()

	var out []AuditEventRow
	for rows.Next() {
		var a AuditEventRow
		if err := rows.Scan(&a.ID, &a.TenantID, &a.ConsentID, &a.Action, &a.Actor, &a.At); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
