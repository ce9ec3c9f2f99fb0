package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IdentityKeyRow mirrors the identity_keys table.
type IdentityKeyRow struct {
	ID          uuid.UUID
	Scope       string
	OwnerID     *uuid.UUID
	PublicKey   string
	Fingerprint string
	CreatedAt   time.Time
	RevokedAt   *time.Time
}

// IdentityKeyRepository persists signing keys.
type IdentityKeyRepository struct {
	c *Client
}

func NewIdentityKeyRepository(c *Client) *IdentityKeyRepository { return &IdentityKeyRepository{c: c} }

func (r *IdentityKeyRepository) Insert(ctx context.Context, k *IdentityKeyRow) error {
	_, err := r.c.db.ExecContext(ctx,
		`INSERT INTO identity_keys (id, scope, owner_id, public_key, fingerprint, created_at, revoked_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		k.ID, k.Scope, k.OwnerID, k.PublicKey, k.Fingerprint, k.CreatedAt, k.RevokedAt)
	if err != nil {
		return fmt.Errorf("database: insert identity key: %w", err)
	}
	return nil
}

func (r *IdentityKeyRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*IdentityKeyRow, error) {
	row := r.c.db.QueryRowContext(ctx,
		`SELECT id, scope, owner_id, public_key, fingerprint, created_at, revoked_at
		 FROM identity_keys WHERE fingerprint = $1`, fingerprint)
	var k IdentityKeyRow
	if err := row.Scan(&k.ID, &k.Scope, &k.OwnerID, &k.PublicKey, &k.Fingerprint, &k.CreatedAt, &k.RevokedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrIdentityKeyNotFound
		}
		return nil, fmt.Errorf("database: scan identity key: %w", err)
	}
	return &k, nil
}

func (r *IdentityKeyRepository) Revoke(ctx context.Context, id uuid.UUID, revokedAt time.Time) error {
	res, err := r.c.db.ExecContext(ctx, `UPDATE identity_keys SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, id, revokedAt)
	if err != nil {
		return fmt.Errorf("database: revoke identity key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrIdentityKeyNotFound
	}
	return nil
}

// DelegationRow mirrors the identity_delegations table.
type DelegationRow struct {
	ID             uuid.UUID
	ParentKeyID    uuid.UUID
	ChildKeyID     uuid.UUID
	DelegationType string
	Signature      string
	CreatedAt      time.Time
}

// DelegationRepository persists parent-to-child key delegations.
type DelegationRepository struct {
	c *Client
}

func NewDelegationRepository(c *Client) *DelegationRepository { return &DelegationRepository{c: c} }

func (r *DelegationRepository) Insert(ctx context.Context, d *DelegationRow) error {
	_, err := r.c.db.ExecContext(ctx,
		`INSERT INTO identity_delegations (id, parent_key_id, child_key_id, delegation_type, signature, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.ParentKeyID, d.ChildKeyID, d.DelegationType, d.Signature, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("database: insert delegation: %w", err)
	}
	return nil
}

// ListAll returns every delegation, used to build the reachability graph
// for chain verification.
func (r *DelegationRepository) ListAll(ctx context.Context) ([]DelegationRow, error) {
	rows, err := r.c.db.QueryContext(ctx,
		`SELECT id, parent_key_id, child_key_id, delegation_type, signature, created_at FROM identity_delegations`)
	if err != nil {
		return nil, fmt.Errorf("database: list delegations: %w", err)
	}
	defer rows.Close()

	var out []DelegationRow
	for rows.Next() {
		var d DelegationRow
		if err := rows.Scan(&d.ID, &d.ParentKeyID, &d.ChildKeyID, &d.DelegationType, &d.Signature, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SignedAssertionRow mirrors the signed_assertions table, used to persist
// exported lineage/consent proof documents for later retrieval.
type SignedAssertionRow struct {
	ID            uuid.UUID
	IdentityKeyID uuid.UUID
	SubjectType   string
	SubjectID     *uuid.UUID
	AssertionType string
	PayloadJSON   []byte
	Signature     string
	CreatedAt     time.Time
}

// AssertionRepository persists signed assertions (lineage exports and
// consent proofs) for audit retrieval.
type AssertionRepository struct {
	c *Client
}

func NewAssertionRepository(c *Client) *AssertionRepository { return &AssertionRepository{c: c} }

func (r *AssertionRepository) Insert(ctx context.Context, a *SignedAssertionRow) error {
	_, err := r.c.db.ExecContext(ctx,
		`INSERT INTO signed_assertions (id, identity_key_id, subject_type, subject_id, assertion_type, payload, signature, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.IdentityKeyID, a.SubjectType, a.SubjectID, a.AssertionType, a.PayloadJSON, a.Signature, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("database: insert signed assertion: %w", err)
	}
	return nil
}

func (r *AssertionRepository) GetByID(ctx context.Context, id uuid.UUID) (*SignedAssertionRow, error) {
	row := r.c.db.QueryRowContext(ctx,
		`SELECT id, identity_key_id, subject_type, subject_id, assertion_type, payload, signature, created_at
		 FROM signed_assertions WHERE id = $1`, id)
	var a SignedAssertionRow
	if err := row.Scan(&a.ID, &a.IdentityKeyID, &a.SubjectType, &a.SubjectID, &a.AssertionType, &a.PayloadJSON, &a.Signature, &a.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("database: scan signed assertion: %w", err)
	}
	return &a, nil
}
