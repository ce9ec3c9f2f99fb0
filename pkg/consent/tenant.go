// Package consent defines the tenant, API key, consent, and audit entities
// and the write-admission rule that gates every mutation on tenant lifecycle.
package consent

import (
	"time"

	"github.com/google/uuid"
)

// LifecycleState is the tenant's admission state.
type LifecycleState string

const (
	LifecycleActive     LifecycleState = "active"
	LifecycleSuspended  LifecycleState = "suspended"
	LifecycleDisabled   LifecycleState = "disabled"
)

// Tenant owns all tenant-scoped rows.
type Tenant struct {
	ID             uuid.UUID
	Name           string
	LifecycleState LifecycleState
	IsActive       bool
	CreatedAt      time.Time
}

// CanWrite reports whether the tenant may originate new rows in any core
// table: is_active AND lifecycle_state == active. Historical reads and
// proofs are unaffected by this gate.
func (t *Tenant) CanWrite() bool {
	return t.IsActive && t.LifecycleState == LifecycleActive
}

// ApiKey authenticates requests on behalf of a tenant. key_hash is the
// HMAC-SHA256 of the raw key under the server's secret; the raw key itself
// is never persisted.
type ApiKey struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	KeyHash   string
	Label     string
	CreatedAt time.Time
	RevokedAt *time.Time
}

// IsRevoked reports whether the key has been revoked. Revocation is irreversible.
func (k *ApiKey) IsRevoked() bool {
	return k.RevokedAt != nil
}
