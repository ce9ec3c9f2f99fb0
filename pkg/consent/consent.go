package consent

import (
	"time"

	"github.com/google/uuid"
)

// Status is a consent's current disposition.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusRevoked Status = "REVOKED"
)

// Consent records a subject's permission for a purpose under a tenant.
// Unique by (tenant_id, subject_id, purpose).
type Consent struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	SubjectID string
	Purpose   string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// Toggle returns the inverse status, used when replaying an "updated"
// lineage action.
func (s Status) Toggle() Status {
	if s == StatusActive {
		return StatusRevoked
	}
	return StatusActive
}

// AuditEvent is an append-only record of a consent or tenant-level action.
// ConsentID is uuid.Nil for tenant-level events.
type AuditEvent struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	ConsentID uuid.UUID
	Action    string
	Actor     string
	At        time.Time
}
