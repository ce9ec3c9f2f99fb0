// Package idempotency gives exactly-once semantics to write requests keyed
// by (tenant_id, key), detecting replays and fingerprint conflicts.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nehagowda06/consent-ledger/pkg/canonical"
)

// Record is a persisted idempotency key row.
type Record struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Key          string
	RequestHash  string
	ResponseJSON string
	StatusCode   int
	CreatedAt    time.Time
}

// Outcome is the result of checking an incoming request against any
// existing record for the same (tenant_id, key).
type Outcome int

const (
	// OutcomeFresh: no prior record exists; the caller should execute the
	// mutation and persist the result.
	OutcomeFresh Outcome = iota
	// OutcomeReplay: a prior record exists with a matching request_hash;
	// the caller should return the stored response unchanged.
	OutcomeReplay
	// OutcomeConflict: a prior record exists with a different
	// request_hash; the caller must reject with IDEMPOTENCY_CONFLICT.
	OutcomeConflict
)

// BuildRequestHash computes sha256(UPPER(method)|path|canonical_json(body)).
func BuildRequestHash(method, path string, body interface{}) (string, error) {
	bodyJSON, err := canonical.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("idempotency: encode body: %w", err)
	}
	material := strings.Join([]string{strings.ToUpper(method), path, string(bodyJSON)}, "|")
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:]), nil
}

// Check compares an incoming request_hash against any existing record for
// the same (tenant_id, key), using a constant-time comparison on the
// stored hash.
func Check(existing *Record, requestHash string) Outcome {
	if existing == nil {
		return OutcomeFresh
	}
	if canonical.ConstantTimeHexEqual(existing.RequestHash, requestHash) {
		return OutcomeReplay
	}
	return OutcomeConflict
}

// NewRecord builds the record to persist alongside a freshly executed
// mutation, inside the same transaction as that mutation.
func NewRecord(tenantID uuid.UUID, key, requestHash, responseJSON string, statusCode int, now time.Time) Record {
	return Record{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Key:          key,
		RequestHash:  requestHash,
		ResponseJSON: responseJSON,
		StatusCode:   statusCode,
		CreatedAt:    now,
	}
}
