// Package lineage implements the per-consent append-only hash chain: one
// event per consent mutation, linked by SHA-256 hashes over
// {tenant_id, consent_id, action, payload}.
package lineage

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nehagowda06/consent-ledger/pkg/canonical"
	"github.com/nehagowda06/consent-ledger/pkg/consent"
)

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionRevoked = "revoked"
	ActionNoop    = "noop"
)

// Event is one link in a consent's lineage chain.
type Event struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	ConsentID     uuid.UUID
	Action        string
	EventHash     string
	PrevEventHash *string
	CreatedAt     time.Time
}

// NextCreatedAt enforces the monotonic-microsecond rule: created_at is now,
// unless that would not advance past the tip, in which case it is bumped by
// one microsecond beyond the tip.
func NextCreatedAt(tipCreatedAt *time.Time, now time.Time) time.Time {
	if tipCreatedAt == nil {
		return now
	}
	floor := tipCreatedAt.Add(time.Microsecond)
	if now.After(floor) {
		return now
	}
	return floor
}

// Append computes the next event in the chain for (tenantID, consentID)
// given the current tip (nil if this is the first event). subjectID/purpose
// are the consent's invariant fields; status is the state asserted as of
// this event.
func Append(tip *Event, tenantID, consentID uuid.UUID, action, subjectID, purpose string, status consent.Status, now time.Time) (*Event, error) {
	var prevHash *string
	var tipCreatedAt *time.Time
	if tip != nil {
		h := tip.EventHash
		prevHash = &h
		tipCreatedAt = &tip.CreatedAt
	}

	createdAt := NextCreatedAt(tipCreatedAt, now)

	hash, err := canonical.EventHash(canonical.EventPayload{
		TenantID:  tenantID.String(),
		ConsentID: consentID.String(),
		Action:    action,
		Payload: map[string]interface{}{
			"subject_id": subjectID,
			"purpose":    purpose,
			"status":     string(status),
		},
	}, prevHash)
	if err != nil {
		return nil, fmt.Errorf("lineage: compute event hash: %w", err)
	}

	return &Event{
		ID:            uuid.New(),
		TenantID:      tenantID,
		ConsentID:     consentID,
		Action:        action,
		EventHash:     hash,
		PrevEventHash: prevHash,
		CreatedAt:     createdAt,
	}, nil
}

// Verify replays events (ordered oldest-first) against the consent's
// current state. It derives the status asserted at each event by working
// backward from currentStatus using the inverse of each action, recomputes
// every event_hash from that derived status, and confirms both the
// recomputed hash and the prev_event_hash linkage match the stored chain.
func Verify(events []Event, subjectID, purpose string, currentStatus consent.Status) (bool, error) {
	n := len(events)
	if n == 0 {
		return false, fmt.Errorf("lineage: empty chain")
	}

	statuses := make([]consent.Status, n)
	statuses[n-1] = currentStatus
	for i := n - 1; i > 0; i-- {
		statuses[i-1] = inverseStatus(events[i].Action, statuses[i])
	}

	var prevHash *string
	for i := 0; i < n; i++ {
		if i > 0 {
			if events[i].PrevEventHash == nil || !canonical.ConstantTimeHexEqual(*events[i].PrevEventHash, events[i-1].EventHash) {
				return false, nil
			}
		}

		hash, err := canonical.EventHash(canonical.EventPayload{
			TenantID:  events[i].TenantID.String(),
			ConsentID: events[i].ConsentID.String(),
			Action:    events[i].Action,
			Payload: map[string]interface{}{
				"subject_id": subjectID,
				"purpose":    purpose,
				"status":     string(statuses[i]),
			},
		}, prevHash)
		if err != nil {
			return false, fmt.Errorf("lineage: recompute event hash: %w", err)
		}
		if !canonical.ConstantTimeHexEqual(hash, events[i].EventHash) {
			return false, nil
		}

		h := events[i].EventHash
		prevHash = &h
	}

	return true, nil
}

// inverseStatus returns the status asserted immediately before an event
// given the action taken at that event and the status it left the consent
// in. updated toggles, revoked forces a prior ACTIVE state, created/noop
// are identity.
func inverseStatus(action string, after consent.Status) consent.Status {
	switch action {
	case ActionUpdated:
		return after.Toggle()
	case ActionRevoked:
		return consent.StatusActive
	default:
		return after
	}
}
