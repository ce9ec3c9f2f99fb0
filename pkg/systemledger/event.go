// Package systemledger implements the single, process-wide append-only
// system event chain: every state change in the service records one event
// here, with the payload committed to by digest rather than persisted.
package systemledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nehagowda06/consent-ledger/pkg/canonical"
)

// Event is one link in the global system event chain.
type Event struct {
	ID            uuid.UUID
	TenantID      *uuid.UUID // nil for cross-tenant/system rows
	EventType     string
	ResourceType  *string
	ResourceID    *string
	PayloadHash   string
	PrevEventHash *string
	EventHash     string
	CreatedAt     time.Time
}

// Append computes the next event given the resolved chain tip (see
// ResolveTip) and an arbitrary payload. The payload is hashed into
// PayloadHash and never persisted; EventHash commits to {payload_hash} so
// verification can replay the chain without the original payload.
func Append(tip *Event, tenantID *uuid.UUID, eventType string, resourceType, resourceID *string, payload interface{}, now time.Time) (*Event, error) {
	payloadHash, err := canonical.HashJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("systemledger: hash payload: %w", err)
	}

	var prevHash *string
	if tip != nil {
		h := tip.EventHash
		prevHash = &h
	}

	hash, err := canonical.SystemEventHash(canonical.SystemEventPayload{
		EventType:    eventType,
		TenantID:     tenantUUIDString(tenantID),
		ResourceType: derefString(resourceType),
		ResourceID:   derefString(resourceID),
		Payload:      map[string]interface{}{"payload_hash": payloadHash},
	}, prevHash)
	if err != nil {
		return nil, fmt.Errorf("systemledger: compute event hash: %w", err)
	}

	return &Event{
		ID:            uuid.New(),
		TenantID:      tenantID,
		EventType:     eventType,
		ResourceType:  resourceType,
		ResourceID:    resourceID,
		PayloadHash:   payloadHash,
		PrevEventHash: prevHash,
		EventHash:     hash,
		CreatedAt:     now,
	}, nil
}

// ResolveTip implements the tip-lookup discipline: prefer the newest event
// among pending (uncommitted, same-transaction) rows; only when none exist
// does it fall back to scanning committed rows for the one event with no
// successor. This keeps the chain valid even when several system events
// accumulate within a single transaction boundary.
func ResolveTip(pending, committed []Event) *Event {
	if len(pending) > 0 {
		return latestByCreatedAt(pending)
	}
	if len(committed) == 0 {
		return nil
	}

	referenced := make(map[string]bool, len(committed))
	for _, e := range committed {
		if e.PrevEventHash != nil {
			referenced[*e.PrevEventHash] = true
		}
	}

	var tip *Event
	for i := range committed {
		if referenced[committed[i].EventHash] {
			continue
		}
		if tip == nil || committed[i].CreatedAt.After(tip.CreatedAt) {
			tip = &committed[i]
		}
	}
	return tip
}

func latestByCreatedAt(events []Event) *Event {
	best := &events[0]
	for i := 1; i < len(events); i++ {
		if events[i].CreatedAt.After(best.CreatedAt) {
			best = &events[i]
		}
	}
	return best
}

func tenantUUIDString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
