package systemledger

import "github.com/nehagowda06/consent-ledger/pkg/canonical"

// ForensicExport re-links rows by their prev-hash pointer. If the chain
// cannot be linearized this way it falls back to the rows' insertion order,
// which then fails verification — a tamper signal rather than a silent
// reorder.
func ForensicExport(events []Event) []Event {
	ordered, ok := linearize(events)
	if !ok {
		return events
	}
	return ordered
}

func linearize(events []Event) (ordered []Event, ok bool) {
	byPrev := make(map[string]Event, len(events))
	for _, e := range events {
		key := ""
		if e.PrevEventHash != nil {
			key = *e.PrevEventHash
		}
		if _, exists := byPrev[key]; exists {
			return events, false
		}
		byPrev[key] = e
	}

	result := make([]Event, 0, len(events))
	cur, found := byPrev[""]
	for found {
		result = append(result, cur)
		cur, found = byPrev[cur.EventHash]
	}
	if len(result) != len(events) {
		return events, false
	}
	return result, true
}

// VerifyResult reports whether a system ledger segment is internally
// consistent, and the index of the first broken link when it is not.
type VerifyResult struct {
	Verified     bool
	FailureIndex int // -1 when Verified
}

// VerifySystemLedger recomputes every event_hash from {payload_hash} and
// confirms prev_event_hash linkage, returning the index of the first
// broken link on failure.
func VerifySystemLedger(events []Event) VerifyResult {
	var prev *string
	for i, e := range events {
		if i == 0 {
			if e.PrevEventHash != nil {
				return VerifyResult{false, i}
			}
		} else if e.PrevEventHash == nil || !canonical.ConstantTimeHexEqual(*e.PrevEventHash, events[i-1].EventHash) {
			return VerifyResult{false, i}
		}

		recomputed, err := canonical.SystemEventHash(canonical.SystemEventPayload{
			EventType:    e.EventType,
			TenantID:     tenantUUIDString(e.TenantID),
			ResourceType: derefString(e.ResourceType),
			ResourceID:   derefString(e.ResourceID),
			Payload:      map[string]interface{}{"payload_hash": e.PayloadHash},
		}, prev)
		if err != nil || !canonical.ConstantTimeHexEqual(recomputed, e.EventHash) {
			return VerifyResult{false, i}
		}

		h := e.EventHash
		prev = &h
	}
	return VerifyResult{true, -1}
}
