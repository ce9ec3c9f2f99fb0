package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nehagowda06/consent-ledger/pkg/consent"
	"github.com/nehagowda06/consent-ledger/pkg/database"
	"github.com/nehagowda06/consent-ledger/pkg/lineage"
	"github.com/nehagowda06/consent-ledger/pkg/systemledger"
)

// tenantCanWrite applies the consent package's write-admission rule to a
// persisted tenant row without pulling repository persistence into pkg/consent.
func tenantCanWrite(row *database.TenantRow) bool {
	t := consent.Tenant{ID: row.ID, Name: row.Name, LifecycleState: consent.LifecycleState(row.LifecycleState), IsActive: row.IsActive, CreatedAt: row.CreatedAt}
	return t.CanWrite()
}

func toLineageEvent(r database.LineageEventRow) lineage.Event {
	return lineage.Event{
		ID:            r.ID,
		TenantID:      r.TenantID,
		ConsentID:     r.ConsentID,
		Action:        r.Action,
		EventHash:     r.EventHash,
		PrevEventHash: r.PrevEventHash,
		CreatedAt:     r.CreatedAt,
	}
}

func toLineageEvents(rows []database.LineageEventRow) []lineage.Event {
	out := make([]lineage.Event, len(rows))
	for i, r := range rows {
		out[i] = toLineageEvent(r)
	}
	return out
}

func fromLineageEvent(e lineage.Event) database.LineageEventRow {
	return database.LineageEventRow{
		ID:            e.ID,
		TenantID:      e.TenantID,
		ConsentID:     e.ConsentID,
		Action:        e.Action,
		EventHash:     e.EventHash,
		PrevEventHash: e.PrevEventHash,
		CreatedAt:     e.CreatedAt,
	}
}

func toSystemEvent(r database.SystemEventRow) systemledger.Event {
	return systemledger.Event{
		ID:            r.ID,
		TenantID:      r.TenantID,
		EventType:     r.EventType,
		ResourceType:  r.ResourceType,
		ResourceID:    r.ResourceID,
		PayloadHash:   r.PayloadHash,
		PrevEventHash: r.PrevEventHash,
		EventHash:     r.EventHash,
		CreatedAt:     r.CreatedAt,
	}
}

func toSystemEvents(rows []database.SystemEventRow) []systemledger.Event {
	out := make([]systemledger.Event, len(rows))
	for i, r := range rows {
		out[i] = toSystemEvent(r)
	}
	return out
}

func fromSystemEvent(e systemledger.Event) database.SystemEventRow {
	return database.SystemEventRow{
		ID:            e.ID,
		TenantID:      e.TenantID,
		EventType:     e.EventType,
		ResourceType:  e.ResourceType,
		ResourceID:    e.ResourceID,
		PayloadHash:   e.PayloadHash,
		PrevEventHash: e.PrevEventHash,
		EventHash:     e.EventHash,
		CreatedAt:     e.CreatedAt,
	}
}

// appendSystemEvent resolves the global ledger tip by scanning every
// committed row (pkg/systemledger.ResolveTip's committed-leaf fallback;
// this process never holds multiple system events pending at once outside
// a single call, so the pending-list argument is always empty) and appends
// one new event on a fresh context independent of any caller transaction,
// per §7's propagation policy.
func (s *Server) appendSystemEvent(tenantID *uuid.UUID, eventType string, resourceType, resourceID *string, payload interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := s.System.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("server: list system events: %w", err)
	}
	tip := systemledger.ResolveTip(nil, toSystemEvents(rows))

	ev, err := systemledger.Append(tip, tenantID, eventType, resourceType, resourceID, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("server: append system event: %w", err)
	}
	row := fromSystemEvent(*ev)
	if err := s.System.Insert(ctx, nil, &row); err != nil {
		return fmt.Errorf("server: persist system event: %w", err)
	}
	return nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
