package systemledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAppendChainAndVerify(t *testing.T) {
	tenantID := uuid.New()
	now := time.Now()

	e1, err := Append(nil, &tenantID, "tenant.created", nil, nil, map[string]interface{}{"name": "acme"}, now)
	if err != nil {
		t.Fatalf("append 1: %v", err)
	}
	e2, err := Append(e1, &tenantID, "apikey.created", nil, nil, map[string]interface{}{"label": "default"}, now.Add(time.Second))
	if err != nil {
		t.Fatalf("append 2: %v", err)
	}
	e3, err := Append(e2, &tenantID, "tenant.disabled", nil, nil, map[string]interface{}{}, now.Add(2*time.Second))
	if err != nil {
		t.Fatalf("append 3: %v", err)
	}

	chain := []Event{*e1, *e2, *e3}
	result := VerifySystemLedger(chain)
	if !result.Verified {
		t.Fatalf("expected valid system chain to verify, failed at index %d", result.FailureIndex)
	}
}

func TestVerifySystemLedgerReportsFirstBrokenLink(t *testing.T) {
	tenantID := uuid.New()
	now := time.Now()
	e1, _ := Append(nil, &tenantID, "a", nil, nil, map[string]interface{}{}, now)
	e2, _ := Append(e1, &tenantID, "b", nil, nil, map[string]interface{}{}, now.Add(time.Second))
	e3, _ := Append(e2, &tenantID, "c", nil, nil, map[string]interface{}{}, now.Add(2*time.Second))

	e2.EventHash = "0" + e2.EventHash[1:]
	chain := []Event{*e1, *e2, *e3}

	result := VerifySystemLedger(chain)
	if result.Verified {
		t.Fatal("expected tampered chain to fail verification")
	}
	if result.FailureIndex != 1 {
		t.Fatalf("expected failure at index 1, got %d", result.FailureIndex)
	}
}

func TestResolveTipPrefersPendingOverCommitted(t *testing.T) {
	tenantID := uuid.New()
	now := time.Now()
	committed, _ := Append(nil, &tenantID, "a", nil, nil, map[string]interface{}{}, now)
	pending, _ := Append(committed, &tenantID, "b", nil, nil, map[string]interface{}{}, now.Add(time.Second))

	tip := ResolveTip([]Event{*pending}, []Event{*committed})
	if tip == nil || tip.ID != pending.ID {
		t.Fatal("expected pending event to be chosen as tip")
	}
}

func TestResolveTipFallsBackToCommittedLeaf(t *testing.T) {
	tenantID := uuid.New()
	now := time.Now()
	e1, _ := Append(nil, &tenantID, "a", nil, nil, map[string]interface{}{}, now)
	e2, _ := Append(e1, &tenantID, "b", nil, nil, map[string]interface{}{}, now.Add(time.Second))

	tip := ResolveTip(nil, []Event{*e1, *e2})
	if tip == nil || tip.ID != e2.ID {
		t.Fatal("expected the committed event without a successor to be chosen as tip")
	}
}
