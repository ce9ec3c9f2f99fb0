package metrics

import "testing"

func TestIncrementReadReset(t *testing.T) {
	r := NewRegistry()
	r.Init(TenantWriteDenied)
	if r.Read(TenantWriteDenied) != 0 {
		t.Fatal("expected freshly initialized counter to read zero")
	}

	r.Increment(TenantWriteDenied)
	r.Increment(TenantWriteDenied)
	if r.Read(TenantWriteDenied) != 2 {
		t.Fatalf("expected count 2, got %d", r.Read(TenantWriteDenied))
	}

	r.Reset()
	if r.Read(TenantWriteDenied) != 0 {
		t.Fatal("expected reset to clear the counter")
	}
}

func TestGathererExposesMetrics(t *testing.T) {
	r := NewRegistry()
	r.Increment(RateLimitExceeded)
	families, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected at least one metric family")
	}
}
