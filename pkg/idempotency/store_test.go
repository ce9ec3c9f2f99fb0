package idempotency

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCheckFreshReplayConflict(t *testing.T) {
	h1, err := BuildRequestHash("post", "/consents", map[string]interface{}{"a": 1})
	if err != nil {
		t.Fatalf("BuildRequestHash: %v", err)
	}
	h2, err := BuildRequestHash("POST", "/consents", map[string]interface{}{"a": 2})
	if err != nil {
		t.Fatalf("BuildRequestHash: %v", err)
	}

	if Check(nil, h1) != OutcomeFresh {
		t.Fatal("expected fresh outcome with no existing record")
	}

	record := NewRecord(uuid.New(), "K", h1, `{"ok":true}`, 201, time.Now())
	if Check(&record, h1) != OutcomeReplay {
		t.Fatal("expected replay outcome for matching request hash")
	}
	if Check(&record, h2) != OutcomeConflict {
		t.Fatal("expected conflict outcome for differing request hash")
	}
}

func TestBuildRequestHashIsMethodCaseInsensitive(t *testing.T) {
	h1, _ := BuildRequestHash("post", "/x", nil)
	h2, _ := BuildRequestHash("POST", "/x", nil)
	if h1 != h2 {
		t.Fatal("expected method casing not to affect the request hash")
	}
}
