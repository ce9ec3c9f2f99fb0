package ratelimit

import (
	"testing"
	"time"
)

func TestWindowIsStableWithinSixtySeconds(t *testing.T) {
	// base sits exactly on a window boundary (a multiple of 60 seconds).
	base := time.Unix(1_699_999_980, 0)
	if Window(base) != Window(base.Add(59*time.Second)) {
		t.Fatal("expected window to be stable across 59 seconds")
	}
	if Window(base) == Window(base.Add(61*time.Second)) {
		t.Fatal("expected window to roll over after 60 seconds")
	}
}

func TestEvaluateAllowsUpToLimit(t *testing.T) {
	if !Evaluate(5, 5).Allowed {
		t.Fatal("expected count equal to limit to be allowed")
	}
	if Evaluate(6, 5).Allowed {
		t.Fatal("expected count exceeding limit to be rejected")
	}
}

func TestFailOpenOnlyFalseInProd(t *testing.T) {
	if FailOpen("prod") {
		t.Fatal("expected prod to fail closed")
	}
	for _, env := range []string{"dev", "test", "staging"} {
		if !FailOpen(env) {
			t.Fatalf("expected %s to fail open", env)
		}
	}
}

func TestIdentityPrefixesFingerprint(t *testing.T) {
	if got := Identity("abc123"); got != "apikey:abc123" {
		t.Fatalf("Identity = %s", got)
	}
}
