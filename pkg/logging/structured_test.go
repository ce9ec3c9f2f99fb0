package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestStructuredDropsUnlistedFieldsAndRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	Structured(logger, "consent.created", map[string]string{
		"tenant_id":  "t1",
		"password":   "hunter2",
		"api_key":    "sk-123",
		"not_listed": "should not appear",
	})

	out := buf.String()
	if !strings.Contains(out, "tenant_id=t1") {
		t.Fatalf("expected allow-listed field to appear, got: %s", out)
	}
	if strings.Contains(out, "not_listed") {
		t.Fatalf("expected non-allow-listed field to be dropped, got: %s", out)
	}
	if strings.Contains(out, "password") || strings.Contains(out, "api_key") {
		t.Fatalf("expected secret-bearing fields to be dropped, got: %s", out)
	}
}

func TestStructuredRedactsValuesContainingSecretMarkers(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	Structured(logger, "auth.check", map[string]string{"operation": "bearer token present"})

	if strings.Contains(buf.String(), "bearer token present") {
		t.Fatal("expected value containing 'bearer' to be redacted")
	}
}
