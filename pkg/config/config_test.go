package config

import "testing"

func TestValidateRequiresProdSettings(t *testing.T) {
	c := &Config{Env: "prod", DebugLogging: true, AutoSchemaCreate: true}
	if err := c.Validate(); err == nil {
		t.Fatal("expected prod validation to fail when required settings are missing")
	}
}

func TestValidatePassesForDevWithoutExtraSettings(t *testing.T) {
	c := &Config{Env: "dev"}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected dev config to validate, got: %v", err)
	}
}

func TestValidateRejectsUnknownEnv(t *testing.T) {
	c := &Config{Env: "bogus"}
	if err := c.Validate(); err == nil {
		t.Fatal("expected unknown ENV to be rejected")
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV("a,b, c,")
	want := []string{"a", "b", " c"}
	if len(got) != len(want) {
		t.Fatalf("splitCSV = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("splitCSV[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
