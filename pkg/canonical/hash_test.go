package canonical

import "testing"

// Frozen constants pinned by the specification; any change to the
// canonicalization or hash-material formulas must keep these byte-identical.
func TestEventHashFrozenConstant(t *testing.T) {
	got, err := EventHash(EventPayload{
		TenantID:  "t",
		ConsentID: "c",
		Action:    "created",
		Payload:   map[string]interface{}{},
	}, nil)
	if err != nil {
		t.Fatalf("EventHash: %v", err)
	}
	want := "add0bc7b3376b67b13d04e96d6bb89e717f5c62ddc3b972bb349fdc8cce69a2b"
	if got != want {
		t.Fatalf("EventHash = %s, want %s", got, want)
	}
}

func TestTenantAnchorFrozenConstant(t *testing.T) {
	root := stringOfLen("a", 64)
	got := TenantAnchor("tenant-1", root)
	want := "a13e2793c9b48461b84689417e3ff76db66c8d1b597ab7cff88ebbfbca8e821f"
	if got != want {
		t.Fatalf("TenantAnchor = %s, want %s", got, want)
	}
}

func TestAnchorDigestFrozenConstant(t *testing.T) {
	got := AnchorDigest([]string{stringOfLen("b", 64), stringOfLen("a", 64)})
	want := "5e9ae866add9a85d69c3481d059bb9f158a39e5670ba11f95112fc409630894e"
	if got != want {
		t.Fatalf("AnchorDigest = %s, want %s", got, want)
	}
}

func stringOfLen(ch string, n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = ch[0]
	}
	return string(out)
}

func TestEventHashChangesWithPrevHash(t *testing.T) {
	p := EventPayload{TenantID: "t", ConsentID: "c", Action: "updated", Payload: map[string]interface{}{"x": 1}}
	h1, _ := EventHash(p, nil)
	prev := h1
	h2, _ := EventHash(p, &prev)
	if h1 == h2 {
		t.Fatal("expected hash to change when prev_hash is supplied")
	}
}

func TestDecodeRejectsDuplicateKeys(t *testing.T) {
	_, err := Decode([]byte(`{"a":1,"a":2}`))
	if err == nil {
		t.Fatal("expected duplicate key rejection")
	}
}

func TestMarshalSortsKeysAndPreservesUnicode(t *testing.T) {
	out, err := Marshal(map[string]interface{}{"b": 1, "a": "héllo"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"a":"héllo","b":1}`
	if string(out) != want {
		t.Fatalf("Marshal = %s, want %s", out, want)
	}
}

func TestConstantTimeHexEqualCaseInsensitive(t *testing.T) {
	if !ConstantTimeHexEqual("ABCDEF", "abcdef") {
		t.Fatal("expected case-insensitive equality")
	}
	if ConstantTimeHexEqual("abcdef", "abcde0") {
		t.Fatal("expected mismatch to be detected")
	}
}
