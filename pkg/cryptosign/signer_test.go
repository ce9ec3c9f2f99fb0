package cryptosign

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	s, err := NewSigner(priv)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	return s
}

func TestSignVerifyRoundTrip(t *testing.T) {
	signer := newTestSigner(t)
	obj := map[string]interface{}{"tenant_id": "t1", "value": 42}

	sig, err := signer.Sign(obj)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	v := NewVerifier()
	ok, err := v.Verify(obj, signer.PublicKeyHex(), sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("expected signature to verify")
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	signer := newTestSigner(t)
	obj := map[string]interface{}{"a": 1}
	sig, err := signer.Sign(obj)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	tampered := map[string]interface{}{"a": 2}

	v := NewVerifier()
	ok, _ := v.Verify(tampered, signer.PublicKeyHex(), sig)
	if ok {
		t.Fatal("expected tampered payload to fail verification")
	}
}

func TestSignableBytesIgnoresSignatureField(t *testing.T) {
	a := map[string]interface{}{"x": 1, "signature": "deadbeef"}
	b := map[string]interface{}{"x": 1, "signature": "feedface"}
	ba, err := SignableBytes(a)
	if err != nil {
		t.Fatalf("SignableBytes a: %v", err)
	}
	bb, err := SignableBytes(b)
	if err != nil {
		t.Fatalf("SignableBytes b: %v", err)
	}
	if string(ba) != string(bb) {
		t.Fatal("expected signature field to be excluded from signable bytes")
	}
}

func TestVerifyFailsClosedOnBadHex(t *testing.T) {
	v := NewVerifier()
	if ok, err := v.Verify(map[string]interface{}{}, "not-hex", "also-not-hex"); ok || err == nil {
		t.Fatal("expected failure on invalid hex input")
	}
}
