package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/nehagowda06/consent-ledger/pkg/cryptosign"
)

type testKeyPair struct {
	publicHex string
	signer    *cryptosign.Signer
}

func genKeyPair(t *testing.T) testKeyPair {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := cryptosign.NewSigner(priv)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	_ = pub
	return testKeyPair{publicHex: signer.PublicKeyHex(), signer: signer}
}

func mustFingerprint(t *testing.T, pubHex string) string {
	t.Helper()
	fp, err := Fingerprint(pubHex)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	return fp
}

func TestVerifyChainAcceptsValidChain(t *testing.T) {
	root := genKeyPair(t)
	child := genKeyPair(t)
	rootFP := mustFingerprint(t, root.publicHex)

	sig, err := Sign(root.signer, rootFP, mustFingerprint(t, child.publicHex), "issue")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	chain := []Delegation{{
		ParentPublicKey: root.publicHex,
		ChildPublicKey:  child.publicHex,
		DelegationType:  "issue",
		Signature:       sig,
		CreatedAt:       time.Now(),
	}}

	if !VerifyChain(rootFP, chain) {
		t.Fatal("expected valid delegation chain to verify")
	}
}

func TestVerifyChainRejectsCycle(t *testing.T) {
	a := genKeyPair(t)
	b := genKeyPair(t)
	aFP := mustFingerprint(t, a.publicHex)
	bFP := mustFingerprint(t, b.publicHex)

	sigAB, err := Sign(a.signer, aFP, bFP, "issue")
	if err != nil {
		t.Fatalf("Sign a->b: %v", err)
	}
	sigBA, err := Sign(b.signer, bFP, aFP, "issue")
	if err != nil {
		t.Fatalf("Sign b->a: %v", err)
	}

	now := time.Now()
	chain := []Delegation{
		{ParentPublicKey: a.publicHex, ChildPublicKey: b.publicHex, DelegationType: "issue", Signature: sigAB, CreatedAt: now},
		{ParentPublicKey: b.publicHex, ChildPublicKey: a.publicHex, DelegationType: "issue", Signature: sigBA, CreatedAt: now.Add(time.Microsecond)},
	}

	if VerifyChain(aFP, chain) {
		t.Fatal("expected cyclic delegation chain [A->B, B->A] rooted at A to be rejected")
	}
}

func TestVerifyChainRejectsBadSignature(t *testing.T) {
	root := genKeyPair(t)
	child := genKeyPair(t)
	rootFP := mustFingerprint(t, root.publicHex)

	chain := []Delegation{{
		ParentPublicKey: root.publicHex,
		ChildPublicKey:  child.publicHex,
		DelegationType:  "issue",
		Signature:       "00", // malformed/short signature
		CreatedAt:       time.Now(),
	}}

	if VerifyChain(rootFP, chain) {
		t.Fatal("expected bad signature to fail verification")
	}
}

func TestVerifyChainRejectsUnreachableParent(t *testing.T) {
	root := genKeyPair(t)
	stray := genKeyPair(t)
	child := genKeyPair(t)

	sig, err := Sign(stray.signer, mustFingerprint(t, stray.publicHex), mustFingerprint(t, child.publicHex), "issue")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	chain := []Delegation{{
		ParentPublicKey: stray.publicHex,
		ChildPublicKey:  child.publicHex,
		DelegationType:  "issue",
		Signature:       sig,
		CreatedAt:       time.Now(),
	}}

	if VerifyChain(mustFingerprint(t, root.publicHex), chain) {
		t.Fatal("expected delegation from an unreachable parent to be rejected")
	}
}
