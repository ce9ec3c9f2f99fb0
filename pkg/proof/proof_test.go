package proof

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nehagowda06/consent-ledger/pkg/consent"
	"github.com/nehagowda06/consent-ledger/pkg/cryptosign"
	"github.com/nehagowda06/consent-ledger/pkg/identity"
	"github.com/nehagowda06/consent-ledger/pkg/lineage"
)

func buildChain(t *testing.T, tenantID, consentID uuid.UUID) []lineage.Event {
	t.Helper()
	now := time.Now()
	e1, err := lineage.Append(nil, tenantID, consentID, lineage.ActionCreated, "u", "p", consent.StatusActive, now)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	return []lineage.Event{*e1}
}

func TestHappyPathProofVerifies(t *testing.T) {
	tenantID, consentID := uuid.New(), uuid.New()
	chain := buildChain(t, tenantID, consentID)

	p, err := BuildConsentProof(chain, tenantID, consentID, chain[0].CreatedAt, chain[0].CreatedAt)
	if err != nil {
		t.Fatalf("BuildConsentProof: %v", err)
	}

	result := VerifyConsentProof(*p)
	if !result.Verified {
		t.Fatalf("expected proof to verify, got failure: %s", result.FailureReason)
	}
	if result.DerivedState != string(consent.StatusActive) {
		t.Fatalf("expected derived_state ACTIVE, got %s", result.DerivedState)
	}
}

func TestToggleSequenceProof(t *testing.T) {
	tenantID, consentID := uuid.New(), uuid.New()
	now := time.Now()

	e1, _ := lineage.Append(nil, tenantID, consentID, lineage.ActionCreated, "u", "p", consent.StatusActive, now)
	e2, _ := lineage.Append(e1, tenantID, consentID, lineage.ActionRevoked, "u", "p", consent.StatusRevoked, now.Add(time.Second))
	e3, _ := lineage.Append(e2, tenantID, consentID, lineage.ActionUpdated, "u", "p", consent.StatusActive, now.Add(2*time.Second))

	chain := []lineage.Event{*e1, *e2, *e3}
	assertedAt := e2.CreatedAt.Add(200 * time.Millisecond)

	p, err := BuildConsentProof(chain, tenantID, consentID, assertedAt, e3.CreatedAt)
	if err != nil {
		t.Fatalf("BuildConsentProof: %v", err)
	}
	result := VerifyConsentProof(*p)
	if !result.Verified {
		t.Fatalf("expected toggle-sequence proof to verify, got: %s", result.FailureReason)
	}
	if result.DerivedState != string(consent.StatusRevoked) {
		t.Fatalf("expected derived_state REVOKED, got %s", result.DerivedState)
	}
}

func TestAnchorStableAcrossExports(t *testing.T) {
	tenantID, consentID := uuid.New(), uuid.New()
	chain := buildChain(t, tenantID, consentID)

	export1, err := BuildLineageExport(chain, tenantID, consentID)
	if err != nil {
		t.Fatalf("export1: %v", err)
	}
	export2, err := BuildLineageExport(chain, tenantID, consentID)
	if err != nil {
		t.Fatalf("export2: %v", err)
	}
	if export1.TenantAnchor != export2.TenantAnchor {
		t.Fatal("expected tenant anchor to be byte-identical across re-exports of the same chain")
	}
}

func TestTamperDetectionFlipsEventHash(t *testing.T) {
	tenantID, consentID := uuid.New(), uuid.New()
	chain := buildChain(t, tenantID, consentID)
	export, err := BuildLineageExport(chain, tenantID, consentID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	export.Events[0].EventHash = "0" + export.Events[0].EventHash[1:]
	result := VerifyExportedLineage(*export)
	if result.Verified {
		t.Fatal("expected tampered event hash to fail verification")
	}
}

func TestCrossTenantGraftFailsVerification(t *testing.T) {
	tenantA, consentA := uuid.New(), uuid.New()
	tenantB, consentB := uuid.New(), uuid.New()

	chainA := buildChain(t, tenantA, consentA)
	chainB := buildChain(t, tenantB, consentB)

	exportA, err := BuildLineageExport(chainA, tenantA, consentA)
	if err != nil {
		t.Fatalf("exportA: %v", err)
	}
	exportB, err := BuildLineageExport(chainB, tenantB, consentB)
	if err != nil {
		t.Fatalf("exportB: %v", err)
	}

	grafted := *exportA
	grafted.Events = exportB.Events
	result := VerifyExportedLineage(grafted)
	if result.Verified {
		t.Fatal("expected grafted cross-tenant events to fail verification")
	}
}

func TestSignatureFirstFailureOrder(t *testing.T) {
	tenantID, consentID := uuid.New(), uuid.New()
	chain := buildChain(t, tenantID, consentID)
	export, err := BuildLineageExport(chain, tenantID, consentID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := cryptosign.NewSigner(priv)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	fp, err := identity.Fingerprint(signer.PublicKeyHex())
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if err := export.Sign(signer, fp); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	// Break both the signature (by tampering the signed payload) and the
	// hash chain (by flipping a stored event_hash).
	export.TenantAnchor = "0" + export.TenantAnchor[1:]
	export.Events[0].EventHash = "1" + export.Events[0].EventHash[1:]

	result := VerifyExportedLineage(*export)
	if result.Verified {
		t.Fatal("expected verification to fail")
	}
	if result.FailureReason != "signature failed" {
		t.Fatalf("expected signature failure to be reported first, got %q", result.FailureReason)
	}
}

func TestSignedProofVerifiesWhenLineageSignerMatches(t *testing.T) {
	tenantID, consentID := uuid.New(), uuid.New()
	chain := buildChain(t, tenantID, consentID)

	p, err := BuildConsentProof(chain, tenantID, consentID, chain[0].CreatedAt, chain[0].CreatedAt)
	if err != nil {
		t.Fatalf("BuildConsentProof: %v", err)
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := cryptosign.NewSigner(priv)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	fp, err := identity.Fingerprint(signer.PublicKeyHex())
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}

	if err := p.Lineage.Sign(signer, fp); err != nil {
		t.Fatalf("sign lineage: %v", err)
	}
	if err := p.Sign(signer, fp); err != nil {
		t.Fatalf("sign proof: %v", err)
	}

	result := VerifyConsentProof(*p)
	if !result.Verified {
		t.Fatalf("expected signed proof with matching lineage signer to verify, got: %s", result.FailureReason)
	}
}

func TestSignedProofRejectsMismatchedLineageSigner(t *testing.T) {
	tenantID, consentID := uuid.New(), uuid.New()
	chain := buildChain(t, tenantID, consentID)

	p, err := BuildConsentProof(chain, tenantID, consentID, chain[0].CreatedAt, chain[0].CreatedAt)
	if err != nil {
		t.Fatalf("BuildConsentProof: %v", err)
	}

	_, priv1, _ := ed25519.GenerateKey(rand.Reader)
	signer1, _ := cryptosign.NewSigner(priv1)
	fp1, _ := identity.Fingerprint(signer1.PublicKeyHex())
	if err := p.Lineage.Sign(signer1, fp1); err != nil {
		t.Fatalf("sign lineage: %v", err)
	}

	_, priv2, _ := ed25519.GenerateKey(rand.Reader)
	signer2, _ := cryptosign.NewSigner(priv2)
	fp2, _ := identity.Fingerprint(signer2.PublicKeyHex())
	if err := p.Sign(signer2, fp2); err != nil {
		t.Fatalf("sign proof: %v", err)
	}

	result := VerifyConsentProof(*p)
	if result.Verified {
		t.Fatal("expected proof signed by a different identity than the lineage to fail verification")
	}
}

func TestBuildConsentProofRejectsBeforeFirstEvent(t *testing.T) {
	tenantID, consentID := uuid.New(), uuid.New()
	chain := buildChain(t, tenantID, consentID)
	before := chain[0].CreatedAt.Add(-time.Hour)

	if _, err := BuildConsentProof(chain, tenantID, consentID, before, chain[0].CreatedAt); err == nil {
		t.Fatal("expected before-first-event assertion to be rejected")
	}
}
