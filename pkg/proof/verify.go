package proof

import (
	"time"

	"github.com/nehagowda06/consent-ledger/pkg/anchor"
	"github.com/nehagowda06/consent-ledger/pkg/canonical"
	"github.com/nehagowda06/consent-ledger/pkg/consent"
	"github.com/nehagowda06/consent-ledger/pkg/cryptosign"
	"github.com/nehagowda06/consent-ledger/pkg/identity"
	"github.com/nehagowda06/consent-ledger/pkg/lineage"
)

// LineageVerifyResult is the outcome of verifying an exported lineage.
type LineageVerifyResult struct {
	Verified      bool
	FailureReason string
}

// VerifyExportedLineage checks a lineage export with no access to the
// originating database: signature first (if signed), then the tenant
// anchor, then the per-event hash chain. Any failure stops immediately so a
// caller never learns more than "this export is invalid".
func VerifyExportedLineage(export LineageExport) LineageVerifyResult {
	hasAny := export.SignerFingerprint != "" || export.SignerPublicKey != "" || export.Signature != ""
	hasAll := export.SignerFingerprint != "" && export.SignerPublicKey != "" && export.Signature != ""
	if hasAny && !hasAll {
		return LineageVerifyResult{false, "signature fields incomplete"}
	}
	if hasAll {
		fp, err := identity.Fingerprint(export.SignerPublicKey)
		if err != nil || !canonical.ConstantTimeHexEqual(fp, export.SignerFingerprint) {
			return LineageVerifyResult{false, "signature failed"}
		}
		ok, err := cryptosign.NewVerifier().Verify(export, export.SignerPublicKey, export.Signature)
		if err != nil || !ok {
			return LineageVerifyResult{false, "signature failed"}
		}
	}

	if len(export.Events) == 0 {
		return LineageVerifyResult{false, "lineage has no events"}
	}

	root := export.Events[len(export.Events)-1].EventHash
	expectedAnchor := anchor.TenantAnchor(export.TenantID, root)
	if !canonical.ConstantTimeHexEqual(expectedAnchor, export.TenantAnchor) {
		return LineageVerifyResult{false, "tenant anchor mismatch"}
	}

	var prev *string
	for i, e := range export.Events {
		if i == 0 {
			if e.PrevEventHash != nil {
				return LineageVerifyResult{false, "chain linkage broken"}
			}
		} else if e.PrevEventHash == nil || !canonical.ConstantTimeHexEqual(*e.PrevEventHash, export.Events[i-1].EventHash) {
			return LineageVerifyResult{false, "chain linkage broken"}
		}

		h, err := canonical.EventHash(canonical.EventPayload{
			TenantID:  export.TenantID,
			ConsentID: export.ConsentID,
			Action:    e.Action,
			Payload:   map[string]interface{}{},
		}, prev)
		if err != nil {
			return LineageVerifyResult{false, "hash recompute failed"}
		}
		if !canonical.ConstantTimeHexEqual(h, e.EventHash) {
			return LineageVerifyResult{false, "event hash mismatch"}
		}

		hh := e.EventHash
		prev = &hh
	}

	return LineageVerifyResult{true, ""}
}

// ConsentProofVerifyResult is the outcome of verifying a consent proof.
type ConsentProofVerifyResult struct {
	Verified      bool
	DerivedState  string
	FailureReason string
}

// VerifyConsentProof checks a consent proof against the deterministic
// failure order specified for this artifact.
func VerifyConsentProof(p ConsentProof) ConsentProofVerifyResult {
	fail := func(reason string) ConsentProofVerifyResult {
		return ConsentProofVerifyResult{Verified: false, FailureReason: reason}
	}

	// 1. required keys / supported version+type
	if p.Version != ExportVersion || p.ProofType != ProofTypeConsentStateAtTime {
		return fail("unsupported version or proof type")
	}

	// 2. included_events non-empty and <= lineage.events
	if len(p.IncludedEvents) == 0 || len(p.IncludedEvents) > len(p.Lineage.Events) {
		return fail("included_events out of bounds")
	}

	// 3. recursive verify of the embedded lineage (signature-first internally)
	lineageResult := VerifyExportedLineage(p.Lineage)
	if !lineageResult.Verified {
		return fail("embedded lineage invalid: " + lineageResult.FailureReason)
	}

	// 4. tenant_anchor agreement + tenant/consent id agreement
	if !canonical.ConstantTimeHexEqual(p.TenantAnchor, p.Lineage.TenantAnchor) {
		return fail("tenant anchor disagreement")
	}
	if p.TenantID != p.Lineage.TenantID || p.ConsentID != p.Lineage.ConsentID {
		return fail("tenant/consent id disagreement")
	}

	// 5. each included event matches its lineage counterpart by position
	for i, ie := range p.IncludedEvents {
		le := p.Lineage.Events[i]
		if ie.Action != le.Action || !canonical.ConstantTimeHexEqual(ie.EventHash, le.EventHash) || !ie.CreatedAt.Equal(le.CreatedAt) {
			return fail("included event disagrees with lineage")
		}
		if ie.CreatedAt.After(p.AssertedAt) {
			return fail("included event occurs after asserted_at")
		}
	}

	// 6. next lineage event (if any) occurs strictly after asserted_at
	if len(p.IncludedEvents) < len(p.Lineage.Events) {
		next := p.Lineage.Events[len(p.IncludedEvents)]
		if !next.CreatedAt.After(p.AssertedAt) {
			return fail("next lineage event does not occur after asserted_at")
		}
	}

	// 7. derived state over included events equals asserted_state
	state := consent.StatusActive
	for _, ie := range p.IncludedEvents {
		switch ie.Action {
		case lineage.ActionCreated:
			state = consent.StatusActive
		case lineage.ActionRevoked:
			state = consent.StatusRevoked
		case lineage.ActionUpdated:
			state = state.Toggle()
		case lineage.ActionNoop:
		default:
			return fail("unrecognized lineage action")
		}
	}
	if string(state) != p.AssertedState {
		return fail("derived state disagrees with asserted_state")
	}

	// 8. outer proof signature, if present
	hasAny := p.SignerFingerprint != "" || p.SignerPublicKey != "" || p.Signature != ""
	hasAll := p.SignerFingerprint != "" && p.SignerPublicKey != "" && p.Signature != ""
	if hasAny && !hasAll {
		return fail("proof signature fields incomplete")
	}
	if hasAll {
		if !canonical.ConstantTimeHexEqual(p.SignerFingerprint, p.Lineage.SignerFingerprint) || !canonical.ConstantTimeHexEqual(p.SignerPublicKey, p.Lineage.SignerPublicKey) {
			return fail("proof signer disagrees with lineage signer")
		}
		rootHash := p.Lineage.Events[len(p.Lineage.Events)-1].EventHash
		ok, err := cryptosign.NewVerifier().Verify(proofSignable{
			AssertedAt:                p.AssertedAt.UTC().Format(time.RFC3339Nano),
			AssertedState:             p.AssertedState,
			LineageRootHash:           rootHash,
			SignerIdentityFingerprint: p.SignerFingerprint,
			SignerPublicKey:           p.SignerPublicKey,
		}, p.SignerPublicKey, p.Signature)
		if err != nil || !ok {
			return fail("proof signature failed")
		}
	}

	return ConsentProofVerifyResult{Verified: true, DerivedState: string(state)}
}
