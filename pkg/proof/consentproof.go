package proof

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nehagowda06/consent-ledger/pkg/consent"
	"github.com/nehagowda06/consent-ledger/pkg/cryptosign"
	"github.com/nehagowda06/consent-ledger/pkg/lineage"
)

const ProofTypeConsentStateAtTime = "CONSENT_STATE_AT_TIME"

// IncludedEvent is the subset of a lineage export event surfaced in a
// consent proof.
type IncludedEvent struct {
	Action    string    `json:"action"`
	EventHash string    `json:"event_hash"`
	CreatedAt time.Time `json:"created_at"`
}

// ConsentProof asserts a consent's state at a point in time, independently
// verifiable without the issuing database.
type ConsentProof struct {
	Version        int             `json:"version"`
	ProofType      string          `json:"proof_type"`
	TenantID       string          `json:"tenant_id"`
	ConsentID      string          `json:"consent_id"`
	AssertedAt     time.Time       `json:"asserted_at"`
	AssertedState  string          `json:"asserted_state"`
	TenantAnchor   string          `json:"tenant_anchor"`
	Lineage        LineageExport   `json:"lineage"`
	IncludedEvents []IncludedEvent `json:"included_events"`

	SignerFingerprint string `json:"signer_fingerprint,omitempty"`
	SignerPublicKey   string `json:"signer_public_key,omitempty"`
	Signature         string `json:"signature,omitempty"`
}

// proofSignable is the canonical shape a consent proof is signed over.
type proofSignable struct {
	AssertedAt              string `json:"asserted_at"`
	AssertedState           string `json:"asserted_state"`
	LineageRootHash         string `json:"lineage_root_hash"`
	SignerIdentityFingerprint string `json:"signer_identity_fingerprint"`
	SignerPublicKey         string `json:"signer_public_key"`
}

// BuildConsentProof derives the consent's state as of assertedAt from the
// full ordered event chain (oldest first) and embeds a lineage export of
// the full chain. assertedAt must fall within [first event, max(now, last
// event)]; a time before the first event is rejected.
func BuildConsentProof(events []lineage.Event, tenantID, consentID uuid.UUID, assertedAt, now time.Time) (*ConsentProof, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("proof: cannot build a proof over an empty lineage")
	}

	latest := events[len(events)-1].CreatedAt
	ceiling := now
	if latest.After(ceiling) {
		ceiling = latest
	}
	if assertedAt.After(ceiling) {
		return nil, fmt.Errorf("proof: asserted_at is beyond the allowed ceiling")
	}

	included := make([]lineage.Event, 0, len(events))
	for _, e := range events {
		if !e.CreatedAt.After(assertedAt) {
			included = append(included, e)
		}
	}
	if len(included) == 0 {
		return nil, fmt.Errorf("proof: asserted_at precedes the first lineage event")
	}

	state := consent.StatusActive
	for _, e := range included {
		switch e.Action {
		case lineage.ActionCreated:
			state = consent.StatusActive
		case lineage.ActionRevoked:
			state = consent.StatusRevoked
		case lineage.ActionUpdated:
			state = state.Toggle()
		case lineage.ActionNoop:
			// no change
		default:
			return nil, fmt.Errorf("proof: unrecognized lineage action %q", e.Action)
		}
	}

	fullExport, err := BuildLineageExport(events, tenantID, consentID)
	if err != nil {
		return nil, err
	}

	includedExported := make([]IncludedEvent, len(included))
	for i := range included {
		ee := fullExport.Events[i]
		includedExported[i] = IncludedEvent{Action: ee.Action, EventHash: ee.EventHash, CreatedAt: ee.CreatedAt}
	}

	return &ConsentProof{
		Version:        ExportVersion,
		ProofType:      ProofTypeConsentStateAtTime,
		TenantID:       tenantID.String(),
		ConsentID:      consentID.String(),
		AssertedAt:     assertedAt,
		AssertedState:  string(state),
		TenantAnchor:   fullExport.TenantAnchor,
		Lineage:        *fullExport,
		IncludedEvents: includedExported,
	}, nil
}

// Sign attaches a signature over {asserted_at, asserted_state,
// lineage_root_hash, signer_identity_fingerprint, signer_public_key}.
func (p *ConsentProof) Sign(signer *cryptosign.Signer, fingerprint string) error {
	rootHash := p.Lineage.Events[len(p.Lineage.Events)-1].EventHash
	sig, err := signer.Sign(proofSignable{
		AssertedAt:                p.AssertedAt.UTC().Format(time.RFC3339Nano),
		AssertedState:             p.AssertedState,
		LineageRootHash:           rootHash,
		SignerIdentityFingerprint: fingerprint,
		SignerPublicKey:           signer.PublicKeyHex(),
	})
	if err != nil {
		return fmt.Errorf("proof: sign consent proof: %w", err)
	}
	p.SignerFingerprint = fingerprint
	p.SignerPublicKey = signer.PublicKeyHex()
	p.Signature = sig
	return nil
}
