package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/nehagowda06/consent-ledger/pkg/cryptosign"
)

// Delegation is a signed assertion that ParentFingerprint authorizes
// ChildFingerprint to act within DelegationType.
type Delegation struct {
	ID              uuid.UUID
	ParentKeyID     uuid.UUID
	ChildKeyID      uuid.UUID
	DelegationType  string
	Signature       string
	CreatedAt       time.Time
	ParentPublicKey string // carried alongside for verification, not persisted on the row itself
	ChildPublicKey  string
}

// delegationSignable is the canonical shape signed over by the parent key.
type delegationSignable struct {
	ParentFingerprint string `json:"parent_fingerprint"`
	ChildFingerprint  string `json:"child_fingerprint"`
	DelegationType    string `json:"delegation_type"`
}

// Sign produces the signature a parent key must attach to a delegation,
// over canonical_json({parent_fingerprint, child_fingerprint, delegation_type}).
func Sign(signer *cryptosign.Signer, parentFingerprint, childFingerprint, delegationType string) (string, error) {
	return signer.Sign(delegationSignable{
		ParentFingerprint: parentFingerprint,
		ChildFingerprint:  childFingerprint,
		DelegationType:    delegationType,
	})
}

// VerifyChain walks a presented delegation chain starting from rootFingerprint
// and accepts it iff every rule in the identity model holds:
//  1. each delegation's parent/child fingerprints are sha256 of the supplied public key material
//  2. the parent is reachable from the root through previously accepted delegations
//  3. adding the edge does not create a cycle
//  4. created_at is monotonically non-decreasing across the chain
//  5. the signature verifies under the parent's public key
//
// Any failure returns false without revealing which rule failed (callers
// increment a counter and emit a security event themselves).
func VerifyChain(rootFingerprint string, chain []Delegation) bool {
	verifier := cryptosign.NewVerifier()
	adjacency := make(map[string][]string)
	reachable := map[string]bool{rootFingerprint: true}

	var lastCreatedAt time.Time
	first := true

	for _, d := range chain {
		parentFP, err := Fingerprint(d.ParentPublicKey)
		if err != nil {
			return false
		}
		childFP, err := Fingerprint(d.ChildPublicKey)
		if err != nil {
			return false
		}

		if !reachable[parentFP] {
			return false
		}

		if wouldCreateCycle(adjacency, parentFP, childFP) {
			return false
		}

		if !first && d.CreatedAt.Before(lastCreatedAt) {
			return false
		}
		lastCreatedAt = d.CreatedAt
		first = false

		ok, err := verifier.Verify(delegationSignable{
			ParentFingerprint: parentFP,
			ChildFingerprint:  childFP,
			DelegationType:    d.DelegationType,
		}, d.ParentPublicKey, d.Signature)
		if err != nil || !ok {
			return false
		}

		adjacency[parentFP] = append(adjacency[parentFP], childFP)
		reachable[childFP] = true
	}

	return true
}

// wouldCreateCycle reports whether adding parent->child introduces a cycle,
// by checking whether parent is reachable from child in the existing
// adjacency map (a DFS from the candidate child).
func wouldCreateCycle(adjacency map[string][]string, parent, child string) bool {
	if parent == child {
		return true
	}
	visited := make(map[string]bool)
	var dfs func(node string) bool
	dfs = func(node string) bool {
		if node == parent {
			return true
		}
		if visited[node] {
			return false
		}
		visited[node] = true
		for _, next := range adjacency[node] {
			if dfs(next) {
				return true
			}
		}
		return false
	}
	return dfs(child)
}
