// Package identity implements the identity-key and delegation model:
// scope-gated Ed25519 keys bound for life to one scope via their SHA-256
// fingerprint, and signed parent-to-child delegation chains.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Scope is the namespace an identity key is permanently bound to.
type Scope string

const (
	ScopeTenant Scope = "tenant"
	ScopeSystem Scope = "system"
	ScopeAdmin  Scope = "admin"
)

// Key is an Ed25519 public key bound to exactly one scope forever.
type Key struct {
	ID          uuid.UUID
	Scope       Scope
	OwnerID     *uuid.UUID // required iff Scope == ScopeTenant, forbidden otherwise
	PublicKey   string     // 32 raw bytes, hex
	Fingerprint string     // sha256(public_key_bytes), hex
	CreatedAt   time.Time
	RevokedAt   *time.Time // monotonic, immutable once set
}

// Fingerprint computes the SHA-256 hex fingerprint of a 32-byte raw public key.
func Fingerprint(publicKeyHex string) (string, error) {
	raw, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return "", fmt.Errorf("identity: invalid public key hex: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// NewKey validates the scope/owner invariant (scope=tenant iff owner_id set)
// and constructs a Key with its fingerprint derived from the public key.
func NewKey(scope Scope, ownerID *uuid.UUID, publicKeyHex string) (*Key, error) {
	if scope == ScopeTenant && ownerID == nil {
		return nil, fmt.Errorf("identity: tenant-scoped key requires owner_id")
	}
	if scope != ScopeTenant && ownerID != nil {
		return nil, fmt.Errorf("identity: owner_id forbidden for scope %q", scope)
	}
	fp, err := Fingerprint(publicKeyHex)
	if err != nil {
		return nil, err
	}
	return &Key{
		ID:          uuid.New(),
		Scope:       scope,
		OwnerID:     ownerID,
		PublicKey:   publicKeyHex,
		Fingerprint: fp,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// IsRevoked reports whether the key has been revoked.
func (k *Key) IsRevoked() bool {
	return k.RevokedAt != nil
}

// Revoke sets RevokedAt and refuses a second call with an error: revocation
// is one-way. The repository layer applies the same rule to persisted rows
// (its UPDATE only matches rows whose revoked_at is still NULL).
func (k *Key) Revoke(at time.Time) error {
	if k.RevokedAt != nil {
		return fmt.Errorf("identity: key %s already revoked at %s", k.ID, k.RevokedAt)
	}
	k.RevokedAt = &at
	return nil
}
