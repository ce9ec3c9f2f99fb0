package canonical

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// EventPayload is the fixed shape hashed into a consent lineage event.
type EventPayload struct {
	TenantID  string
	ConsentID string
	Action    string
	Payload   interface{}
}

// EventHash computes sha256(tenant_id|consent_id|action|canonical_json(payload)|prev_hash_or_empty)
// exactly per the event-hash material formula: delimiter "|", empty string
// for a nil previous hash.
func EventHash(p EventPayload, prevHash *string) (string, error) {
	payloadJSON, err := Marshal(p.Payload)
	if err != nil {
		return "", fmt.Errorf("canonical: encode event payload: %w", err)
	}
	prev := ""
	if prevHash != nil {
		prev = *prevHash
	}
	material := strings.Join([]string{p.TenantID, p.ConsentID, p.Action, string(payloadJSON), prev}, "|")
	return sha256Hex([]byte(material)), nil
}

// SystemEventPayload is the fixed shape hashed into a system ledger event.
type SystemEventPayload struct {
	EventType    string
	TenantID     string // empty string if cross-tenant
	ResourceType string // empty string if absent
	ResourceID   string // empty string if absent
	Payload      interface{}
}

// SystemEventHash computes sha256("SYSTEM|"|event_type|"|"|tenant_id_or_empty|"|"|
// resource_type_or_empty|"|"|resource_id_or_empty|"|"|canonical_json(payload)|"|"|prev_hash_or_empty).
func SystemEventHash(p SystemEventPayload, prevHash *string) (string, error) {
	payloadJSON, err := Marshal(p.Payload)
	if err != nil {
		return "", fmt.Errorf("canonical: encode system event payload: %w", err)
	}
	prev := ""
	if prevHash != nil {
		prev = *prevHash
	}
	material := strings.Join([]string{
		"SYSTEM", p.EventType, p.TenantID, p.ResourceType, p.ResourceID, string(payloadJSON), prev,
	}, "|")
	return sha256Hex([]byte(material)), nil
}

// TenantAnchor computes sha256("ANCHOR|"|tenant_id|"|"|lineage_root_hash).
func TenantAnchor(tenantID, lineageRootHash string) string {
	material := "ANCHOR|" + tenantID + "|" + lineageRootHash
	return sha256Hex([]byte(material))
}

// AnchorDigest computes the SHA-256 of the sorted list of anchors, joined by "\n".
func AnchorDigest(anchors []string) string {
	sorted := append([]string(nil), anchors...)
	sort.Strings(sorted)
	material := strings.Join(sorted, "\n")
	return sha256Hex([]byte(material))
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ConstantTimeHexEqual compares two hex strings in constant time after
// lowercasing. Used for every security-relevant hash/signature comparison
// so verification never short-circuits on a prefix mismatch.
func ConstantTimeHexEqual(a, b string) bool {
	an := strings.ToLower(a)
	bn := strings.ToLower(b)
	if len(an) != len(bn) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(an), []byte(bn)) == 1
}

// IsValidHex64 reports whether s decodes to exactly 32 bytes (a SHA-256 hex digest).
func IsValidHex64(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// DecodePublicKeyHex decodes a hex-encoded Ed25519 public key, requiring
// exactly 32 raw bytes.
func DecodePublicKeyHex(s string) ([]byte, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("canonical: invalid hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("canonical: public key must be 32 bytes, got %d", len(raw))
	}
	return raw, nil
}

// NormalizeHex lowercases a hex string for storage/compare.
func NormalizeHex(s string) string {
	return strings.ToLower(s)
}

// HashJSON returns the SHA-256 hex digest of the canonical JSON encoding of
// v. Used wherever a payload's content must be committed to without
// persisting the payload itself (system events persist only this digest).
func HashJSON(v interface{}) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonical: hash json: %w", err)
	}
	return sha256Hex(b), nil
}
