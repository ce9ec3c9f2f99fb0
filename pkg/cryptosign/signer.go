// Package cryptosign implements Ed25519 signing and verification over
// canonical JSON bytes, grounded on the validator attestation signer/verifier
// pair: hex-encoded keys, explicit size checks before any crypto call, and
// signatures that never touch persistence or logs.
package cryptosign

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/nehagowda06/consent-ledger/pkg/canonical"
)

// Signer holds an Ed25519 private key in memory only. It is never
// serialized; callers must not log the struct.
type Signer struct {
	publicKey  ed25519.PublicKey
	privateKey ed25519.PrivateKey
}

// NewSigner builds a Signer from a raw 64-byte Ed25519 private key.
func NewSigner(privateKey ed25519.PrivateKey) (*Signer, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("cryptosign: private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(privateKey))
	}
	pub, ok := privateKey.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("cryptosign: could not derive public key")
	}
	return &Signer{publicKey: pub, privateKey: privateKey}, nil
}

// NewSignerFromSeedHex builds a Signer from a hex-encoded 32-byte seed.
func NewSignerFromSeedHex(seedHex string) (*Signer, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("cryptosign: invalid seed hex: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("cryptosign: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return NewSigner(ed25519.NewKeyFromSeed(seed))
}

// PublicKeyHex returns the lowercase hex encoding of the 32-byte public key.
func (s *Signer) PublicKeyHex() string {
	return hex.EncodeToString(s.publicKey)
}

// Sign signs the canonical signable bytes of obj and returns a lowercase hex
// 64-byte signature.
func (s *Signer) Sign(obj interface{}) (string, error) {
	msg, err := SignableBytes(obj)
	if err != nil {
		return "", err
	}
	sig := ed25519.Sign(s.privateKey, msg)
	return hex.EncodeToString(sig), nil
}

// SignableBytes produces the canonical JSON bytes of obj with any
// "signature" field removed, the stable message every sign/verify call
// operates over.
func SignableBytes(obj interface{}) ([]byte, error) {
	decoded, err := canonical.Decode(mustMarshalLenient(obj))
	if err != nil {
		return nil, fmt.Errorf("cryptosign: decode signable object: %w", err)
	}
	m, ok := decoded.(map[string]interface{})
	if ok {
		delete(m, "signature")
		decoded = m
	}
	return canonical.MarshalValue(decoded)
}

// Verifier checks Ed25519 signatures against supplied public keys. It never
// trusts an embedded public key implicitly: callers decide which key a
// signature is checked against.
type Verifier struct{}

// NewVerifier returns a stateless Verifier.
func NewVerifier() *Verifier { return &Verifier{} }

// Verify checks sigHex against obj's signable bytes under publicKeyHex.
// It fails closed: any hex decode error or wrong key/signature length
// returns false with a non-nil error describing why; a signature that does
// not verify returns false with a nil error. Neither case panics.
func (v *Verifier) Verify(obj interface{}, publicKeyHex, sigHex string) (bool, error) {
	pub, err := canonical.DecodePublicKeyHex(publicKeyHex)
	if err != nil {
		return false, fmt.Errorf("cryptosign: %w", err)
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, fmt.Errorf("cryptosign: invalid signature hex: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return false, fmt.Errorf("cryptosign: signature must be %d bytes, got %d", ed25519.SignatureSize, len(sig))
	}
	msg, err := SignableBytes(obj)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig), nil
}
