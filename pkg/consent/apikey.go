package consent

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HashApiKey computes the HMAC-SHA256 of a raw API key under the server's
// secret. The raw key is never persisted; only this digest is stored in
// ApiKey.KeyHash.
func HashApiKey(secret, rawKey string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(rawKey))
	return hex.EncodeToString(mac.Sum(nil))
}
