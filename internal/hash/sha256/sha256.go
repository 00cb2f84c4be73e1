// Package sha256 provides keyed SHA-256 digests used to pepper secrets before
// they reach the password hasher.
package sha256

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Hasher computes HMAC-SHA256 digests keyed with a server-side pepper.
type Hasher struct {
	pepper []byte
}

// New returns a Hasher keyed with pepper. An empty pepper is allowed.
func New(pepper string) *Hasher {
	return &Hasher{pepper: []byte(pepper)}
}

// Hash returns the hex HMAC of data. The result is always 64 bytes long.
func (h *Hasher) Hash(data []byte) string {
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// Matches reports whether digest is the HMAC of data, in constant time.
func (h *Hasher) Matches(digest string, data []byte) bool {
	return hmac.Equal([]byte(h.Hash(data)), []byte(digest))
}
