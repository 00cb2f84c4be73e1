// Package bcrypt hashes passwords for storage. Each password is first keyed
// with the server pepper, which also keeps the input under bcrypt's 72 byte
// limit, and then hashed with a per-password salt.
package bcrypt

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/JakeFAU/coreapi/internal/hash/sha256"
)

// DefaultCost is the work factor used when none is configured.
const DefaultCost = bcrypt.DefaultCost

// Hasher produces and verifies salted password hashes.
type Hasher struct {
	pepper *sha256.Hasher
	cost   int
}

// New returns a Hasher. A cost outside bcrypt's accepted range falls back to DefaultCost.
func New(pepper string, cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{pepper: sha256.New(pepper), cost: cost}
}

// Hash returns the bcrypt hash of the peppered password.
func (h *Hasher) Hash(password []byte) (string, error) {
	out, err := bcrypt.GenerateFromPassword(h.peppered(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(out), nil
}

// Matches reports whether hash was produced from password.
func (h *Hasher) Matches(hash string, password []byte) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), h.peppered(password)) == nil
}

// Cost returns the work factor new hashes are generated with.
func (h *Hasher) Cost() int { return h.cost }

func (h *Hasher) peppered(password []byte) []byte {
	return []byte(h.pepper.Hash(password))
}
