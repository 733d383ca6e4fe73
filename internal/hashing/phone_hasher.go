package hashing

import (
	"crypto/sha256"
	"encoding/hex"
)

// PhoneHasher derives the identity key for a normalized phone.
type PhoneHasher interface {
	Hash(normalizedPhone string) string
}

// SHA256PhoneHasher is the lookup key used by the user tables and both
// verification code namespaces.
type SHA256PhoneHasher struct{}

func NewPhoneHasher() *SHA256PhoneHasher {
	return &SHA256PhoneHasher{}
}

// Hash returns 64 lowercase hex characters.
func (SHA256PhoneHasher) Hash(normalizedPhone string) string {
	sum := sha256.Sum256([]byte(normalizedPhone))
	return hex.EncodeToString(sum[:])
}
