package domain

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashAPIKey hashes the raw API key using the same strategy as key creation.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// MatchesHash compares raw against a stored hash in constant time.
func MatchesHash(raw, storedHash string) bool {
	computed := HashAPIKey(raw)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
