package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashText returns the hex SHA-256 of s, used as a cache key for
// report text and embedding inputs.
func HashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
