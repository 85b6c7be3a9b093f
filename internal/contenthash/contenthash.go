// Package contenthash provides deterministic SHA-256 content addressing
// for file identity, change detection and snapshot integrity.
package contenthash

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the lowercase hex SHA-256 digest of content.
// Identical content always yields an identical digest, independent of
// call order or platform.
func Sum(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

// SumBytes returns the lowercase hex SHA-256 digest of raw bytes.
func SumBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Equal reports whether two contents hash to the same digest.
func Equal(a, b string) bool {
	return Sum(a) == Sum(b)
}
