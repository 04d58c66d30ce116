// Package checksum computes the content digests used as ETags and change markers.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"hash/fnv"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// JSON returns the digest of v's JSON encoding. Struct fields encode in
// declaration order, so equal values always produce equal digests.
func JSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return Sum(data), nil
}

// Seed folds s into a 64-bit value usable as a random seed.
func Seed(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
