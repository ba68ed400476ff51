// Package hash provides one-way digests for identifiers that must not be stored raw.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// ipHashIterations is the SHA256 work factor for stored IP digests.
const ipHashIterations = 5000

// SHA256Hex returns the hex-encoded SHA256 hash of the input string.
func SHA256Hex(input string) string {
	h := sha256.Sum256([]byte(input))
	return hex.EncodeToString(h[:])
}

// ShortHash returns a 12-character prefix of SHA256Hex, for log correlation.
func ShortHash(input string) string {
	return SHA256Hex(input)[:12]
}

// IteratedSHA256 applies SHA256 iteratively n times to produce a derived hash.
func IteratedSHA256(input string, iterations int) string {
	data := []byte(input)
	for range iterations {
		h := sha256.Sum256(data)
		data = h[:]
	}
	return hex.EncodeToString(data)
}

// HashIP hashes an IP address with a salt. Used for the ip field of vote
// event metadata.
func HashIP(ip, salt string) string {
	return IteratedSHA256(salt+ip, ipHashIterations)
}
