// Package iphash salts and hashes client IP addresses so the rest of the
// system never stores or observes a raw IP (I6).
package iphash

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hash returns a fixed-length hex-encoded salted hash of addr. An empty addr
// yields an empty hash (no LAN-matching information, not a zero IP).
func Hash(salt, addr string) string {
	if addr == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(salt + "|" + addr))
	return hex.EncodeToString(sum[:])
}

// randBytes fills out with cryptographically secure random bytes. Grounded on
// the teacher's crypto.RandBytes helper; used here for request id suffixes.
func randBytes(out []byte) ([]byte, error) {
	if len(out) == 0 {
		return out, fmt.Errorf("output slice is empty")
	}
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("rand read: %w", err)
	}
	return out, nil
}

// RandomSuffix returns a short random hex suffix, used by request ids.
func RandomSuffix(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := randBytes(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
