package document

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashContent computes the SHA-256 hash of content and returns it hex-encoded.
// The whole content is hashed, so the digest changes whenever any byte does.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// HashString hashes a string with HashContent.
func HashString(content string) string {
	return HashContent([]byte(content))
}

// HashParts hashes a sequence of strings with unambiguous separation, so that
// ("ab", "c") and ("a", "bc") produce different digests.
func HashParts(parts ...string) string {
	h := sha256.New()
	var lenBuf [8]byte
	for _, p := range parts {
		n := uint64(len(p))
		for i := 0; i < 8; i++ {
			lenBuf[i] = byte(n >> (8 * i))
		}
		h.Write(lenBuf[:])
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
