// Package checksum fingerprints uploaded note content.
package checksum

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Pages digests an ordered set of page images. Each page is length-prefixed
// so that moving bytes across a page boundary changes the digest.
func Pages(pages [][]byte) string {
	h := sha256.New()
	var n [8]byte
	for _, p := range pages {
		binary.BigEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
