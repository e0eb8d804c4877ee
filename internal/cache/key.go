package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Key derives the cache key for a sanitization request. Every part is
// length-prefixed so different splits of the same bytes never collide.
func Key(content, policy []byte, model string) string {
	h := sha256.New()
	for _, part := range [][]byte{content, policy, []byte(model)} {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(part)))
		h.Write(n[:])
		h.Write(part)
	}
	return "sanitize:" + hex.EncodeToString(h.Sum(nil))
}
