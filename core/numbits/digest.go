package numbits

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Digest returns the hex BLAKE3-256 hash of the canonical form of numbits.
// Blobs that denote the same set have the same digest.
func Digest(numbits []byte) string {
	h := blake3.Sum256(Canonical(numbits))
	return hex.EncodeToString(h[:])
}
