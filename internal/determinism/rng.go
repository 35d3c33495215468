package determinism

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
)

// NewStream derives a seeded, streamable RNG for one trial. The same
// (candidateHash, trialIndex) pair always yields the same stream, and
// distinct trial indices of the same candidate yield independent streams —
// the two properties §4.8's reproducibility requirement depends on.
func NewStream(candidateHash string, trialIndex int64) *rand.Rand {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], uint64(trialIndex))
	seed := sha256.Sum256(append([]byte(candidateHash), idx[:]...))
	return rand.New(rand.NewChaCha8(seed))
}

// SubStream derives an independent stream for one named sub-purpose (e.g.
// "slippage", "path-jitter") directly from (candidateHash, trialIndex,
// purpose), without drawing from the trial's NewStream, so that two
// components drawing from the same trial don't silently share RNG state
// and create hidden cross-component correlation.
func SubStream(candidateHash string, trialIndex int64, purpose string) *rand.Rand {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], uint64(trialIndex))
	material := append([]byte(candidateHash), idx[:]...)
	material = append(material, []byte(purpose)...)
	seed := sha256.Sum256(material)
	return rand.New(rand.NewChaCha8(seed))
}
