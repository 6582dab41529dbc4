package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// TrialSeed derives a deterministic RNG seed for one permutation trial.
// The same operation name, base seed, and trial index always map to the
// same stream, so a run's results depend on its seed alone: not on worker
// scheduling and not on when the run happens.
func TrialSeed(name string, baseSeed int64, trial int) int64 {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d", name, baseSeed, trial)))
	return int64(binary.BigEndian.Uint64(sum[:8]))
}
