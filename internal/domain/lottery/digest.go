package lottery

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// DigestSecret computes the commitment digest of a buyer secret. Keccak-256
// keeps commitments interchangeable with the on-chain deployment of the same
// protocol.
func DigestSecret(secret []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(secret)
	return h.Sum(nil)
}

// MatchesCommitment checks a revealed secret against a stored commitment.
func MatchesCommitment(secret, committedHash []byte) bool {
	return bytes.Equal(DigestSecret(secret), committedHash)
}

// FoldSeed absorbs a revealed secret into the running aggregate seed. The
// result depends on reveal arrival order, which is acceptable: the seed only
// needs to be unpredictable, not order-independent.
func FoldSeed(seed, secret []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(seed)
	h.Write(secret)
	return h.Sum(nil)
}

// DrawCandidate derives the drawIndex-th candidate ticket number in
// [0, ticketsSold) from the frozen seed.
func DrawCandidate(seed []byte, drawIndex uint64, ticketsSold int64) int64 {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], drawIndex)

	h := sha3.NewLegacyKeccak256()
	h.Write(seed)
	h.Write(idx[:])
	sum := h.Sum(nil)

	// The top 8 bytes are enough entropy for any realistic ticket count.
	n := binary.BigEndian.Uint64(sum[:8])
	return int64(n % uint64(ticketsSold))
}
