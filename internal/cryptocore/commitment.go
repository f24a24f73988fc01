package cryptocore

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

const commitmentContext = "rchat-v3-message-commitment:"

// CommitmentSize is the length in bytes of a message commitment hash.
const CommitmentSize = 32

// Commitment computes message_hash = BLAKE3("rchat-v3-message-commitment:" ||
// username || content || LE64(sequence_number) || LE64(chain_key_index)),
// per spec.md §4.1. Receivers recompute this and compare byte-for-byte
// against the value carried in the payload.
func Commitment(username, content string, sequenceNumber, chainKeyIndex uint64) [CommitmentSize]byte {
	var seqBuf, idxBuf [8]byte
	binary.LittleEndian.PutUint64(seqBuf[:], sequenceNumber)
	binary.LittleEndian.PutUint64(idxBuf[:], chainKeyIndex)

	h := blake3.New()
	h.Write([]byte(commitmentContext))
	h.Write([]byte(username))
	h.Write([]byte(content))
	h.Write(seqBuf[:])
	h.Write(idxBuf[:])

	var out [CommitmentSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// VerifyCommitment recomputes the commitment and compares it against want.
// Comparison is a plain byte equality (subtle.ConstantTimeCompare buys
// nothing here: the commitment is not a secret and is already carried
// alongside the plaintext it covers).
func VerifyCommitment(want [CommitmentSize]byte, username, content string, sequenceNumber, chainKeyIndex uint64) bool {
	got := Commitment(username, content, sequenceNumber, chainKeyIndex)
	return got == want
}
