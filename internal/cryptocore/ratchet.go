package cryptocore

import (
	"encoding/binary"
	"fmt"

	"github.com/zeebo/blake3"
)

const ratchetContext = "rchat-chain-ratchet:"

// DefaultMaxSkip bounds how far a ChainMirror will step forward to catch up
// to a received chain_key_index in one call. spec.md §4.1 allows "bounded
// forward skipping" without naming a bound; an unbounded skip would let an
// attacker-supplied index force unbounded BLAKE3 work, so rchat fixes one
// here (see SPEC_FULL.md §C.2).
const DefaultMaxSkip = 1 << 16

// StepRatchet advances the chain ratchet one step: spec.md §4.1 defines
// both the per-message key k_i and the next chain state K_{i+1} by the
// identical formula BLAKE3("rchat-chain-ratchet:" || K_i || LE64(i)), so a
// single call returns the value that serves as both.
func StepRatchet(current [32]byte, index uint64) [32]byte {
	var idxBuf [8]byte
	binary.LittleEndian.PutUint64(idxBuf[:], index)

	h := blake3.New()
	h.Write([]byte(ratchetContext))
	h.Write(current[:])
	h.Write(idxBuf[:])

	var next [32]byte
	copy(next[:], h.Sum(nil))
	return next
}

// ChainMirror tracks one sender's ratchet state as observed by a receiver:
// the chain key last derived and the index it corresponds to. It is keyed
// by sender_public_key at the ClientEngine layer (one ChainMirror per
// remote participant); this type itself only holds the per-sender state.
type ChainMirror struct {
	chainKey   [32]byte
	index      uint64
	hasAdvanced bool
	maxSkip    uint64
}

// NewChainMirror creates a ChainMirror seeded at the ratchet's initial
// chain key K_0, ready to step forward to whatever index the first
// inbound message carries.
func NewChainMirror(k0 [32]byte) *ChainMirror {
	return &ChainMirror{chainKey: k0, maxSkip: DefaultMaxSkip}
}

// WithMaxSkip overrides the default bounded-skip distance.
func (m *ChainMirror) WithMaxSkip(n uint64) *ChainMirror {
	m.maxSkip = n
	return m
}

// NextIndex returns the lowest chain_key_index this mirror will still
// accept: 0 if it has never advanced, or one past the last index it
// committed to otherwise.
func (m *ChainMirror) NextIndex() uint64 {
	if !m.hasAdvanced {
		return 0
	}
	return m.index + 1
}

// MaxSkip returns the mirror's configured bounded-skip distance.
func (m *ChainMirror) MaxSkip() uint64 {
	return m.maxSkip
}

// KeyForIndex returns the per-message key for chain_key_index, stepping
// the mirror forward as needed. index must be strictly greater than the
// last index this mirror advanced to (spec.md §4.4 inbound pipeline step
// 8's ordering check is enforced by the caller using sequence_number, not
// chain_key_index; this method only enforces the ratchet's own forward-only
// constraint and the skip bound).
func (m *ChainMirror) KeyForIndex(index uint64) ([32]byte, error) {
	if m.hasAdvanced && index <= m.index {
		return [32]byte{}, fmt.Errorf("cryptocore: chain_key_index %d not greater than last seen %d", index, m.index)
	}

	start := uint64(0)
	if m.hasAdvanced {
		start = m.index + 1
	}

	skip := index - start
	if skip > m.maxSkip {
		return [32]byte{}, fmt.Errorf("cryptocore: chain_key_index %d exceeds max skip-ahead of %d", index, m.maxSkip)
	}

	key := m.chainKey
	for i := start; i <= index; i++ {
		key = StepRatchet(key, i)
	}

	ZeroKey(&m.chainKey)
	m.chainKey = key
	m.index = index
	m.hasAdvanced = true

	return key, nil
}

// PeekKeyForIndex computes the key for index the same way KeyForIndex
// does, without committing the mirror's state. chain_key_index is only
// discoverable after a sealed MessagePayload has actually been opened
// (spec.md §4.2 carries it inside the encrypted payload, not on the
// wire), so a receiver must try candidate indices forward from the last
// committed one and open against each candidate key before knowing which
// one to keep; committing on every failed guess would corrupt the
// mirror. Call Commit with whichever (index, key) pair succeeds.
func (m *ChainMirror) PeekKeyForIndex(index uint64) ([32]byte, error) {
	if m.hasAdvanced && index <= m.index {
		return [32]byte{}, fmt.Errorf("cryptocore: chain_key_index %d not greater than last seen %d", index, m.index)
	}

	start := uint64(0)
	if m.hasAdvanced {
		start = m.index + 1
	}

	skip := index - start
	if skip > m.maxSkip {
		return [32]byte{}, fmt.Errorf("cryptocore: chain_key_index %d exceeds max skip-ahead of %d", index, m.maxSkip)
	}

	key := m.chainKey
	for i := start; i <= index; i++ {
		key = StepRatchet(key, i)
	}
	return key, nil
}

// Commit advances the mirror to index using key, previously obtained
// from PeekKeyForIndex(index) and confirmed to work by the caller (an
// AEAD-open succeeding under it).
func (m *ChainMirror) Commit(index uint64, key [32]byte) {
	ZeroKey(&m.chainKey)
	m.chainKey = key
	m.index = index
	m.hasAdvanced = true
}

// Zero overwrites the mirror's chain key.
func (m *ChainMirror) Zero() {
	ZeroKey(&m.chainKey)
}

// SenderRatchet is the sender-side counterpart: it holds the next chain key
// to use and hands out successive per-message keys for outgoing messages.
type SenderRatchet struct {
	chainKey [32]byte
	index    uint64
}

// NewSenderRatchet creates a SenderRatchet starting at K_0 with the first
// outbound index at 0.
func NewSenderRatchet(k0 [32]byte) *SenderRatchet {
	return &SenderRatchet{chainKey: k0, index: 0}
}

// Next returns the message key and chain_key_index for the next outbound
// message, then advances the ratchet. The caller must zero the returned
// key after use (it is also the ratchet's next internal state, so this
// method keeps its own copy alive but the caller's copy is theirs to
// retire).
func (r *SenderRatchet) Next() (key [32]byte, index uint64) {
	index = r.index
	key = StepRatchet(r.chainKey, index)

	ZeroKey(&r.chainKey)
	r.chainKey = key
	r.index++

	return key, index
}

// Zero overwrites the ratchet's current chain key.
func (r *SenderRatchet) Zero() {
	ZeroKey(&r.chainKey)
}
