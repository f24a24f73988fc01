package clientengine

import (
	"sync"

	"github.com/rchat-io/rchat/internal/cryptocore"
)

// bruteForceWindow bounds how many forward indices are tried per candidate
// sender when the sealed payload's sender is not yet known (see open
// below). It is deliberately much smaller than cryptocore.DefaultMaxSkip:
// that constant bounds a single already-identified sender's catch-up
// distance, while this one is paid once per candidate during sender
// discovery and multiplies with the number of known senders.
const bruteForceWindow = 64

// senderState is the per-(sender_public_key) ratchet bookkeeping spec.md
// §9 calls for: "a per-(sender_public_key) mapping carrying (last_seq,
// current_chain_key, current_index), encapsulated behind an
// advance-and-derive operation." lastSeq starts at -1 so a first message
// with sequence_number 0 still satisfies "strictly greater than the last
// accepted".
type senderState struct {
	mirror  *cryptocore.ChainMirror
	lastSeq int64
}

// ratchetStore holds one ChainMirror and replay cursor per remote sender
// a session has seen, keyed by the sender's Ed25519 public key. It is the
// inbound counterpart of the single outbound cryptocore.SenderRatchet a
// session keeps for its own messages.
type ratchetStore struct {
	chainInit [32]byte
	maxSkip   uint64

	mu      sync.Mutex
	senders map[[32]byte]*senderState
}

func newRatchetStore(chainInit [32]byte, maxSkip uint64) *ratchetStore {
	return &ratchetStore{
		chainInit: chainInit,
		maxSkip:   maxSkip,
		senders:   make(map[[32]byte]*senderState),
	}
}

// openResult carries the one winning candidate's ratchet position out of
// open, so the caller can commit it to the actual sender's mirror once
// the decoded payload reveals who sent it and the signature/commitment
// checks have authenticated that claim (see advance).
type openResult struct {
	plaintext []byte
	index     uint64
	key       [32]byte
}

// open AEAD-opens sealed against the room's ratchet. It does not yet know
// the message's sender: MessageReceivedFrame carries no cleartext sender
// identity, and sender_public_key only becomes known once the payload
// inside sealed has actually been decrypted (spec.md §4.4 groups "derive
// chain key" and "AEAD-open" as steps 2-3, before "decode payload" in
// step 4, but the wire has nothing to key step 2's lookup on except
// trial). All participants derive the same K_0 from the shared chat code
// (spec.md §4.1), so every sender's ratchet starts identically and only
// diverges by how many messages that sender has since sent; this method
// tries every already-known sender's next bruteForceWindow indices, plus
// a never-seen-sender candidate starting at index 0, and keeps whichever
// trial's AEAD-open succeeds first.
//
// Candidates are tried with ChainMirror.PeekKeyForIndex, which does not
// mutate mirror state, so open never commits anything itself: every
// sender in the room derives from the same shared chain_init (spec.md
// §4.1), so anyone holding the chat code can compute the key for any
// forward index of any sender's chain without forging that sender's
// signature. Committing a trial's index to the claimed sender's mirror
// before the signature/commitment checks run would let a forged message
// that merely opens against the wrong candidate's window permanently
// skip that sender's mirror past indices it hasn't actually used yet,
// breaking its later genuine low-index messages. The caller commits the
// winning (index, key) via advance only once the payload has actually
// been authenticated.
func (rs *ratchetStore) open(sealed []byte) (*openResult, error) {
	rs.mu.Lock()
	mirrors := make([]*cryptocore.ChainMirror, 0, len(rs.senders)+1)
	for _, st := range rs.senders {
		mirrors = append(mirrors, st.mirror)
	}
	rs.mu.Unlock()
	mirrors = append(mirrors, cryptocore.NewChainMirror(rs.chainInit).WithMaxSkip(rs.maxSkip))

	for _, mirror := range mirrors {
		start := mirror.NextIndex()
		window := mirror.MaxSkip()
		if window > bruteForceWindow {
			window = bruteForceWindow
		}
		for idx := start; idx < start+window; idx++ {
			key, perr := mirror.PeekKeyForIndex(idx)
			if perr != nil {
				break
			}
			opened, oerr := cryptocore.Open(key, sealed)
			if oerr != nil {
				cryptocore.ZeroKey(&key)
				continue
			}
			return &openResult{plaintext: opened, index: idx, key: key}, nil
		}
	}
	return nil, cryptocore.ErrAeadOpenFailure
}

// advance commits open's winning (index, key) to sender's chain mirror,
// called only once the signature and commitment checks have authenticated
// the decoded payload as genuinely from sender (spec.md §4.4 steps 2-3
// logically advance the ratchet on decryption, but open can't yet trust
// which sender a trial belongs to; see open's doc comment). A never-seen
// sender gets a fresh mirror registered at this index; an already-known
// sender's mirror is committed forward to it.
func (rs *ratchetStore) advance(sender [32]byte, res *openResult) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if st, exists := rs.senders[sender]; exists {
		st.mirror.Commit(res.index, res.key)
		return
	}
	mirror := cryptocore.NewChainMirror(rs.chainInit).WithMaxSkip(rs.maxSkip)
	mirror.Commit(res.index, res.key)
	rs.senders[sender] = &senderState{mirror: mirror, lastSeq: -1}
}

// lastSeqFor returns the last accepted sequence number for sender, or -1
// if none has been accepted yet.
func (rs *ratchetStore) lastSeqFor(sender [32]byte) int64 {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if st, exists := rs.senders[sender]; exists {
		return st.lastSeq
	}
	return -1
}

// commit records sequenceNumber as the last accepted for sender, called
// only once every remaining verification step has also succeeded.
func (rs *ratchetStore) commit(sender [32]byte, sequenceNumber uint64) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if st, exists := rs.senders[sender]; exists {
		st.lastSeq = int64(sequenceNumber)
	}
}

// zero overwrites every sender's chain key, called on session teardown.
func (rs *ratchetStore) zero() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, st := range rs.senders {
		st.mirror.Zero()
	}
}
