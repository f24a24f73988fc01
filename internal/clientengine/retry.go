package clientengine

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// BackoffConfig parameterizes exponential backoff with jitter, grounded
// on the teacher's internal/peer/reconnect.go ReconnectConfig/
// BackoffCalculator shape (spec.md §4.4 step 6: "bounded attempts"; §7:
// "client engine retries pending sends on reconnect up to a bounded
// number of attempts"). The retry table reads only MaxAttempts; Resend
// applies no delay. cmd/rchat-client's reconnect loop computes its delays
// from config.BackoffSection with the same formula as delayForAttempt.
type BackoffConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxAttempts  int
	Jitter       float64
}

// DefaultBackoffConfig mirrors the teacher's DefaultReconnectConfig,
// bounded to a finite attempt count since rchat has no persistence to
// fall back on indefinitely.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
		Jitter:       0.2,
	}
}

// delayForAttempt returns the backoff delay before retry number attempt
// (0-indexed), with jitter applied.
func (c BackoffConfig) delayForAttempt(attempt int) time.Duration {
	base := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt))
	if base > float64(c.MaxDelay) {
		base = float64(c.MaxDelay)
	}
	if c.Jitter <= 0 {
		return time.Duration(base)
	}
	jitterRange := base * c.Jitter
	jitter := (rand.Float64() - 0.5) * 2 * jitterRange
	d := time.Duration(base + jitter)
	if d < 0 {
		d = time.Duration(base)
	}
	return d
}

// pendingSend is one unacknowledged outbound message, retained so it can
// be re-sent verbatim (spec.md §4.4 step 6: the retry table holds
// "(message_id, plaintext)", never a pre-sealed ciphertext, since
// resending must re-run the full pipeline rather than replay a stale
// ratchet-keyed seal).
type pendingSend struct {
	messageID [messageIDSize]byte
	username  string
	content   string
	attempts  int
}

// retryTable tracks outbound messages awaiting a MessageAck, keyed by
// the hex-free raw message_id bytes.
type retryTable struct {
	cfg BackoffConfig

	mu      sync.Mutex
	pending map[[messageIDSize]byte]*pendingSend
}

func newRetryTable(cfg BackoffConfig) *retryTable {
	return &retryTable{cfg: cfg, pending: make(map[[messageIDSize]byte]*pendingSend)}
}

func (t *retryTable) add(messageID [messageIDSize]byte, username, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[messageID] = &pendingSend{messageID: messageID, username: username, content: content}
}

// ack removes messageID from the table, called on MessageAck.
func (t *retryTable) ack(messageID []byte) {
	if len(messageID) != messageIDSize {
		return
	}
	var id [messageIDSize]byte
	copy(id[:], messageID)

	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, id)
}

// snapshot returns every still-pending send, for resend after a
// reconnect. It does not mutate attempt counters; callers call
// recordAttempt for whichever sends they actually resend.
func (t *retryTable) snapshot() []*pendingSend {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*pendingSend, 0, len(t.pending))
	for _, p := range t.pending {
		out = append(out, p)
	}
	return out
}

// recordAttempt increments a pending send's attempt counter and reports
// whether it has exhausted cfg.MaxAttempts. An exhausted send is removed
// from the table; the caller reports it to the UI as an Event with
// SendFailed set.
func (t *retryTable) recordAttempt(messageID [messageIDSize]byte) (exhausted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, exists := t.pending[messageID]
	if !exists {
		return false
	}
	p.attempts++
	if t.cfg.MaxAttempts > 0 && p.attempts >= t.cfg.MaxAttempts {
		delete(t.pending, messageID)
		return true
	}
	return false
}

// replace re-keys a still-pending entry from oldID to newID, carrying
// over its attempt count, once a resend has produced a freshly sealed
// lineage for it. The outbound pipeline always advances the ratchet and
// mints a new random message_id (spec.md §4.4 step 6), so without this
// the old entry would linger forever (only recordAttempt's exhaustion
// path removes anything) while a second, independent entry piled up
// beside it every resend pass, growing the table and the number of
// on-wire lineages without bound instead of capping them at
// MaxAttempts. replace reports false if oldID is no longer pending
// (already acked, or exhausted by a concurrent recordAttempt), in which
// case the caller must not start tracking the new lineage either: the
// original send is no longer outstanding.
func (t *retryTable) replace(oldID, newID [messageIDSize]byte, username, content string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	old, exists := t.pending[oldID]
	if !exists {
		return false
	}
	delete(t.pending, oldID)
	t.pending[newID] = &pendingSend{messageID: newID, username: username, content: content, attempts: old.attempts}
	return true
}

func (t *retryTable) delayForAttempt(attempt int) time.Duration {
	return t.cfg.delayForAttempt(attempt)
}
