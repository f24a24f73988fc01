// Package clientengine implements the ClientEngine side of spec.md §4.4:
// the outbound signing/commitment/ratchet/seal pipeline, the inbound
// verify/decrypt pipeline, a bounded-retry unacknowledged-send table, and
// the per-session state machine. It is the rchat analogue of the
// teacher's internal/peer package, reshaped from a symmetric mesh client
// into a single relay-facing session client.
package clientengine

import "errors"

// Inbound drop reasons (spec.md §7's Crypto/Validation error kinds). Every
// inbound failure is a silent drop from the perspective of the remote
// sender; these are returned to the caller only for logging/metrics.
var (
	ErrAeadFailure        = errors.New("clientengine: aead open failed")
	ErrSignatureFailure   = errors.New("clientengine: signature verification failed")
	ErrCommitmentMismatch = errors.New("clientengine: commitment mismatch")
	ErrStaleOrFuture      = errors.New("clientengine: timestamp outside freshness window")
	ErrReplayOrReorder    = errors.New("clientengine: sequence number not strictly increasing")
)

// Session/state errors.
var (
	ErrNotInRoom        = errors.New("clientengine: not in a room")
	ErrAlreadyInRoom     = errors.New("clientengine: already in a room")
	ErrNotConnected      = errors.New("clientengine: not connected")
	ErrInvalidTransition = errors.New("clientengine: invalid session state transition")
	ErrSendRetriesExhausted = errors.New("clientengine: send retries exhausted")
)
