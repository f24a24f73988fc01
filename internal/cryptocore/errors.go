package cryptocore

import "errors"

// Failure modes per spec.md §4.1 / §7. Crypto failures on an inbound
// message are never surfaced to the peer; callers log them, increment the
// matching metrics counter, and silently drop the message.
var (
	ErrInvalidChatCode      = errors.New("cryptocore: invalid chat code")
	ErrKdfFailure           = errors.New("cryptocore: key derivation failed")
	ErrNonceGenerationFailure = errors.New("cryptocore: nonce generation failed")
	ErrAeadSealFailure      = errors.New("cryptocore: aead seal failed")
	ErrAeadOpenFailure      = errors.New("cryptocore: aead open failed")
	ErrSignatureFailure     = errors.New("cryptocore: signature verification failed")
	ErrCommitmentMismatch   = errors.New("cryptocore: commitment mismatch")
	ErrCiphertextTooShort   = errors.New("cryptocore: ciphertext shorter than nonce")
)
