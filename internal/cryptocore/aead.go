package cryptocore

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// NonceSize is the size of the XChaCha20-Poly1305 nonce in bytes.
const NonceSize = chacha20poly1305.NonceSizeX

// Seal encrypts plaintext under key using XChaCha20-Poly1305 with a fresh
// random 24-byte nonce, per spec.md §4.1. Output layout is
// nonce || ciphertext_with_tag, matching the Ciphertext type in spec.md §3.
// Associated data is empty: payload integrity is carried by the payload's
// own signature and commitment, not AEAD additional data.
func Seal(key [32]byte, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAeadSealFailure, err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNonceGenerationFailure, err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)
	out := make([]byte, 0, NonceSize+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// Open splits sealed into its nonce and ciphertext-with-tag and decrypts
// with key. Input shorter than a nonce is reported as
// ErrCiphertextTooShort. Any other failure — wrong key, flipped bit
// anywhere in nonce, ciphertext, or tag — is reported as
// ErrAeadOpenFailure, never as a more specific error, so callers cannot
// distinguish "wrong key" from "tampered ciphertext" (spec.md §7: crypto
// failures are silent drops).
func Open(key [32]byte, sealed []byte) ([]byte, error) {
	if len(sealed) < NonceSize {
		return nil, ErrCiphertextTooShort
	}

	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAeadOpenFailure, err)
	}

	nonce := sealed[:NonceSize]
	ciphertext := sealed[NonceSize:]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAeadOpenFailure
	}
	return plaintext, nil
}
