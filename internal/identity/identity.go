// Package identity manages the Ed25519 signing keypair a client engine uses
// to authenticate messages within a single chat session.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// PublicKeySize is the size of an Ed25519 public key in bytes.
	PublicKeySize = ed25519.PublicKeySize

	// PrivateKeySize is the size of an Ed25519 private key in bytes, as
	// returned by crypto/ed25519 (32-byte seed plus 32-byte public key).
	PrivateKeySize = ed25519.PrivateKeySize

	// SignatureSize is the size of an Ed25519 signature in bytes.
	SignatureSize = ed25519.SignatureSize
)

var (
	// ErrInvalidKeyLength is returned when a public key hex string decodes
	// to the wrong number of bytes.
	ErrInvalidKeyLength = errors.New("invalid public key length: expected 32 bytes")

	// ErrInvalidHexString is returned when a public key string is malformed.
	ErrInvalidHexString = errors.New("invalid hex string for public key")

	// ErrZeroPrivateKey is returned by operations that require a live key
	// after Zero has been called.
	ErrZeroPrivateKey = errors.New("identity key has been zeroed")
)

// IdentityKey is the Ed25519 keypair a ClientEngine generates once at the
// start of a session and uses to sign every outgoing MessagePayload. Unlike
// the relay-facing AgentID a mesh peer persists across restarts, rchat's
// Non-goals exclude persistence: a fresh IdentityKey is generated per
// session and never touches disk.
type IdentityKey struct {
	PublicKey  [PublicKeySize]byte
	PrivateKey [PrivateKeySize]byte
}

// GenerateIdentityKey creates a new random Ed25519 IdentityKey using
// crypto/rand.
func GenerateIdentityKey() (*IdentityKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate identity key: %w", err)
	}

	k := &IdentityKey{}
	copy(k.PublicKey[:], pub)
	copy(k.PrivateKey[:], priv)
	return k, nil
}

// Sign produces an Ed25519 signature over message. The client engine
// passes cryptocore.SignedBytes(content, timestamp, sequence number), so
// the signature covers the plaintext content, timestamp and sequence
// number; it does not cover the chain index or the ciphertext.
func (k *IdentityKey) Sign(message []byte) [SignatureSize]byte {
	sig := ed25519.Sign(ed25519.PrivateKey(k.PrivateKey[:]), message)
	var out [SignatureSize]byte
	copy(out[:], sig)
	return out
}

// Verify checks an Ed25519 signature against a sender's public key. It
// never returns an error: a bad signature is just "false", logged by the
// caller and counted via metrics.SignatureFailures, per spec.md §7 (crypto
// failures are silent drops, not protocol errors sent to the peer).
func Verify(publicKey [PublicKeySize]byte, message []byte, signature [SignatureSize]byte) bool {
	return ed25519.Verify(ed25519.PublicKey(publicKey[:]), message, signature[:])
}

// IsZeroSignature reports whether signature is the all-zero value, used as
// a sentinel for "not yet signed" in partially-built payloads.
func IsZeroSignature(signature [SignatureSize]byte) bool {
	var zero [SignatureSize]byte
	return signature == zero
}

// PublicKeyString returns the full hex encoding of the public key, suitable
// for inclusion in logs. A MessagePayload carries the raw 32-byte key, not
// this hex form.
func (k *IdentityKey) PublicKeyString() string {
	return hex.EncodeToString(k.PublicKey[:])
}

// PublicKeyShortString returns the first 8 hex characters of the public
// key, for terse log lines that still disambiguate participants.
func (k *IdentityKey) PublicKeyShortString() string {
	return hex.EncodeToString(k.PublicKey[:4])
}

// ParsePublicKey decodes a hex-encoded Ed25519 public key, such as the
// output of PublicKeyString.
func ParsePublicKey(s string) ([PublicKeySize]byte, error) {
	var pub [PublicKeySize]byte

	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")

	if len(s) != PublicKeySize*2 {
		return pub, fmt.Errorf("%w: got %d hex chars, expected %d", ErrInvalidKeyLength, len(s), PublicKeySize*2)
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return pub, fmt.Errorf("%w: %v", ErrInvalidHexString, err)
	}
	if len(b) != PublicKeySize {
		return pub, ErrInvalidKeyLength
	}

	copy(pub[:], b)
	return pub, nil
}

// Zero overwrites the private key in place. Call this as soon as a session
// ends; the public key is not secret and is left untouched.
func (k *IdentityKey) Zero() {
	for i := range k.PrivateKey {
		k.PrivateKey[i] = 0
	}
}

// IsZero reports whether the private key has been zeroed (or was never set).
func (k *IdentityKey) IsZero() bool {
	var zero [PrivateKeySize]byte
	return k.PrivateKey == zero
}
