package cryptocore

import (
	"encoding/base64"
	"fmt"
	"regexp"

	"golang.org/x/crypto/argon2"
)

var numericCodePattern = regexp.MustCompile(`^[0-9]{6}$`)

// Argon2id parameters for expanding a 6-digit numeric code to a 64-byte
// chat secret, fixed by spec.md §4.1.
const (
	numericExpansionMemoryKiB = 65536
	numericExpansionTime      = 3
	numericExpansionThreads   = 4
	numericExpansionSalt      = "rchat-numeric-salt-v2-extreme"
)

// ChatCode holds both representations of a parsed out-of-band secret: the
// raw bytes used for RoomID derivation (spec.md §3 binds RoomID directly to
// "chat_code", not to the Argon2id-expanded secret — see scenario A, which
// hashes the literal ASCII digits) and the 64-byte "chat secret" used for
// everything downstream of key derivation (spec.md §4.1).
type ChatCode struct {
	raw    []byte
	secret [64]byte
}

// RawBytes returns the bytes RoomID derivation hashes: the 6 ASCII digits
// for a numeric code, or the 64 decoded bytes for a base64 code.
func (c ChatCode) RawBytes() []byte {
	return c.raw
}

// Secret returns the 64-byte chat secret that seeds the root key and the
// ratchet's initial chain key.
func (c ChatCode) Secret() [64]byte {
	return c.secret
}

// Zero overwrites the chat secret. The raw bytes are not secret-sensitive
// on their own (the room ID derived from them is already relay-visible)
// but are cleared too since they are still part of the out-of-band secret.
func (c *ChatCode) Zero() {
	ZeroBytes(c.raw)
	ZeroKey(&c.secret)
}

// ParseChatCode normalizes a user-supplied chat code per spec.md §4.1: a
// 6-digit decimal string is numeric and gets Argon2id-expanded to 64 bytes;
// anything else is attempted as unpadded URL-safe base64 decoding to
// exactly 64 bytes. Both failing, returns ErrInvalidChatCode.
func ParseChatCode(input string) (ChatCode, error) {
	if numericCodePattern.MatchString(input) {
		raw := []byte(input)
		secretBytes := argon2.IDKey(raw, []byte(numericExpansionSalt),
			numericExpansionTime, numericExpansionMemoryKiB, numericExpansionThreads, 64)
		var cc ChatCode
		cc.raw = append([]byte(nil), raw...)
		copy(cc.secret[:], secretBytes)
		ZeroBytes(secretBytes)
		return cc, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err != nil || len(decoded) != 64 {
		return ChatCode{}, fmt.Errorf("%w: not a 6-digit code or 64-byte base64 value", ErrInvalidChatCode)
	}

	var cc ChatCode
	cc.raw = decoded
	copy(cc.secret[:], decoded)
	return cc, nil
}
