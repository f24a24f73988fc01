package cryptocore

import (
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for deriving the encryption root key and the
// ratchet's initial chain key, fixed by spec.md §4.1. Both use the same
// cost parameters; only the salt differs.
const (
	rootKeyMemoryKiB = 131072
	rootKeyTime      = 4
	rootKeyThreads   = 8

	chainInitSalt = "chain-key-init"
	rootSaltInfo  = "rchat-e2ee-v2-salt:"
)

// DeriveRootKeySalt computes salt = BLAKE3("rchat-e2ee-v2-salt:" || secret)
// truncated to 32 bytes (BLAKE3's default digest is already 32 bytes, so
// this is the full digest).
func DeriveRootKeySalt(secret [64]byte) [32]byte {
	h := blake3.New()
	h.Write([]byte(rootSaltInfo))
	h.Write(secret[:])
	var salt [32]byte
	copy(salt[:], h.Sum(nil))
	return salt
}

// DeriveRootKey computes K = Argon2id(password=secret, salt=DeriveRootKeySalt(secret), m=131072, t=4, p=8, outlen=32).
func DeriveRootKey(secret [64]byte) [32]byte {
	salt := DeriveRootKeySalt(secret)
	key := argon2.IDKey(secret[:], salt[:], rootKeyTime, rootKeyMemoryKiB, rootKeyThreads, 32)
	var rootKey [32]byte
	copy(rootKey[:], key)
	ZeroBytes(key)
	return rootKey
}

// DeriveChainInit computes K_0 = Argon2id(password=secret, salt="chain-key-init", m=131072, t=4, p=8, outlen=32),
// the ratchet's starting chain key.
func DeriveChainInit(secret [64]byte) [32]byte {
	key := argon2.IDKey(secret[:], []byte(chainInitSalt), rootKeyTime, rootKeyMemoryKiB, rootKeyThreads, 32)
	var k0 [32]byte
	copy(k0[:], key)
	ZeroBytes(key)
	return k0
}
