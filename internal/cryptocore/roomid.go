package cryptocore

import (
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"
)

const roomIDInnerPrefix = "rchat-room-id-v2:"
const roomIDOuterPrefix = "rchat-double-hash:"

// RoomIDSize is the length in bytes of a derived room identifier.
const RoomIDSize = 64

// DeriveRoomID computes the wire-visible room routing token from the raw
// chat-code bytes: SHA3-512("rchat-double-hash:" || BLAKE3("rchat-room-id-v2:" || chat_code)).
// Per spec.md §9, this double-hash form is the only one observable by
// clients; any further relay-side hashing is a local indexing decision.
func DeriveRoomID(chatCodeBytes []byte) [RoomIDSize]byte {
	inner := blake3.New()
	inner.Write([]byte(roomIDInnerPrefix))
	inner.Write(chatCodeBytes)
	innerSum := inner.Sum(nil)

	outer := sha3.New512()
	outer.Write([]byte(roomIDOuterPrefix))
	outer.Write(innerSum)

	var roomID [RoomIDSize]byte
	copy(roomID[:], outer.Sum(nil))
	return roomID
}
