// Package relay implements the rchat relay: a process-wide room
// registry that accepts framed Client→Relay requests and fans out
// opaque encrypted payloads to other room participants. The relay
// never sees plaintext, keys, or chat codes — only the bytes
// CryptoCore already sealed (spec.md §2, §4.3).
package relay

import "errors"

// Business errors reported to clients via an ErrorFrame. The connection
// stays open after these (spec.md §7: "Room errors are returned as
// Error frames and the session continues").
var (
	ErrRoomExists    = errors.New("relay: room already exists")
	ErrRoomNotFound  = errors.New("relay: room not found")
	ErrRoomFull      = errors.New("relay: room full")
	ErrUsernameTaken = errors.New("relay: username taken")
	ErrNotInRoom     = errors.New("relay: sender not in a room")
)
