package relay

import (
	"golang.org/x/text/unicode/norm"

	"github.com/rchat-io/rchat/internal/protocol"
)

// roomID is the wire-format room identifier: the 64-byte double hash
// from cryptocore.DeriveRoomID, used here only as an opaque map key.
type roomID = [protocol.RoomIDSize]byte

// participant is one connection's membership in a room.
type participant struct {
	username   string // as sent by the client, used in UserJoined/UserLeft
	normalized string // NFC-normalized, used for uniqueness comparisons only
	conn       *Connection
}

// room is a single chat room: its capacity policy and its
// ordered-by-join participant list. Every mutation happens under the
// owning Manager's lock; room itself holds no lock (spec.md §4.3:
// "All mutation is serialized per room" — the Manager is the
// serialization point, per §5's "registry lookup + participant-list
// mutation" short critical section).
type room struct {
	id           roomID
	kind         protocol.RoomKind
	capacity     uint64
	participants []*participant
}

func newRoom(id roomID, kind protocol.RoomKind) *room {
	return &room{
		id:       id,
		kind:     kind,
		capacity: kind.Capacity(),
	}
}

func (r *room) full() bool {
	return uint64(len(r.participants)) >= r.capacity
}

func (r *room) usernameTaken(normalized string) bool {
	for _, p := range r.participants {
		if p.normalized == normalized {
			return true
		}
	}
	return false
}

func (r *room) add(p *participant) {
	r.participants = append(r.participants, p)
}

// remove deletes the participant belonging to c, if any, and returns it
// along with whatever participants remain.
func (r *room) remove(c *Connection) (*participant, bool) {
	for i, p := range r.participants {
		if p.conn == c {
			r.participants = append(r.participants[:i], r.participants[i+1:]...)
			return p, true
		}
	}
	return nil, false
}

// othersExcept returns every participant other than c, as a snapshot
// safe to use after the Manager's lock is released.
func (r *room) othersExcept(c *Connection) []*participant {
	others := make([]*participant, 0, len(r.participants))
	for _, p := range r.participants {
		if p.conn != c {
			others = append(others, p)
		}
	}
	return others
}

// normalizeUsername applies NFC normalization so visually identical
// usernames typed with different Unicode composition cannot collide or
// bypass uniqueness checks. This is a relay-local indexing decision;
// the wire-visible username is always the caller's original string.
func normalizeUsername(username string) string {
	return norm.NFC.String(username)
}
