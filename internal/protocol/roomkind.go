package protocol

import "fmt"

// RoomKind is the Option<u64>-carrying discriminated union the Create
// Chat request and the ChatCreated/JoinedChat responses use to describe
// a room's capacity policy (spec.md §4.2, §4.3).
type RoomKind struct {
	Kind uint32
	// MaxParticipants is only meaningful when Kind == RoomKindGroup. A
	// nil value asks the relay to use DefaultGroupCapacity; otherwise
	// the relay applies min(*MaxParticipants, DefaultGroupCapacity).
	MaxParticipants *uint64
}

func OneToOne() RoomKind {
	return RoomKind{Kind: RoomKindOneToOne}
}

func Group(maxParticipants *uint64) RoomKind {
	return RoomKind{Kind: RoomKindGroup, MaxParticipants: maxParticipants}
}

func (k RoomKind) encodedSize() int {
	if k.Kind == RoomKindGroup {
		return 4 + optionU64Size(k.MaxParticipants)
	}
	return 4
}

func (k RoomKind) encode(buf []byte) int {
	offset := putU32(buf, k.Kind)
	if k.Kind == RoomKindGroup {
		offset += putOptionU64(buf[offset:], k.MaxParticipants)
	}
	return offset
}

func decodeRoomKind(c *cursor) (RoomKind, error) {
	kind, err := c.readU32()
	if err != nil {
		return RoomKind{}, fmt.Errorf("room_kind: %w", err)
	}
	switch kind {
	case RoomKindOneToOne:
		return RoomKind{Kind: kind}, nil
	case RoomKindGroup:
		max, err := c.readOptionU64()
		if err != nil {
			return RoomKind{}, fmt.Errorf("room_kind.max_participants: %w", err)
		}
		return RoomKind{Kind: kind, MaxParticipants: max}, nil
	default:
		return RoomKind{}, fmt.Errorf("%w: room kind %d", ErrMalformedFrame, kind)
	}
}

// Capacity returns the effective participant ceiling this RoomKind
// implies, applying the OneToOne fixed cap and the Group
// min(requested, DefaultGroupCapacity) rule.
func (k RoomKind) Capacity() uint64 {
	if k.Kind == RoomKindOneToOne {
		return OneToOneCapacity
	}
	if k.MaxParticipants == nil || *k.MaxParticipants > DefaultGroupCapacity {
		return DefaultGroupCapacity
	}
	return *k.MaxParticipants
}
