// Package protocol defines the wire protocol between rchat clients and
// the relay: the MessagePayload plaintext encoding and the framed
// Client→Relay / Relay→Client request-response protocol.
package protocol

// Client→Relay frame variant tags. Stable: part of the wire contract
// (spec.md §4.2).
const (
	VariantCreateChat  uint32 = 0
	VariantJoinChat    uint32 = 1
	VariantSendMessage uint32 = 2
	VariantLeaveChat   uint32 = 3
)

// Relay→Client frame variant tags. Stable: part of the wire contract
// (spec.md §4.2).
const (
	VariantChatCreated     uint32 = 0
	VariantJoinedChat      uint32 = 1
	VariantError           uint32 = 2
	VariantMessageReceived uint32 = 3
	VariantMessageAck      uint32 = 4
	VariantUserJoined      uint32 = 5
	VariantUserLeft        uint32 = 6
)

// RoomKind tags. OneToOne carries no payload; Group carries an
// Option<u64> max_participants.
const (
	RoomKindOneToOne uint32 = 0
	RoomKindGroup    uint32 = 1
)

// DefaultMaxFrameSize is the recommended frame length ceiling from
// spec.md §4.2: implementations must reject frames whose declared length
// exceeds this before allocating a buffer for them.
const DefaultMaxFrameSize uint32 = 1 << 20 // 1 MiB

// DefaultGroupCapacity is the default maximum participant count for a
// Group room when the creator does not request a smaller one, and the
// ceiling Group rooms can never exceed regardless of what is requested
// (spec.md §4.3: "Group=min(requested,8)").
const DefaultGroupCapacity = 8

// OneToOneCapacity is the fixed capacity of a OneToOne room.
const OneToOneCapacity = 2

// ClientVariantName returns a human-readable name for a Client→Relay
// variant tag.
func ClientVariantName(v uint32) string {
	switch v {
	case VariantCreateChat:
		return "CREATE_CHAT"
	case VariantJoinChat:
		return "JOIN_CHAT"
	case VariantSendMessage:
		return "SEND_MESSAGE"
	case VariantLeaveChat:
		return "LEAVE_CHAT"
	default:
		return "UNKNOWN"
	}
}

// RelayVariantName returns a human-readable name for a Relay→Client
// variant tag.
func RelayVariantName(v uint32) string {
	switch v {
	case VariantChatCreated:
		return "CHAT_CREATED"
	case VariantJoinedChat:
		return "JOINED_CHAT"
	case VariantError:
		return "ERROR"
	case VariantMessageReceived:
		return "MESSAGE_RECEIVED"
	case VariantMessageAck:
		return "MESSAGE_ACK"
	case VariantUserJoined:
		return "USER_JOINED"
	case VariantUserLeft:
		return "USER_LEFT"
	default:
		return "UNKNOWN"
	}
}
