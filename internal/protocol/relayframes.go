package protocol

import "fmt"

// RelayFrame is implemented by every Relay→Client response payload.
type RelayFrame interface {
	Variant() uint32
	encodedSize() int
	encode(buf []byte) int
}

type ChatCreatedFrame struct {
	RoomID [RoomIDSize]byte
	Kind   RoomKind
}

func (f *ChatCreatedFrame) Variant() uint32 { return VariantChatCreated }
func (f *ChatCreatedFrame) encodedSize() int {
	return 8 + RoomIDSize + f.Kind.encodedSize()
}
func (f *ChatCreatedFrame) encode(buf []byte) int {
	offset := putBytes(buf, f.RoomID[:])
	offset += f.Kind.encode(buf[offset:])
	return offset
}

type JoinedChatFrame struct {
	RoomID           [RoomIDSize]byte
	Kind             RoomKind
	ParticipantCount uint64
}

func (f *JoinedChatFrame) Variant() uint32 { return VariantJoinedChat }
func (f *JoinedChatFrame) encodedSize() int {
	return 8 + RoomIDSize + f.Kind.encodedSize() + 8
}
func (f *JoinedChatFrame) encode(buf []byte) int {
	offset := putBytes(buf, f.RoomID[:])
	offset += f.Kind.encode(buf[offset:])
	offset += putU64(buf[offset:], f.ParticipantCount)
	return offset
}

type ErrorFrame struct {
	Message string
}

func (f *ErrorFrame) Variant() uint32      { return VariantError }
func (f *ErrorFrame) encodedSize() int     { return 8 + len(f.Message) }
func (f *ErrorFrame) encode(buf []byte) int {
	return putString(buf, f.Message)
}

type MessageReceivedFrame struct {
	RoomID           [RoomIDSize]byte
	EncryptedPayload []byte
	Timestamp        int64
	MessageID        []byte
}

func (f *MessageReceivedFrame) Variant() uint32 { return VariantMessageReceived }
func (f *MessageReceivedFrame) encodedSize() int {
	return 8 + RoomIDSize + 8 + len(f.EncryptedPayload) + 8 + 8 + len(f.MessageID)
}
func (f *MessageReceivedFrame) encode(buf []byte) int {
	offset := putBytes(buf, f.RoomID[:])
	offset += putBytes(buf[offset:], f.EncryptedPayload)
	offset += putU64(buf[offset:], uint64(f.Timestamp))
	offset += putBytes(buf[offset:], f.MessageID)
	return offset
}

type MessageAckFrame struct {
	MessageID []byte
}

func (f *MessageAckFrame) Variant() uint32  { return VariantMessageAck }
func (f *MessageAckFrame) encodedSize() int { return 8 + len(f.MessageID) }
func (f *MessageAckFrame) encode(buf []byte) int {
	return putBytes(buf, f.MessageID)
}

type UserJoinedFrame struct {
	RoomID   [RoomIDSize]byte
	Username string
}

func (f *UserJoinedFrame) Variant() uint32 { return VariantUserJoined }
func (f *UserJoinedFrame) encodedSize() int {
	return 8 + RoomIDSize + 8 + len(f.Username)
}
func (f *UserJoinedFrame) encode(buf []byte) int {
	offset := putBytes(buf, f.RoomID[:])
	offset += putString(buf[offset:], f.Username)
	return offset
}

type UserLeftFrame struct {
	RoomID   [RoomIDSize]byte
	Username string
}

func (f *UserLeftFrame) Variant() uint32 { return VariantUserLeft }
func (f *UserLeftFrame) encodedSize() int {
	return 8 + RoomIDSize + 8 + len(f.Username)
}
func (f *UserLeftFrame) encode(buf []byte) int {
	offset := putBytes(buf, f.RoomID[:])
	offset += putString(buf[offset:], f.Username)
	return offset
}

// EncodeRelayFrame serializes f with its leading u32 variant tag.
func EncodeRelayFrame(f RelayFrame) []byte {
	buf := make([]byte, 4+f.encodedSize())
	offset := putU32(buf, f.Variant())
	f.encode(buf[offset:])
	return buf
}

// DecodeRelayFrame reads the variant tag from buf and dispatches to the
// matching frame type.
func DecodeRelayFrame(buf []byte) (RelayFrame, error) {
	c := newCursor(buf)
	variant, err := c.readU32()
	if err != nil {
		return nil, fmt.Errorf("relay frame variant: %w", err)
	}

	switch variant {
	case VariantChatCreated:
		return decodeChatCreated(c)
	case VariantJoinedChat:
		return decodeJoinedChat(c)
	case VariantError:
		return decodeError(c)
	case VariantMessageReceived:
		return decodeMessageReceived(c)
	case VariantMessageAck:
		return decodeMessageAck(c)
	case VariantUserJoined:
		return decodeUserJoined(c)
	case VariantUserLeft:
		return decodeUserLeft(c)
	default:
		return nil, fmt.Errorf("%w: relay variant %d", ErrUnknownVariant, variant)
	}
}

func decodeChatCreated(c *cursor) (*ChatCreatedFrame, error) {
	roomID, err := readRoomID(c)
	if err != nil {
		return nil, err
	}
	kind, err := decodeRoomKind(c)
	if err != nil {
		return nil, err
	}
	if !c.exhausted() {
		return nil, fmt.Errorf("%w: trailing bytes after ChatCreated", ErrMalformedFrame)
	}
	return &ChatCreatedFrame{RoomID: roomID, Kind: kind}, nil
}

func decodeJoinedChat(c *cursor) (*JoinedChatFrame, error) {
	roomID, err := readRoomID(c)
	if err != nil {
		return nil, err
	}
	kind, err := decodeRoomKind(c)
	if err != nil {
		return nil, err
	}
	count, err := c.readU64()
	if err != nil {
		return nil, fmt.Errorf("participant_count: %w", err)
	}
	if !c.exhausted() {
		return nil, fmt.Errorf("%w: trailing bytes after JoinedChat", ErrMalformedFrame)
	}
	return &JoinedChatFrame{RoomID: roomID, Kind: kind, ParticipantCount: count}, nil
}

func decodeError(c *cursor) (*ErrorFrame, error) {
	msg, err := c.readString()
	if err != nil {
		return nil, fmt.Errorf("message: %w", err)
	}
	if !c.exhausted() {
		return nil, fmt.Errorf("%w: trailing bytes after Error", ErrMalformedFrame)
	}
	return &ErrorFrame{Message: msg}, nil
}

func decodeMessageReceived(c *cursor) (*MessageReceivedFrame, error) {
	roomID, err := readRoomID(c)
	if err != nil {
		return nil, err
	}
	payload, err := c.readBytes()
	if err != nil {
		return nil, fmt.Errorf("encrypted_payload: %w", err)
	}
	ts, err := c.readI64()
	if err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}
	msgID, err := c.readBytes()
	if err != nil {
		return nil, fmt.Errorf("message_id: %w", err)
	}
	if !c.exhausted() {
		return nil, fmt.Errorf("%w: trailing bytes after MessageReceived", ErrMalformedFrame)
	}
	return &MessageReceivedFrame{
		RoomID:           roomID,
		EncryptedPayload: append([]byte(nil), payload...),
		Timestamp:        ts,
		MessageID:        append([]byte(nil), msgID...),
	}, nil
}

func decodeMessageAck(c *cursor) (*MessageAckFrame, error) {
	msgID, err := c.readBytes()
	if err != nil {
		return nil, fmt.Errorf("message_id: %w", err)
	}
	if !c.exhausted() {
		return nil, fmt.Errorf("%w: trailing bytes after MessageAck", ErrMalformedFrame)
	}
	return &MessageAckFrame{MessageID: append([]byte(nil), msgID...)}, nil
}

func decodeUserJoined(c *cursor) (*UserJoinedFrame, error) {
	roomID, err := readRoomID(c)
	if err != nil {
		return nil, err
	}
	username, err := c.readString()
	if err != nil {
		return nil, fmt.Errorf("username: %w", err)
	}
	if !c.exhausted() {
		return nil, fmt.Errorf("%w: trailing bytes after UserJoined", ErrMalformedFrame)
	}
	return &UserJoinedFrame{RoomID: roomID, Username: username}, nil
}

func decodeUserLeft(c *cursor) (*UserLeftFrame, error) {
	roomID, err := readRoomID(c)
	if err != nil {
		return nil, err
	}
	username, err := c.readString()
	if err != nil {
		return nil, fmt.Errorf("username: %w", err)
	}
	if !c.exhausted() {
		return nil, fmt.Errorf("%w: trailing bytes after UserLeft", ErrMalformedFrame)
	}
	return &UserLeftFrame{RoomID: roomID, Username: username}, nil
}
