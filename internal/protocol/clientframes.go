package protocol

import "fmt"

// RoomIDSize mirrors cryptocore.RoomIDSize (the SHA3-512 room-id digest
// length). Duplicated as a constant rather than imported so the wire
// package has no dependency on the crypto package — protocol encodes
// bytes, it never produces or inspects a room id's meaning.
const RoomIDSize = 64

// ClientFrame is implemented by every Client→Relay request payload.
type ClientFrame interface {
	Variant() uint32
	encodedSize() int
	encode(buf []byte) int
}

type CreateChatFrame struct {
	RoomID   [RoomIDSize]byte
	Kind     RoomKind
	Username string
}

func (f *CreateChatFrame) Variant() uint32 { return VariantCreateChat }

func (f *CreateChatFrame) encodedSize() int {
	return 8 + RoomIDSize + f.Kind.encodedSize() + 8 + len(f.Username)
}

func (f *CreateChatFrame) encode(buf []byte) int {
	offset := putBytes(buf, f.RoomID[:])
	offset += f.Kind.encode(buf[offset:])
	offset += putString(buf[offset:], f.Username)
	return offset
}

type JoinChatFrame struct {
	RoomID   [RoomIDSize]byte
	Username string
}

func (f *JoinChatFrame) Variant() uint32 { return VariantJoinChat }

func (f *JoinChatFrame) encodedSize() int {
	return 8 + RoomIDSize + 8 + len(f.Username)
}

func (f *JoinChatFrame) encode(buf []byte) int {
	offset := putBytes(buf, f.RoomID[:])
	offset += putString(buf[offset:], f.Username)
	return offset
}

type SendMessageFrame struct {
	RoomID           [RoomIDSize]byte
	EncryptedPayload []byte
	MessageID        []byte
}

func (f *SendMessageFrame) Variant() uint32 { return VariantSendMessage }

func (f *SendMessageFrame) encodedSize() int {
	return 8 + RoomIDSize + 8 + len(f.EncryptedPayload) + 8 + len(f.MessageID)
}

func (f *SendMessageFrame) encode(buf []byte) int {
	offset := putBytes(buf, f.RoomID[:])
	offset += putBytes(buf[offset:], f.EncryptedPayload)
	offset += putBytes(buf[offset:], f.MessageID)
	return offset
}

type LeaveChatFrame struct {
	RoomID [RoomIDSize]byte
}

func (f *LeaveChatFrame) Variant() uint32 { return VariantLeaveChat }

func (f *LeaveChatFrame) encodedSize() int {
	return 8 + RoomIDSize
}

func (f *LeaveChatFrame) encode(buf []byte) int {
	return putBytes(buf, f.RoomID[:])
}

// EncodeClientFrame serializes f with its leading u32 variant tag.
func EncodeClientFrame(f ClientFrame) []byte {
	buf := make([]byte, 4+f.encodedSize())
	offset := putU32(buf, f.Variant())
	f.encode(buf[offset:])
	return buf
}

// DecodeClientFrame reads the variant tag from buf and dispatches to the
// matching frame type.
func DecodeClientFrame(buf []byte) (ClientFrame, error) {
	c := newCursor(buf)
	variant, err := c.readU32()
	if err != nil {
		return nil, fmt.Errorf("client frame variant: %w", err)
	}

	switch variant {
	case VariantCreateChat:
		return decodeCreateChat(c)
	case VariantJoinChat:
		return decodeJoinChat(c)
	case VariantSendMessage:
		return decodeSendMessage(c)
	case VariantLeaveChat:
		return decodeLeaveChat(c)
	default:
		return nil, fmt.Errorf("%w: client variant %d", ErrUnknownVariant, variant)
	}
}

func readRoomID(c *cursor) ([RoomIDSize]byte, error) {
	var id [RoomIDSize]byte
	b, err := c.readBytes()
	if err != nil {
		return id, fmt.Errorf("room_id: %w", err)
	}
	if len(b) != RoomIDSize {
		return id, fmt.Errorf("%w: room_id length %d, want %d", ErrMalformedFrame, len(b), RoomIDSize)
	}
	copy(id[:], b)
	return id, nil
}

func decodeCreateChat(c *cursor) (*CreateChatFrame, error) {
	roomID, err := readRoomID(c)
	if err != nil {
		return nil, err
	}
	kind, err := decodeRoomKind(c)
	if err != nil {
		return nil, err
	}
	username, err := c.readString()
	if err != nil {
		return nil, fmt.Errorf("username: %w", err)
	}
	if !c.exhausted() {
		return nil, fmt.Errorf("%w: trailing bytes after CreateChat", ErrMalformedFrame)
	}
	return &CreateChatFrame{RoomID: roomID, Kind: kind, Username: username}, nil
}

func decodeJoinChat(c *cursor) (*JoinChatFrame, error) {
	roomID, err := readRoomID(c)
	if err != nil {
		return nil, err
	}
	username, err := c.readString()
	if err != nil {
		return nil, fmt.Errorf("username: %w", err)
	}
	if !c.exhausted() {
		return nil, fmt.Errorf("%w: trailing bytes after JoinChat", ErrMalformedFrame)
	}
	return &JoinChatFrame{RoomID: roomID, Username: username}, nil
}

func decodeSendMessage(c *cursor) (*SendMessageFrame, error) {
	roomID, err := readRoomID(c)
	if err != nil {
		return nil, err
	}
	payload, err := c.readBytes()
	if err != nil {
		return nil, fmt.Errorf("encrypted_payload: %w", err)
	}
	msgID, err := c.readBytes()
	if err != nil {
		return nil, fmt.Errorf("message_id: %w", err)
	}
	if !c.exhausted() {
		return nil, fmt.Errorf("%w: trailing bytes after SendMessage", ErrMalformedFrame)
	}
	return &SendMessageFrame{
		RoomID:           roomID,
		EncryptedPayload: append([]byte(nil), payload...),
		MessageID:        append([]byte(nil), msgID...),
	}, nil
}

func decodeLeaveChat(c *cursor) (*LeaveChatFrame, error) {
	roomID, err := readRoomID(c)
	if err != nil {
		return nil, err
	}
	if !c.exhausted() {
		return nil, fmt.Errorf("%w: trailing bytes after LeaveChat", ErrMalformedFrame)
	}
	return &LeaveChatFrame{RoomID: roomID}, nil
}
