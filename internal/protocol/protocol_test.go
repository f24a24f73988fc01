package protocol

import (
	"bytes"
	"io"
	"testing"
)

func TestClientVariantName(t *testing.T) {
	tests := []struct {
		variant uint32
		want    string
	}{
		{VariantCreateChat, "CREATE_CHAT"},
		{VariantJoinChat, "JOIN_CHAT"},
		{VariantSendMessage, "SEND_MESSAGE"},
		{VariantLeaveChat, "LEAVE_CHAT"},
		{999, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := ClientVariantName(tt.variant); got != tt.want {
			t.Errorf("ClientVariantName(%d) = %s, want %s", tt.variant, got, tt.want)
		}
	}
}

func TestRelayVariantName(t *testing.T) {
	tests := []struct {
		variant uint32
		want    string
	}{
		{VariantChatCreated, "CHAT_CREATED"},
		{VariantJoinedChat, "JOINED_CHAT"},
		{VariantError, "ERROR"},
		{VariantMessageReceived, "MESSAGE_RECEIVED"},
		{VariantMessageAck, "MESSAGE_ACK"},
		{VariantUserJoined, "USER_JOINED"},
		{VariantUserLeft, "USER_LEFT"},
		{999, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := RelayVariantName(tt.variant); got != tt.want {
			t.Errorf("RelayVariantName(%d) = %s, want %s", tt.variant, got, tt.want)
		}
	}
}

func sampleRoomID(b byte) [RoomIDSize]byte {
	var id [RoomIDSize]byte
	for i := range id {
		id[i] = b
	}
	return id
}

func TestMessagePayload_RoundTrip(t *testing.T) {
	p := &MessagePayload{
		Username:       "alice",
		Content:        "hello, group",
		Timestamp:      1699999999,
		SequenceNumber: 42,
		ChainKeyIndex:  7,
	}
	for i := range p.SenderPubKey {
		p.SenderPubKey[i] = byte(i)
	}
	for i := range p.Signature {
		p.Signature[i] = byte(i + 1)
	}
	for i := range p.MessageHash {
		p.MessageHash[i] = byte(i + 2)
	}

	encoded := p.Encode()
	decoded, err := DecodePayload(encoded)
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}

	if decoded.Username != p.Username || decoded.Content != p.Content ||
		decoded.Timestamp != p.Timestamp || decoded.SequenceNumber != p.SequenceNumber ||
		decoded.ChainKeyIndex != p.ChainKeyIndex ||
		decoded.SenderPubKey != p.SenderPubKey || decoded.Signature != p.Signature ||
		decoded.MessageHash != p.MessageHash {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, p)
	}
}

func TestMessagePayload_EmptyStrings(t *testing.T) {
	p := &MessagePayload{}
	encoded := p.Encode()
	decoded, err := DecodePayload(encoded)
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if decoded.Username != "" || decoded.Content != "" {
		t.Errorf("expected empty strings, got %+v", decoded)
	}
}

func TestDecodePayload_TruncatedFails(t *testing.T) {
	p := &MessagePayload{Username: "bob", Content: "hi"}
	encoded := p.Encode()
	if _, err := DecodePayload(encoded[:len(encoded)-5]); err == nil {
		t.Error("expected error decoding truncated payload")
	}
}

func TestDecodePayload_WrongFixedLengthFails(t *testing.T) {
	p := &MessagePayload{Username: "bob", Content: "hi"}
	encoded := p.Encode()
	// Corrupt the pubkey length prefix that immediately follows
	// username/content/timestamp/sequence_number (8+3 + 8+2 + 8 + 8 = 37).
	offset := 8 + len("bob") + 8 + len("hi") + 8 + 8
	encoded[offset] = 99
	if _, err := DecodePayload(encoded); err == nil {
		t.Error("expected error decoding payload with corrupted pubkey length")
	}
}

func TestClientFrames_RoundTrip(t *testing.T) {
	max := uint64(4)
	cases := []ClientFrame{
		&CreateChatFrame{RoomID: sampleRoomID(1), Kind: Group(&max), Username: "alice"},
		&CreateChatFrame{RoomID: sampleRoomID(2), Kind: OneToOne(), Username: "bob"},
		&JoinChatFrame{RoomID: sampleRoomID(3), Username: "carol"},
		&SendMessageFrame{RoomID: sampleRoomID(4), EncryptedPayload: []byte{1, 2, 3, 4}, MessageID: []byte{9, 9}},
		&LeaveChatFrame{RoomID: sampleRoomID(5)},
	}

	for _, f := range cases {
		encoded := EncodeClientFrame(f)
		decoded, err := DecodeClientFrame(encoded)
		if err != nil {
			t.Fatalf("DecodeClientFrame(%T) error = %v", f, err)
		}
		if decoded.Variant() != f.Variant() {
			t.Errorf("variant mismatch for %T: got %d, want %d", f, decoded.Variant(), f.Variant())
		}
		reEncoded := EncodeClientFrame(decoded)
		if !bytes.Equal(reEncoded, encoded) {
			t.Errorf("re-encode mismatch for %T", f)
		}
	}
}

func TestRelayFrames_RoundTrip(t *testing.T) {
	max := uint64(3)
	cases := []RelayFrame{
		&ChatCreatedFrame{RoomID: sampleRoomID(1), Kind: Group(&max)},
		&ChatCreatedFrame{RoomID: sampleRoomID(2), Kind: OneToOne()},
		&JoinedChatFrame{RoomID: sampleRoomID(3), Kind: OneToOne(), ParticipantCount: 2},
		&ErrorFrame{Message: "room full"},
		&MessageReceivedFrame{RoomID: sampleRoomID(4), EncryptedPayload: []byte{5, 6, 7}, Timestamp: 123456, MessageID: []byte{1}},
		&MessageAckFrame{MessageID: []byte{2, 2}},
		&UserJoinedFrame{RoomID: sampleRoomID(5), Username: "dave"},
		&UserLeftFrame{RoomID: sampleRoomID(6), Username: "erin"},
	}

	for _, f := range cases {
		encoded := EncodeRelayFrame(f)
		decoded, err := DecodeRelayFrame(encoded)
		if err != nil {
			t.Fatalf("DecodeRelayFrame(%T) error = %v", f, err)
		}
		if decoded.Variant() != f.Variant() {
			t.Errorf("variant mismatch for %T: got %d, want %d", f, decoded.Variant(), f.Variant())
		}
		reEncoded := EncodeRelayFrame(decoded)
		if !bytes.Equal(reEncoded, encoded) {
			t.Errorf("re-encode mismatch for %T", f)
		}
	}
}

func TestDecodeClientFrame_UnknownVariant(t *testing.T) {
	buf := make([]byte, 4)
	buf[0] = 0xFF
	if _, err := DecodeClientFrame(buf); err == nil {
		t.Error("expected error for unknown client variant")
	}
}

func TestDecodeRelayFrame_UnknownVariant(t *testing.T) {
	buf := make([]byte, 4)
	buf[0] = 0xFF
	if _, err := DecodeRelayFrame(buf); err == nil {
		t.Error("expected error for unknown relay variant")
	}
}

func TestDecodeClientFrame_TrailingBytesRejected(t *testing.T) {
	f := &LeaveChatFrame{RoomID: sampleRoomID(1)}
	encoded := append(EncodeClientFrame(f), 0xAA, 0xBB)
	if _, err := DecodeClientFrame(encoded); err == nil {
		t.Error("expected error for frame with trailing bytes")
	}
}

func TestDecodeClientFrame_TruncatedRejected(t *testing.T) {
	f := &JoinChatFrame{RoomID: sampleRoomID(1), Username: "alice"}
	encoded := EncodeClientFrame(f)
	if _, err := DecodeClientFrame(encoded[:len(encoded)-3]); err == nil {
		t.Error("expected error for truncated frame")
	}
}

func TestRoomKind_CapacityRules(t *testing.T) {
	if got := OneToOne().Capacity(); got != OneToOneCapacity {
		t.Errorf("OneToOne().Capacity() = %d, want %d", got, OneToOneCapacity)
	}
	if got := Group(nil).Capacity(); got != DefaultGroupCapacity {
		t.Errorf("Group(nil).Capacity() = %d, want %d", got, DefaultGroupCapacity)
	}
	small := uint64(3)
	if got := Group(&small).Capacity(); got != 3 {
		t.Errorf("Group(3).Capacity() = %d, want 3", got)
	}
	tooBig := uint64(1000)
	if got := Group(&tooBig).Capacity(); got != DefaultGroupCapacity {
		t.Errorf("Group(1000).Capacity() = %d, want %d (capped)", got, DefaultGroupCapacity)
	}
}

func TestFrameReaderWriter_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf)

	clientFrame := &JoinChatFrame{RoomID: sampleRoomID(9), Username: "frank"}
	if err := fw.WriteClientFrame(clientFrame); err != nil {
		t.Fatalf("WriteClientFrame() error = %v", err)
	}

	fr := NewFrameReader(&buf)
	decoded, err := fr.ReadClientFrame()
	if err != nil {
		t.Fatalf("ReadClientFrame() error = %v", err)
	}
	joinFrame, ok := decoded.(*JoinChatFrame)
	if !ok {
		t.Fatalf("decoded frame has type %T, want *JoinChatFrame", decoded)
	}
	if joinFrame.Username != "frank" {
		t.Errorf("Username = %q, want %q", joinFrame.Username, "frank")
	}
}

func TestFrameReader_RejectsOversizeFrame(t *testing.T) {
	var buf bytes.Buffer
	lenPrefix := make([]byte, 4)
	// Declares a body far larger than the configured max, and never
	// actually writes that much data — the point is that Read must
	// reject based on the length prefix alone, before allocating.
	putU32(lenPrefix, 1<<20)
	buf.Write(lenPrefix)

	fr := NewFrameReaderSize(&buf, 16)
	if _, err := fr.Read(); err == nil {
		t.Error("expected ErrFrameTooLarge for oversize frame")
	}
}

func TestFrameReader_EOFOnEmptyStream(t *testing.T) {
	fr := NewFrameReader(bytes.NewReader(nil))
	if _, err := fr.Read(); err != io.EOF {
		t.Errorf("Read() error = %v, want io.EOF", err)
	}
}

func TestFrameReader_TruncatedBodyFails(t *testing.T) {
	var buf bytes.Buffer
	lenPrefix := make([]byte, 4)
	putU32(lenPrefix, 10)
	buf.Write(lenPrefix)
	buf.Write([]byte{1, 2, 3}) // fewer than the declared 10 bytes

	fr := NewFrameReader(&buf)
	if _, err := fr.Read(); err == nil {
		t.Error("expected error for truncated frame body")
	}
}
