package protocol

import (
	"encoding/binary"
	"fmt"
)

// PubKeySize, SignatureSize and HashSize are the fixed lengths the
// MessagePayload's length-prefixed fields always carry (spec.md §4.2 notes
// these lengths explicitly even though the wire format itself is generic
// length-prefixed bytes).
const (
	PubKeySize    = 32
	SignatureSize = 64
	HashSize      = 32
)

// MessagePayload is the plaintext structure signed, committed to, and
// AEAD-sealed by a ClientEngine before being wrapped in a SendMessage
// frame. Field order is part of the wire contract (spec.md §4.2).
type MessagePayload struct {
	Username       string
	Content        string
	Timestamp      int64
	SequenceNumber uint64
	SenderPubKey   [PubKeySize]byte
	Signature      [SignatureSize]byte
	ChainKeyIndex  uint64
	MessageHash    [HashSize]byte
}

// Encode serializes the payload in its fixed field order:
//
//	u64 username_len | username_bytes
//	u64 content_len  | content_bytes
//	i64 timestamp
//	u64 sequence_number
//	u64 pubkey_len (=32) | pubkey (32B)
//	u64 sig_len (=64)    | signature (64B)
//	u64 chain_key_index
//	u64 hash_len (=32)   | message_hash (32B)
func (p *MessagePayload) Encode() []byte {
	size := 8 + len(p.Username) +
		8 + len(p.Content) +
		8 + // timestamp
		8 + // sequence_number
		8 + PubKeySize +
		8 + SignatureSize +
		8 + // chain_key_index
		8 + HashSize

	buf := make([]byte, size)
	offset := 0

	offset += putString(buf[offset:], p.Username)
	offset += putString(buf[offset:], p.Content)

	binary.LittleEndian.PutUint64(buf[offset:], uint64(p.Timestamp))
	offset += 8

	binary.LittleEndian.PutUint64(buf[offset:], p.SequenceNumber)
	offset += 8

	offset += putBytes(buf[offset:], p.SenderPubKey[:])
	offset += putBytes(buf[offset:], p.Signature[:])

	binary.LittleEndian.PutUint64(buf[offset:], p.ChainKeyIndex)
	offset += 8

	offset += putBytes(buf[offset:], p.MessageHash[:])

	return buf
}

// DecodePayload deserializes a MessagePayload from buf, enforcing the
// fixed lengths of the pubkey, signature and hash fields.
func DecodePayload(buf []byte) (*MessagePayload, error) {
	var p MessagePayload
	c := newCursor(buf)

	username, err := c.readString()
	if err != nil {
		return nil, fmt.Errorf("%w: username: %v", ErrMalformedFrame, err)
	}
	p.Username = username

	content, err := c.readString()
	if err != nil {
		return nil, fmt.Errorf("%w: content: %v", ErrMalformedFrame, err)
	}
	p.Content = content

	ts, err := c.readU64()
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", ErrMalformedFrame, err)
	}
	p.Timestamp = int64(ts)

	seq, err := c.readU64()
	if err != nil {
		return nil, fmt.Errorf("%w: sequence_number: %v", ErrMalformedFrame, err)
	}
	p.SequenceNumber = seq

	pub, err := c.readBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: sender_public_key: %v", ErrMalformedFrame, err)
	}
	if len(pub) != PubKeySize {
		return nil, fmt.Errorf("%w: sender_public_key length %d, want %d", ErrMalformedFrame, len(pub), PubKeySize)
	}
	copy(p.SenderPubKey[:], pub)

	sig, err := c.readBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrMalformedFrame, err)
	}
	if len(sig) != SignatureSize {
		return nil, fmt.Errorf("%w: signature length %d, want %d", ErrMalformedFrame, len(sig), SignatureSize)
	}
	copy(p.Signature[:], sig)

	chainIdx, err := c.readU64()
	if err != nil {
		return nil, fmt.Errorf("%w: chain_key_index: %v", ErrMalformedFrame, err)
	}
	p.ChainKeyIndex = chainIdx

	hash, err := c.readBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: message_hash: %v", ErrMalformedFrame, err)
	}
	if len(hash) != HashSize {
		return nil, fmt.Errorf("%w: message_hash length %d, want %d", ErrMalformedFrame, len(hash), HashSize)
	}
	copy(p.MessageHash[:], hash)

	if !c.exhausted() {
		return nil, fmt.Errorf("%w: trailing bytes after payload", ErrMalformedFrame)
	}

	return &p, nil
}
