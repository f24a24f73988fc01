package clientengine

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/rchat-io/rchat/internal/cryptocore"
	"github.com/rchat-io/rchat/internal/identity"
	"github.com/rchat-io/rchat/internal/protocol"
)

// messageIDSize is the length in bytes of a SendMessage's random
// message_id (spec.md §4.4 step 5).
const messageIDSize = 16

// outboundPipeline turns a plaintext message into a framed SendMessage
// request: steps 1-5 of spec.md §4.4's outbound pipeline (step 6, the
// retry table, lives in Session). It owns the
// session's single outbound ratchet; callers never touch
// cryptocore.SenderRatchet directly.
type outboundPipeline struct {
	identity *identity.IdentityKey
	ratchet  *cryptocore.SenderRatchet
	rootKey  [32]byte
	seq      uint64
}

func newOutboundPipeline(id *identity.IdentityKey, rootKey [32]byte, chainInit [32]byte) *outboundPipeline {
	return &outboundPipeline{
		identity: id,
		ratchet:  cryptocore.NewSenderRatchet(chainInit),
		rootKey:  rootKey,
	}
}

// preparedMessage is the result of running the outbound pipeline: the
// framed request ready to write, plus the plaintext content kept for the
// retry table (spec.md §4.4 step 6 resends the original plaintext, not a
// pre-sealed ciphertext: a resend runs prepare again, which seals under
// the next ratchet key and mints a new message_id).
type preparedMessage struct {
	frame     *protocol.SendMessageFrame
	messageID [messageIDSize]byte
	content   string
}

// prepare runs steps 1-5 of spec.md §4.4's outbound pipeline for one
// message: build the payload, sign, commit, seal under the next ratchet
// key, and wrap in a SendMessage frame with a fresh message_id.
func (p *outboundPipeline) prepare(roomID [protocol.RoomIDSize]byte, username, content string) (*preparedMessage, error) {
	timestamp := time.Now().Unix()
	sequenceNumber := p.seq
	p.seq++

	signed := cryptocore.SignedBytes(content, timestamp, sequenceNumber)
	signature := p.identity.Sign(signed)

	key, chainKeyIndex := p.ratchet.Next()
	defer cryptocore.ZeroKey(&key)

	hash := cryptocore.Commitment(username, content, sequenceNumber, chainKeyIndex)

	payload := &protocol.MessagePayload{
		Username:       username,
		Content:        content,
		Timestamp:      timestamp,
		SequenceNumber: sequenceNumber,
		SenderPubKey:   p.identity.PublicKey,
		Signature:      signature,
		ChainKeyIndex:  chainKeyIndex,
		MessageHash:    hash,
	}

	sealed, err := cryptocore.Seal(key, payload.Encode())
	if err != nil {
		return nil, fmt.Errorf("clientengine: seal outbound message: %w", err)
	}

	var messageID [messageIDSize]byte
	if _, err := io.ReadFull(rand.Reader, messageID[:]); err != nil {
		return nil, fmt.Errorf("clientengine: generate message_id: %w", err)
	}

	return &preparedMessage{
		frame: &protocol.SendMessageFrame{
			RoomID:           roomID,
			EncryptedPayload: sealed,
			MessageID:        append([]byte(nil), messageID[:]...),
		},
		messageID: messageID,
		content:   content,
	}, nil
}
