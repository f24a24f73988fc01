package clientengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rchat-io/rchat/internal/cryptocore"
	"github.com/rchat-io/rchat/internal/identity"
	"github.com/rchat-io/rchat/internal/logging"
	"github.com/rchat-io/rchat/internal/metrics"
	"github.com/rchat-io/rchat/internal/protocol"
	"github.com/rchat-io/rchat/internal/recovery"
	"github.com/rchat-io/rchat/internal/transport"
)

// Event is emitted on a Session's Events channel for everything the UI
// layer needs to react to: an incoming message, a room-membership
// change, or a drop reason worth surfacing. rchat's Non-goals exclude a
// UI from this module (spec.md §1), so Session never renders anything
// itself — cmd/rchat-client is the thin glue that consumes this channel.
type Event struct {
	Message     *IncomingMessage
	UserJoined  string
	UserLeft    string
	RelayError  string
	SendFailed  [messageIDSize]byte
	Disconnected bool
}

// Session is the rchat analogue of the teacher's internal/peer.Peer: one
// client's live connection to the relay, running the outbound and
// inbound pipelines of spec.md §4.4 and the Disconnected → Connecting →
// Connected → InRoom → Disconnected state machine.
type Session struct {
	identity *identity.IdentityKey
	rootKey  [32]byte
	chainInit [32]byte

	username string
	roomID   [protocol.RoomIDSize]byte

	state *sessionStateMachine
	out   *outboundPipeline
	in    *inboundPipeline
	retry *retryTable

	conn   transport.Conn
	reader *protocol.FrameReader
	writer *protocol.FrameWriter

	Events chan Event

	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	closed bool
}

// NewSession derives the room ID and the per-room CryptoCore keys from
// chatCode (spec.md §4.1) and creates a fresh Ed25519 IdentityKey for
// this session (spec.md §3: "generated per client per session").
func NewSession(chatCode cryptocore.ChatCode, maxSkip uint64, logger *slog.Logger, m *metrics.Metrics) (*Session, error) {
	id, err := identity.GenerateIdentityKey()
	if err != nil {
		return nil, fmt.Errorf("clientengine: generate identity key: %w", err)
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	if maxSkip == 0 {
		maxSkip = cryptocore.DefaultMaxSkip
	}

	rootKey := cryptocore.DeriveRootKey(chatCode.Secret())
	chainInit := cryptocore.DeriveChainInit(chatCode.Secret())
	roomID := cryptocore.DeriveRoomID(chatCode.RawBytes())

	return &Session{
		identity:  id,
		rootKey:   rootKey,
		chainInit: chainInit,
		roomID:    roomID,
		state:     newSessionStateMachine(),
		out:       newOutboundPipeline(id, rootKey, chainInit),
		in:        newInboundPipeline(chainInit, maxSkip),
		retry:     newRetryTable(DefaultBackoffConfig()),
		Events:    make(chan Event, 32),
		logger:    logger,
		metrics:   m,
	}, nil
}

// RoomID returns the wire-visible room identifier this session's chat
// code derives to.
func (s *Session) RoomID() [protocol.RoomIDSize]byte {
	return s.roomID
}

// State returns the session's current position in its connection state
// machine.
func (s *Session) State() SessionState {
	return s.state.current()
}

// Attach binds the session to a live transport connection and transitions
// Disconnected → Connecting → Connected. It does not join or create a
// room; call CreateChat or JoinChat next.
func (s *Session) Attach(conn transport.Conn) error {
	if err := s.state.transition(StateConnecting); err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.reader = protocol.NewFrameReader(conn)
	s.writer = protocol.NewFrameWriter(conn)
	s.closed = false
	s.mu.Unlock()

	return s.state.transition(StateConnected)
}

// CreateChat sends a CreateChat request for this session's room and
// blocks for the matching ChatCreated or Error reply.
func (s *Session) CreateChat(username string, kind protocol.RoomKind) error {
	s.username = username
	if err := s.writeClient(&protocol.CreateChatFrame{RoomID: s.roomID, Kind: kind, Username: username}); err != nil {
		return err
	}
	reply, err := s.readRelayFrame()
	if err != nil {
		return err
	}
	switch f := reply.(type) {
	case *protocol.ChatCreatedFrame:
		return s.state.transition(StateInRoom)
	case *protocol.ErrorFrame:
		return errors.New(f.Message)
	default:
		return fmt.Errorf("clientengine: unexpected reply to CreateChat: variant %d", reply.Variant())
	}
}

// JoinChat sends a JoinChat request for this session's room and blocks
// for the matching JoinedChat or Error reply.
func (s *Session) JoinChat(username string) (participantCount uint64, err error) {
	s.username = username
	if err := s.writeClient(&protocol.JoinChatFrame{RoomID: s.roomID, Username: username}); err != nil {
		return 0, err
	}
	reply, err := s.readRelayFrame()
	if err != nil {
		return 0, err
	}
	switch f := reply.(type) {
	case *protocol.JoinedChatFrame:
		if err := s.state.transition(StateInRoom); err != nil {
			return 0, err
		}
		return f.ParticipantCount, nil
	case *protocol.ErrorFrame:
		return 0, errors.New(f.Message)
	default:
		return 0, fmt.Errorf("clientengine: unexpected reply to JoinChat: variant %d", reply.Variant())
	}
}

// Leave sends an explicit LeaveChat for this session's room.
func (s *Session) Leave() error {
	if err := s.writeClient(&protocol.LeaveChatFrame{RoomID: s.roomID}); err != nil {
		return err
	}
	return s.state.transition(StateConnected)
}

// Send runs the outbound pipeline (spec.md §4.4 steps 1-5), writes the
// resulting SendMessage frame, and retains it in the retry table until a
// matching MessageAck arrives.
func (s *Session) Send(content string) error {
	if s.State() != StateInRoom {
		return ErrNotInRoom
	}
	msg, err := s.out.prepare(s.roomID, s.username, content)
	if err != nil {
		return err
	}
	s.retry.add(msg.messageID, s.username, msg.content)
	return s.writeClient(msg.frame)
}

// Run processes inbound Relay→Client frames until ctx is canceled or the
// connection fails, emitting Events for the UI layer. It recovers
// goroutine panics the same way relay.Manager's loops do (spec.md §A
// ambient stack).
func (s *Session) Run(ctx context.Context) {
	defer recovery.RecoverWithMetrics(s.logger, "clientengine.Run", s.metrics)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := s.reader.ReadRelayFrame()
		if err != nil {
			s.state.forceDisconnected()
			s.emit(Event{Disconnected: true})
			return
		}
		s.dispatch(frame)
	}
}

func (s *Session) dispatch(frame protocol.RelayFrame) {
	switch f := frame.(type) {
	case *protocol.MessageReceivedFrame:
		s.handleMessageReceived(f)
	case *protocol.MessageAckFrame:
		s.retry.ack(f.MessageID)
	case *protocol.UserJoinedFrame:
		s.emit(Event{UserJoined: f.Username})
	case *protocol.UserLeftFrame:
		s.emit(Event{UserLeft: f.Username})
	case *protocol.ErrorFrame:
		s.emit(Event{RelayError: f.Message})
	}
}

func (s *Session) handleMessageReceived(f *protocol.MessageReceivedFrame) {
	msg, err := s.in.process(f)
	if err != nil {
		s.recordDrop(err)
		s.logger.Debug("dropping inbound message", logging.KeyRoomID, fmt.Sprintf("%x", f.RoomID[:8]), logging.KeyError, err)
		return
	}
	s.emit(Event{Message: msg})
}

func (s *Session) recordDrop(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case errors.Is(err, ErrAeadFailure):
		s.metrics.RecordAEADFailure("open")
	case errors.Is(err, ErrSignatureFailure):
		s.metrics.RecordSignatureFailure()
	case errors.Is(err, ErrCommitmentMismatch):
		s.metrics.RecordCommitmentMismatch()
	case errors.Is(err, ErrStaleOrFuture):
		s.metrics.RecordStaleMessage()
	case errors.Is(err, ErrReplayOrReorder):
		s.metrics.RecordReplayRejection()
	}
}

// Resend re-sends every still-unacknowledged message in the retry table
// over a freshly Attach-ed connection (spec.md §4.4 step 6; §7's
// bounded-reconnect-resend policy). It is meant to be called once per
// actual disconnect→reconnect transition, never on a free-running
// timer: spec.md's resend is triggered by connection loss, not by an
// ack simply taking longer than expected while the session is still
// connected. A message that exhausts BackoffConfig.MaxAttempts is
// dropped from the table and surfaced as a SendFailed event.
//
// Each resend re-runs the outbound pipeline directly (rather than
// calling Send, which would also re-add a second table entry next to
// the still-present original): it swaps the table entry from the
// original message_id to the newly minted one via retry.replace,
// carrying over the attempt count, so at most one in-flight lineage
// ever exists per logical send and MaxAttempts bounds it across
// however many reconnects it takes.
func (s *Session) Resend(ctx context.Context) {
	for _, p := range s.retry.snapshot() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if s.metrics != nil {
			s.metrics.RecordSendRetry()
		}
		exhausted := s.retry.recordAttempt(p.messageID)
		if exhausted {
			if s.metrics != nil {
				s.metrics.RecordSendFailure()
			}
			s.emit(Event{SendFailed: p.messageID})
			continue
		}
		msg, err := s.out.prepare(s.roomID, p.username, p.content)
		if err != nil {
			s.logger.Warn("resend failed", logging.KeyMessageID, fmt.Sprintf("%x", p.messageID), logging.KeyError, err)
			continue
		}
		if !s.retry.replace(p.messageID, msg.messageID, p.username, p.content) {
			// Acked or exhausted concurrently: the freshly sealed lineage
			// has nothing left to track, so it is simply not sent.
			continue
		}
		if err := s.writeClient(msg.frame); err != nil {
			s.logger.Warn("resend failed", logging.KeyMessageID, fmt.Sprintf("%x", msg.messageID), logging.KeyError, err)
		}
	}
}

func (s *Session) emit(e Event) {
	select {
	case s.Events <- e:
	default:
		s.logger.Warn("dropping event, Events channel full")
	}
}

func (s *Session) writeClient(f protocol.ClientFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return ErrNotConnected
	}
	return s.writer.WriteClientFrame(f)
}

func (s *Session) readRelayFrame() (protocol.RelayFrame, error) {
	s.mu.Lock()
	r := s.reader
	s.mu.Unlock()
	if r == nil {
		return nil, ErrNotConnected
	}
	return r.ReadRelayFrame()
}

// Close tears down the session's connection and zeroizes every key it
// holds: the identity private key, the root key, the chain-init key, and
// every per-sender ratchet mirror (spec.md §3 "Lifecycles", §4.1
// "Zeroization").
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	s.state.forceDisconnected()
	s.identity.Zero()
	cryptocore.ZeroKey(&s.rootKey)
	cryptocore.ZeroKey(&s.chainInit)
	s.in.zero()

	if conn != nil {
		return conn.Close()
	}
	return nil
}
