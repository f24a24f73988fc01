package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rchat-io/rchat/internal/logging"
	"github.com/rchat-io/rchat/internal/metrics"
	"github.com/rchat-io/rchat/internal/protocol"
	"github.com/rchat-io/rchat/internal/recovery"
	"github.com/rchat-io/rchat/internal/transport"
)

// Manager owns the process-wide room registry and the lifecycle of
// every client connection (spec.md §4.3's "State" paragraph). It is
// the relay-side analogue of the teacher's peer.Manager: a single
// mutex-guarded map plus a goroutine pair per connection, adapted from
// a symmetric mesh of peers to an asymmetric relay serving many
// clients.
type Manager struct {
	mu    sync.Mutex
	rooms map[roomID]*room

	logger  *slog.Logger
	metrics *metrics.Metrics

	wg sync.WaitGroup
}

// NewManager creates a Manager. A nil logger defaults to a discard
// logger; a nil metrics registry disables metric recording (callers
// wire metrics.Default() in production).
func NewManager(logger *slog.Logger, m *metrics.Metrics) *Manager {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Manager{
		rooms:   make(map[roomID]*room),
		logger:  logger,
		metrics: m,
	}
}

// Serve accepts connections from ln until ctx is canceled or Accept
// returns a non-context error.
func (m *Manager) Serve(ctx context.Context, ln transport.Listener) error {
	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		m.wg.Add(1)
		go m.handleConn(ctx, conn)
	}
}

// Wait blocks until every connection goroutine launched by Serve has
// returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Stats reports the relay's current room and participant counts, for
// the health server's /healthz endpoint.
type Stats struct {
	RoomCount        int
	ParticipantCount int
}

// Stats returns a snapshot of the relay's current load.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{RoomCount: len(m.rooms)}
	for _, r := range m.rooms {
		s.ParticipantCount += len(r.participants)
	}
	return s
}

// handleConn owns one client connection end to end: it runs the
// writer goroutine, then reads frames until the connection fails or
// closes, then tears down any room membership.
func (m *Manager) handleConn(ctx context.Context, tc transport.Conn) {
	defer m.wg.Done()

	c := newConnection(tc)
	defer c.Close()

	recordConnectionOpened(m.metrics)
	defer recordConnectionClosed(m.metrics)

	var writerWG sync.WaitGroup
	writerWG.Add(1)
	go func() {
		defer writerWG.Done()
		m.writeLoop(c)
	}()

	m.readLoop(ctx, c)

	c.Close()
	writerWG.Wait()

	m.disconnect(c)
}

// readLoop reads framed Client→Relay requests sequentially and
// dispatches each to the matching handler. A malformed frame, an
// oversize frame, or an unknown variant closes the connection
// (spec.md §7); a business error replies with ErrorFrame and the loop
// continues.
func (m *Manager) readLoop(ctx context.Context, c *Connection) {
	defer recovery.RecoverWithMetrics(m.logger, "relay.readLoop", m.metrics)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.Done():
			return
		default:
		}

		frame, err := c.reader.ReadClientFrame()
		if err != nil {
			if !errors.Is(err, protocol.ErrMalformedFrame) &&
				!errors.Is(err, protocol.ErrFrameTooLarge) &&
				!errors.Is(err, protocol.ErrUnknownVariant) {
				m.logger.Debug("connection read failed",
					logging.KeyRemoteAddr, c.remoteAddr, logging.KeyError, err)
			} else {
				recordFrameRejected(m.metrics, frameRejectReason(err))
				m.logger.Warn("rejecting malformed client frame",
					logging.KeyRemoteAddr, c.remoteAddr, logging.KeyError, err)
			}
			return
		}
		recordFrame(m.metrics, "inbound")

		m.dispatch(c, frame)
	}
}

func frameRejectReason(err error) string {
	switch {
	case errors.Is(err, protocol.ErrFrameTooLarge):
		return "frame_too_large"
	case errors.Is(err, protocol.ErrUnknownVariant):
		return "unknown_variant"
	default:
		return "malformed_frame"
	}
}

// writeLoop drains c's outbound queue and writes each frame in order.
// A write failure closes the connection; the read loop observes this
// via c.Done() on its next iteration.
func (m *Manager) writeLoop(c *Connection) {
	defer recovery.RecoverWithMetrics(m.logger, "relay.writeLoop", m.metrics)

	for {
		select {
		case <-c.Done():
			return
		case frame := <-c.outbound:
			if err := c.writer.WriteRelayFrame(frame); err != nil {
				m.logger.Debug("connection write failed",
					logging.KeyRemoteAddr, c.remoteAddr, logging.KeyError, err)
				c.Close()
				return
			}
			recordFrame(m.metrics, "outbound")
		}
	}
}

// dispatch routes one decoded Client→Relay frame to its handler.
func (m *Manager) dispatch(c *Connection, frame protocol.ClientFrame) {
	switch f := frame.(type) {
	case *protocol.CreateChatFrame:
		m.createChat(c, f)
	case *protocol.JoinChatFrame:
		m.joinChat(c, f)
	case *protocol.SendMessageFrame:
		m.sendMessage(c, f)
	case *protocol.LeaveChatFrame:
		m.leaveChat(c, f)
	}
}

func (m *Manager) reply(c *Connection, f protocol.RelayFrame) {
	if !c.enqueue(f) {
		c.Close()
	}
}

func (m *Manager) replyError(c *Connection, message string) {
	m.reply(c, &protocol.ErrorFrame{Message: message})
}

// createChat implements spec.md §4.3 CreateChat. c's roomID/username/
// inRoom bookkeeping is mutated here, under m.mu, because fanOut on a
// sibling connection's goroutine may later read or clear inRoom on
// this same Connection when isolating a fan-out failure.
func (m *Manager) createChat(c *Connection, f *protocol.CreateChatFrame) {
	normalized := normalizeUsername(f.Username)

	m.mu.Lock()
	if _, exists := m.rooms[f.RoomID]; exists {
		m.mu.Unlock()
		m.replyError(c, ErrRoomExists.Error())
		return
	}
	rm := newRoom(f.RoomID, f.Kind)
	rm.add(&participant{username: f.Username, normalized: normalized, conn: c})
	m.rooms[f.RoomID] = rm
	c.roomID = f.RoomID
	c.username = f.Username
	c.inRoom = true
	m.mu.Unlock()

	recordRoomCreated(m.metrics)
	recordJoin(m.metrics)

	m.reply(c, &protocol.ChatCreatedFrame{RoomID: f.RoomID, Kind: f.Kind})
}

// joinChat implements spec.md §4.3 JoinChat.
func (m *Manager) joinChat(c *Connection, f *protocol.JoinChatFrame) {
	normalized := normalizeUsername(f.Username)

	m.mu.Lock()
	rm, exists := m.rooms[f.RoomID]
	if !exists {
		m.mu.Unlock()
		m.replyError(c, ErrRoomNotFound.Error())
		return
	}
	if rm.full() {
		m.mu.Unlock()
		m.replyError(c, ErrRoomFull.Error())
		return
	}
	if rm.usernameTaken(normalized) {
		m.mu.Unlock()
		m.replyError(c, ErrUsernameTaken.Error())
		return
	}
	rm.add(&participant{username: f.Username, normalized: normalized, conn: c})
	count := uint64(len(rm.participants))
	others := rm.othersExcept(c)
	kind := rm.kind
	c.roomID = f.RoomID
	c.username = f.Username
	c.inRoom = true
	m.mu.Unlock()

	recordJoin(m.metrics)

	m.reply(c, &protocol.JoinedChatFrame{RoomID: f.RoomID, Kind: kind, ParticipantCount: count})

	broadcast := &protocol.UserJoinedFrame{RoomID: f.RoomID, Username: f.Username}
	for _, p := range others {
		m.fanOut(f.RoomID, p, broadcast)
	}
}

// sendMessage implements spec.md §4.3 SendMessage. The relay never
// inspects EncryptedPayload; it only stamps a display-ordering
// timestamp and fans it out.
func (m *Manager) sendMessage(c *Connection, f *protocol.SendMessageFrame) {
	m.mu.Lock()
	if !c.inRoom || c.roomID != f.RoomID {
		m.mu.Unlock()
		m.replyError(c, ErrNotInRoom.Error())
		return
	}
	rm, exists := m.rooms[f.RoomID]
	if !exists {
		m.mu.Unlock()
		m.replyError(c, ErrRoomNotFound.Error())
		return
	}
	others := rm.othersExcept(c)
	m.mu.Unlock()

	recordMessageReceived(m.metrics)

	out := &protocol.MessageReceivedFrame{
		RoomID:           f.RoomID,
		EncryptedPayload: f.EncryptedPayload,
		Timestamp:        time.Now().Unix(),
		MessageID:        f.MessageID,
	}
	for _, p := range others {
		m.fanOut(f.RoomID, p, out)
	}

	m.reply(c, &protocol.MessageAckFrame{MessageID: f.MessageID})
}

// leaveChat implements spec.md §4.3's explicit LeaveChat path.
func (m *Manager) leaveChat(c *Connection, f *protocol.LeaveChatFrame) {
	m.removeFromRoom(c, f.RoomID, "explicit")
}

// disconnect tears down whatever room membership c still holds when
// its connection ends, whether by LeaveChat, a failed frame, or a
// dropped transport. Reading c.roomID here is safe unsynchronized:
// only c's own read loop (this goroutine, now finished) ever sets it.
func (m *Manager) disconnect(c *Connection) {
	m.removeFromRoom(c, c.roomID, "disconnect")
}

// removeFromRoom removes c from room id, deletes the room if it is
// now empty, and broadcasts UserLeft to whoever remains. c.inRoom is
// both checked and cleared under m.mu since a sibling connection's
// fanOut failure can call this on c from another goroutine.
func (m *Manager) removeFromRoom(c *Connection, id roomID, reason string) {
	m.mu.Lock()
	if !c.inRoom || c.roomID != id {
		m.mu.Unlock()
		return
	}
	rm, exists := m.rooms[id]
	if !exists {
		c.inRoom = false
		m.mu.Unlock()
		return
	}
	p, removed := rm.remove(c)
	c.inRoom = false
	if !removed {
		m.mu.Unlock()
		return
	}
	empty := len(rm.participants) == 0
	var remaining []*participant
	if !empty {
		remaining = append(remaining, rm.participants...)
	} else {
		delete(m.rooms, id)
	}
	m.mu.Unlock()

	recordLeave(m.metrics, reason)
	if empty {
		recordRoomDestroyed(m.metrics)
	}

	broadcast := &protocol.UserLeftFrame{RoomID: id, Username: p.username}
	for _, other := range remaining {
		m.fanOut(id, other, broadcast)
	}
}

// fanOut best-effort delivers frame to p. A full or dead outbound sink
// drops p and treats it as a Leave, isolating the failure from every
// other recipient (spec.md §4.3 "Fan-out semantics").
func (m *Manager) fanOut(id roomID, p *participant, frame protocol.RelayFrame) {
	if p.conn.enqueue(frame) {
		recordMessageFannedOut(m.metrics)
		return
	}
	recordFanOutDropped(m.metrics, "sink_full")
	p.conn.Close()
	m.removeFromRoom(p.conn, id, "dropped")
}
