package relay

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/rchat-io/rchat/internal/protocol"
	"github.com/rchat-io/rchat/internal/transport"
)

// outboundQueueSize bounds each participant's fan-out sink. A full
// queue means the peer isn't draining fast enough (or is dead); per
// spec.md §4.3 it is dropped and treated as a Leave rather than
// blocking the sender or any other recipient.
const outboundQueueSize = 64

// Connection is one client's connection to the relay: a single
// logical transport.Conn framed with protocol.FrameReader/FrameWriter,
// an inbound read loop, and an outbound queue drained by a dedicated
// writer goroutine — the same reader/writer-goroutine split as
// the teacher's internal/peer.Connection, adapted from a peer-to-peer
// mesh link to a client-to-relay link.
type Connection struct {
	conn   transport.Conn
	reader *protocol.FrameReader
	writer *protocol.FrameWriter

	outbound chan protocol.RelayFrame

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}

	// roomID/username/inRoom describe this connection's current room
	// membership. Only the Manager touches them, always under its
	// registry lock, so no separate mutex guards them here.
	roomID   roomID
	username string
	inRoom   bool

	remoteAddr string
}

func newConnection(c transport.Conn) *Connection {
	return &Connection{
		conn:       c,
		reader:     protocol.NewFrameReader(c),
		writer:     protocol.NewFrameWriter(c),
		outbound:   make(chan protocol.RelayFrame, outboundQueueSize),
		done:       make(chan struct{}),
		remoteAddr: addrToString(c.RemoteAddr()),
	}
}

// enqueue offers f to the connection's outbound sink without blocking.
// It reports false if the sink was full or already closed, in which
// case the caller treats this peer as disconnected.
func (c *Connection) enqueue(f protocol.RelayFrame) bool {
	if c.closed.Load() {
		return false
	}
	select {
	case c.outbound <- f:
		return true
	default:
		return false
	}
}

// Close closes the connection exactly once, signaling both the read
// loop and the writer goroutine to stop.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// Done returns a channel closed once the connection has been closed.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func addrToString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}
