// Package transport provides the network transports rchat clients and
// relays exchange framed protocol messages over. Every transport
// presents a single bidirectional byte stream per connection — rchat
// has no concept of per-room sub-streams, all CreateChat/JoinChat/
// SendMessage/LeaveChat traffic for one client rides the same Conn.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"
)

// TransportType identifies the transport protocol.
type TransportType string

const (
	TransportTLS       TransportType = "tls"
	TransportQUIC      TransportType = "quic"
	TransportWebSocket TransportType = "ws"
)

// Transport dials and accepts connections to/from the relay.
type Transport interface {
	// Dial connects to a remote relay.
	Dial(ctx context.Context, addr string, opts DialOptions) (Conn, error)

	// Listen creates a listener for incoming connections.
	Listen(addr string, opts ListenOptions) (Listener, error)

	// Type returns the transport type identifier.
	Type() TransportType

	// Close shuts down the transport.
	Close() error
}

// Listener accepts incoming connections.
type Listener interface {
	// Accept waits for and returns the next connection.
	Accept(ctx context.Context) (Conn, error)

	// Addr returns the listener's network address.
	Addr() net.Addr

	// Close stops the listener.
	Close() error
}

// Conn is a single bidirectional byte stream between a client and the
// relay, carrying u32-length-prefixed protocol frames in both
// directions.
type Conn interface {
	io.Reader
	io.Writer

	// Close terminates the connection.
	Close() error

	// LocalAddr returns the local address.
	LocalAddr() net.Addr

	// RemoteAddr returns the remote address.
	RemoteAddr() net.Addr

	// SetDeadline sets read and write deadlines.
	SetDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error

	// TransportType returns the transport protocol type.
	TransportType() TransportType
}

// DialOptions contains options for dialing a relay.
type DialOptions struct {
	// TLSConfig is the TLS configuration for the connection.
	TLSConfig *tls.Config

	// InsecureSkipVerify allows skipping TLS certificate verification.
	// WARNING: only use this for development. rchat's end-to-end
	// encryption protects message content regardless, but TLS still
	// protects metadata (which rooms a client joins, when) in transit.
	InsecureSkipVerify bool

	// Timeout is the connection timeout.
	Timeout time.Duration

	// Path is the HTTP path the WebSocket transport dials, matching
	// whatever ListenOptions.Path the relay was configured with. Ignored
	// by the tls and quic transports.
	Path string
}

// ListenOptions contains options for creating a listener.
type ListenOptions struct {
	// TLSConfig is the TLS configuration for the listener.
	TLSConfig *tls.Config

	// Path is the HTTP path the WebSocket transport serves on.
	Path string
}

// DefaultDialOptions returns DialOptions with sensible defaults.
func DefaultDialOptions() DialOptions {
	return DialOptions{
		Timeout: 30 * time.Second,
	}
}

// DefaultListenOptions returns ListenOptions with sensible defaults.
func DefaultListenOptions() ListenOptions {
	return ListenOptions{
		Path: wsDefaultPath,
	}
}

// New constructs the Transport named by t, the value rchat's config
// files carry under transport.type.
func New(t TransportType) (Transport, error) {
	switch t {
	case TransportTLS:
		return NewTLSTransport(), nil
	case TransportQUIC:
		return NewQUICTransport(), nil
	case TransportWebSocket:
		return NewWebSocketTransport(), nil
	default:
		return nil, fmt.Errorf("transport: unknown transport type %q", t)
	}
}
