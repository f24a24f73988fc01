package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
)

// Default QUIC configuration values.
const (
	DefaultMaxIdleTimeout  = 60 * time.Second
	DefaultKeepAlivePeriod = 30 * time.Second
)

// QUICTransport implements Transport using the QUIC protocol. Each
// connection opens exactly one stream, which is the Conn rchat speaks
// its frame protocol over.
type QUICTransport struct {
	mu        sync.Mutex
	listeners []*QUICListener
	closed    bool
}

// NewQUICTransport creates a new QUIC transport.
func NewQUICTransport() *QUICTransport {
	return &QUICTransport{}
}

func (t *QUICTransport) Type() TransportType {
	return TransportQUIC
}

func (t *QUICTransport) Dial(ctx context.Context, addr string, opts DialOptions) (Conn, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, fmt.Errorf("transport closed")
	}
	t.mu.Unlock()

	tlsConfig := opts.TLSConfig
	if tlsConfig == nil {
		if !opts.InsecureSkipVerify {
			return nil, fmt.Errorf("TLS config required; set InsecureSkipVerify=true for development only")
		}
		tlsConfig = &tls.Config{
			InsecureSkipVerify: true,
			NextProtos:         []string{ALPNProtocol},
			MinVersion:         tls.VersionTLS13,
		}
	}

	quicConfig := &quic.Config{
		MaxIdleTimeout:        DefaultMaxIdleTimeout,
		KeepAlivePeriod:       DefaultKeepAlivePeriod,
		MaxIncomingStreams:    1,
		MaxIncomingUniStreams: 0,
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	conn, err := quic.DialAddr(ctx, addr, tlsConfig, quicConfig)
	if err != nil {
		return nil, fmt.Errorf("QUIC dial failed: %w", err)
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, "stream open failed")
		return nil, fmt.Errorf("failed to open QUIC stream: %w", err)
	}

	return &QUICConn{conn: conn, stream: stream}, nil
}

func (t *QUICTransport) Listen(addr string, opts ListenOptions) (Listener, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, fmt.Errorf("transport closed")
	}

	tlsConfig := opts.TLSConfig
	if tlsConfig == nil {
		return nil, fmt.Errorf("TLS config required for QUIC listener")
	}
	if len(tlsConfig.NextProtos) == 0 {
		tlsConfig = tlsConfig.Clone()
		tlsConfig.NextProtos = []string{ALPNProtocol}
	}

	quicConfig := &quic.Config{
		MaxIdleTimeout:        DefaultMaxIdleTimeout,
		KeepAlivePeriod:       DefaultKeepAlivePeriod,
		MaxIncomingStreams:    1,
		MaxIncomingUniStreams: 0,
	}

	listener, err := quic.ListenAddr(addr, tlsConfig, quicConfig)
	if err != nil {
		return nil, fmt.Errorf("QUIC listen failed: %w", err)
	}

	ql := &QUICListener{listener: listener}
	t.listeners = append(t.listeners, ql)
	return ql, nil
}

func (t *QUICTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	var lastErr error
	for _, l := range t.listeners {
		if err := l.Close(); err != nil {
			lastErr = err
		}
	}
	t.listeners = nil
	return lastErr
}

// QUICListener implements Listener for QUIC.
type QUICListener struct {
	listener *quic.Listener
	closed   bool
	mu       sync.Mutex
}

// Accept waits for a connection and its single stream.
func (l *QUICListener) Accept(ctx context.Context) (Conn, error) {
	conn, err := l.listener.Accept(ctx)
	if err != nil {
		return nil, err
	}

	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		conn.CloseWithError(0, "stream accept failed")
		return nil, fmt.Errorf("failed to accept QUIC stream: %w", err)
	}

	return &QUICConn{conn: conn, stream: stream}, nil
}

func (l *QUICListener) Addr() net.Addr {
	return l.listener.Addr()
}

func (l *QUICListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.listener.Close()
}

// QUICConn implements Conn over a QUIC connection's single stream.
type QUICConn struct {
	conn   quic.Connection
	stream quic.Stream
}

func (c *QUICConn) Read(p []byte) (int, error)  { return c.stream.Read(p) }
func (c *QUICConn) Write(p []byte) (int, error) { return c.stream.Write(p) }

func (c *QUICConn) Close() error {
	c.stream.CancelRead(0)
	_ = c.stream.Close()
	return c.conn.CloseWithError(0, "connection closed")
}

func (c *QUICConn) LocalAddr() net.Addr             { return c.conn.LocalAddr() }
func (c *QUICConn) RemoteAddr() net.Addr            { return c.conn.RemoteAddr() }
func (c *QUICConn) TransportType() TransportType    { return TransportQUIC }
func (c *QUICConn) SetDeadline(t time.Time) error   { return c.stream.SetDeadline(t) }
func (c *QUICConn) SetReadDeadline(t time.Time) error {
	return c.stream.SetReadDeadline(t)
}
func (c *QUICConn) SetWriteDeadline(t time.Time) error {
	return c.stream.SetWriteDeadline(t)
}
