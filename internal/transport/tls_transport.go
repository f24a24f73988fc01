package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
)

// TLSTransport implements Transport as a single TLS 1.3 stream per
// connection over TCP, the most compatible of rchat's three transports.
type TLSTransport struct {
	mu        sync.Mutex
	listeners []*TLSListener
	closed    bool
}

// NewTLSTransport creates a new TLS transport.
func NewTLSTransport() *TLSTransport {
	return &TLSTransport{}
}

func (t *TLSTransport) Type() TransportType {
	return TransportTLS
}

func (t *TLSTransport) Dial(ctx context.Context, addr string, opts DialOptions) (Conn, error) {
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

	dialer := &tls.Dialer{Config: tlsConfig}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("TLS dial failed: %w", err)
	}

	return &TLSConn{Conn: conn}, nil
}

func (t *TLSTransport) Listen(addr string, opts ListenOptions) (Listener, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, fmt.Errorf("transport closed")
	}
	if opts.TLSConfig == nil {
		return nil, fmt.Errorf("TLS config required for TLS listener")
	}

	tlsConfig := opts.TLSConfig
	if len(tlsConfig.NextProtos) == 0 {
		tlsConfig = tlsConfig.Clone()
		tlsConfig.NextProtos = []string{ALPNProtocol}
	}

	ln, err := tls.Listen("tcp", addr, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("TLS listen failed: %w", err)
	}

	tl := &TLSListener{listener: ln}
	t.listeners = append(t.listeners, tl)
	return tl, nil
}

func (t *TLSTransport) Close() error {
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

// TLSListener implements Listener for plain TCP+TLS.
type TLSListener struct {
	listener net.Listener
	mu       sync.Mutex
	closed   bool
}

func (l *TLSListener) Accept(ctx context.Context) (Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := l.listener.Accept()
		ch <- result{c, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return &TLSConn{Conn: r.conn}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *TLSListener) Addr() net.Addr {
	return l.listener.Addr()
}

func (l *TLSListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.listener.Close()
}

// TLSConn implements Conn over a plain net.Conn (already TLS-wrapped by
// tls.Dial/tls.Listen).
type TLSConn struct {
	net.Conn
}

func (c *TLSConn) TransportType() TransportType { return TransportTLS }
