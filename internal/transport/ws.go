package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
)

// WebSocket transport constants.
const (
	wsDefaultPath        = "/rchat"
	wsDefaultReadLimit   = 2 * 1024 * 1024 // comfortably above DefaultMaxFrameSize
	wsDefaultIdleTimeout = 60 * time.Second
)

// WebSocketTransport implements Transport using the WebSocket protocol.
type WebSocketTransport struct {
	mu        sync.Mutex
	listeners []*WebSocketListener
	closed    bool
}

// NewWebSocketTransport creates a new WebSocket transport.
func NewWebSocketTransport() *WebSocketTransport {
	return &WebSocketTransport{}
}

func (t *WebSocketTransport) Type() TransportType {
	return TransportWebSocket
}

func (t *WebSocketTransport) Dial(ctx context.Context, addr string, opts DialOptions) (Conn, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, fmt.Errorf("transport closed")
	}
	t.mu.Unlock()

	path := opts.Path
	if path == "" {
		path = wsDefaultPath
	}
	wsURL := parseWebSocketURL(addr, path)

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	httpClient := buildHTTPClient(opts)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPClient:   httpClient,
		Subprotocols: []string{rchatWSSubprotocol},
	})
	if err != nil {
		return nil, fmt.Errorf("WebSocket dial failed: %w", err)
	}
	conn.SetReadLimit(wsDefaultReadLimit)

	return newWebSocketConn(conn, false), nil
}

func (t *WebSocketTransport) Listen(addr string, opts ListenOptions) (Listener, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, fmt.Errorf("transport closed")
	}
	if opts.TLSConfig == nil {
		return nil, fmt.Errorf("TLS config required for WebSocket listener")
	}

	path := opts.Path
	if path == "" {
		path = wsDefaultPath
	}

	listener := &WebSocketListener{
		addr:      addr,
		path:      path,
		tlsConfig: opts.TLSConfig,
		connCh:    make(chan *WebSocketConn, 16),
		closeCh:   make(chan struct{}),
	}

	if err := listener.start(); err != nil {
		return nil, err
	}

	t.listeners = append(t.listeners, listener)
	return listener, nil
}

func (t *WebSocketTransport) Close() error {
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

// WebSocketListener implements Listener for WebSocket.
type WebSocketListener struct {
	addr      string
	path      string
	tlsConfig *tls.Config
	server    *http.Server
	netLn     net.Listener
	connCh    chan *WebSocketConn
	closeCh   chan struct{}
	closed    atomic.Bool
}

func (l *WebSocketListener) start() error {
	mux := http.NewServeMux()
	mux.HandleFunc(l.path, l.handleWebSocket)

	l.server = &http.Server{
		Addr:      l.addr,
		Handler:   mux,
		TLSConfig: l.tlsConfig,
	}

	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("listen failed: %w", err)
	}
	l.netLn = ln

	go func() {
		_ = l.server.ServeTLS(ln, "", "")
	}()

	return nil
}

func (l *WebSocketListener) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if l.closed.Load() {
		http.Error(w, "server closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{rchatWSSubprotocol},
	})
	if err != nil {
		return
	}
	conn.SetReadLimit(wsDefaultReadLimit)

	wsConn := newWebSocketConn(conn, true)

	select {
	case l.connCh <- wsConn:
	case <-l.closeCh:
		conn.Close(websocket.StatusGoingAway, "server closed")
	}
}

func (l *WebSocketListener) Accept(ctx context.Context) (Conn, error) {
	select {
	case conn := <-l.connCh:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closeCh:
		return nil, fmt.Errorf("listener closed")
	}
}

func (l *WebSocketListener) Addr() net.Addr {
	if l.netLn != nil {
		return l.netLn.Addr()
	}
	return nil
}

func (l *WebSocketListener) Close() error {
	if l.closed.Swap(true) {
		return nil
	}
	close(l.closeCh)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if l.server != nil {
		return l.server.Shutdown(ctx)
	}
	return nil
}

// WebSocketConn implements Conn over a single WebSocket connection
// using binary messages as the framing unit. net.Conn semantics are
// provided by websocket.NetConn, which translates Read/Write deadlines
// into per-message contexts internally.
type WebSocketConn struct {
	net.Conn
	isListener bool
}

func newWebSocketConn(c *websocket.Conn, isListener bool) *WebSocketConn {
	return &WebSocketConn{
		Conn:       websocket.NetConn(context.Background(), c, websocket.MessageBinary),
		isListener: isListener,
	}
}

func (c *WebSocketConn) TransportType() TransportType { return TransportWebSocket }

// parseWebSocketURL parses the address into a WebSocket URL, appending
// path when addr carries no scheme of its own (a bare host:port naming
// the relay, the common config-file form).
func parseWebSocketURL(addr, path string) string {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return addr
	}
	return "wss://" + addr + path
}

// buildHTTPClient creates an HTTP client honoring the dial TLS options.
func buildHTTPClient(opts DialOptions) *http.Client {
	tlsConfig := opts.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{
			InsecureSkipVerify: opts.InsecureSkipVerify,
			MinVersion:         tls.VersionTLS13,
		}
	}

	return &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
		Timeout:   opts.Timeout,
	}
}
