package transport

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"
)

func TestTLSTransport_DialListenRoundTrip(t *testing.T) {
	certPEM, keyPEM, err := GenerateSelfSignedCert("127.0.0.1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateSelfSignedCert() error = %v", err)
	}
	serverTLS, err := TLSConfigFromBytes(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("TLSConfigFromBytes() error = %v", err)
	}

	serverTransport := NewTLSTransport()
	defer serverTransport.Close()

	listener, err := serverTransport.Listen("127.0.0.1:0", ListenOptions{TLSConfig: serverTLS})
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer listener.Close()

	acceptErr := make(chan error, 1)
	acceptedConn := make(chan Conn, 1)
	go func() {
		conn, err := listener.Accept(context.Background())
		if err != nil {
			acceptErr <- err
			return
		}
		acceptedConn <- conn
	}()

	clientTransport := NewTLSTransport()
	defer clientTransport.Close()

	clientConn, err := clientTransport.Dial(context.Background(), listener.Addr().String(), DialOptions{
		InsecureSkipVerify: true,
		Timeout:            5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer clientConn.Close()

	if clientConn.TransportType() != TransportTLS {
		t.Errorf("TransportType() = %v, want %v", clientConn.TransportType(), TransportTLS)
	}

	var serverConn Conn
	select {
	case serverConn = <-acceptedConn:
	case err := <-acceptErr:
		t.Fatalf("Accept() error = %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Accept()")
	}
	defer serverConn.Close()

	msg := []byte("hello over tls")
	if _, err := clientConn.Write(msg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	buf := make([]byte, len(msg))
	if _, err := io.ReadFull(serverConn, buf); err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}
	if !bytes.Equal(buf, msg) {
		t.Errorf("got %q, want %q", buf, msg)
	}
}

func TestTLSTransport_DialWithoutTLSConfigOrInsecure(t *testing.T) {
	tr := NewTLSTransport()
	defer tr.Close()

	_, err := tr.Dial(context.Background(), "127.0.0.1:0", DialOptions{})
	if err == nil {
		t.Fatal("expected error when no TLSConfig and InsecureSkipVerify is false")
	}
}

func TestTLSTransport_ListenRequiresTLSConfig(t *testing.T) {
	tr := NewTLSTransport()
	defer tr.Close()

	_, err := tr.Listen("127.0.0.1:0", ListenOptions{})
	if err == nil {
		t.Fatal("expected error when Listen is called without a TLSConfig")
	}
}

func TestTLSTransport_New(t *testing.T) {
	tr, err := New(TransportTLS)
	if err != nil {
		t.Fatalf("New(TransportTLS) error = %v", err)
	}
	if tr.Type() != TransportTLS {
		t.Errorf("Type() = %v, want %v", tr.Type(), TransportTLS)
	}
}
