package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultDialOptions(t *testing.T) {
	opts := DefaultDialOptions()
	if opts.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", opts.Timeout)
	}
}

func TestDefaultListenOptions(t *testing.T) {
	opts := DefaultListenOptions()
	if opts.Path != wsDefaultPath {
		t.Errorf("Path = %q, want %q", opts.Path, wsDefaultPath)
	}
}

func TestGenerateSelfSignedCert(t *testing.T) {
	certPEM, keyPEM, err := GenerateSelfSignedCert("relay.local", time.Hour)
	if err != nil {
		t.Fatalf("GenerateSelfSignedCert() error = %v", err)
	}
	if len(certPEM) == 0 || len(keyPEM) == 0 {
		t.Fatal("expected non-empty cert/key PEM")
	}

	cfg, err := TLSConfigFromBytes(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("TLSConfigFromBytes() error = %v", err)
	}
	if cfg.MinVersion != tls.VersionTLS13 {
		t.Errorf("MinVersion = %v, want TLS1.3", cfg.MinVersion)
	}
	if len(cfg.NextProtos) != 1 || cfg.NextProtos[0] != ALPNProtocol {
		t.Errorf("NextProtos = %v, want [%s]", cfg.NextProtos, ALPNProtocol)
	}
}

func TestGenerateAndSaveCert(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")

	if err := GenerateAndSaveCert(certFile, keyFile, "relay.local", time.Hour); err != nil {
		t.Fatalf("GenerateAndSaveCert() error = %v", err)
	}

	if _, err := os.Stat(certFile); err != nil {
		t.Errorf("cert file not written: %v", err)
	}
	if _, err := os.Stat(keyFile); err != nil {
		t.Errorf("key file not written: %v", err)
	}

	cfg, err := LoadTLSConfig(certFile, keyFile)
	if err != nil {
		t.Fatalf("LoadTLSConfig() error = %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Errorf("expected one certificate, got %d", len(cfg.Certificates))
	}
}

func TestLoadClientTLSConfig_SkipsVerifyByDefault(t *testing.T) {
	cfg, err := LoadClientTLSConfig("", false)
	if err != nil {
		t.Fatalf("LoadClientTLSConfig() error = %v", err)
	}
	if !cfg.InsecureSkipVerify {
		t.Error("expected InsecureSkipVerify=true when strictVerify=false")
	}
}

func TestLoadClientTLSConfig_StrictVerify(t *testing.T) {
	cfg, err := LoadClientTLSConfig("", true)
	if err != nil {
		t.Fatalf("LoadClientTLSConfig() error = %v", err)
	}
	if cfg.InsecureSkipVerify {
		t.Error("expected InsecureSkipVerify=false when strictVerify=true")
	}
}

func TestCloneTLSConfig_Nil(t *testing.T) {
	if got := CloneTLSConfig(nil); got != nil {
		t.Errorf("CloneTLSConfig(nil) = %v, want nil", got)
	}
}

func TestQUICTransport_DialListenRoundTrip(t *testing.T) {
	certPEM, keyPEM, err := GenerateSelfSignedCert("127.0.0.1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateSelfSignedCert() error = %v", err)
	}
	serverTLS, err := TLSConfigFromBytes(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("TLSConfigFromBytes() error = %v", err)
	}

	serverTransport := NewQUICTransport()
	defer serverTransport.Close()

	listener, err := serverTransport.Listen("127.0.0.1:0", ListenOptions{TLSConfig: serverTLS})
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

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

	clientTransport := NewQUICTransport()
	defer clientTransport.Close()

	clientConn, err := clientTransport.Dial(context.Background(), listener.Addr().String(), DialOptions{
		InsecureSkipVerify: true,
		Timeout:            5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer clientConn.Close()

	if clientConn.TransportType() != TransportQUIC {
		t.Errorf("TransportType() = %v, want %v", clientConn.TransportType(), TransportQUIC)
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

	msg := []byte("hello over quic")
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
