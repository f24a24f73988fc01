// Package config provides YAML configuration loading and validation for
// the rchat relay and client processes.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RelayConfig is the complete configuration for a relay process.
type RelayConfig struct {
	Relay     RelaySection     `yaml:"relay"`
	Transport TransportSection `yaml:"transport"`
	TLS       TLSSection       `yaml:"tls"`
	Health    HealthSection    `yaml:"health"`
	Logging   LoggingSection   `yaml:"logging"`
}

// RelaySection holds the relay's own operating parameters (spec.md §4.3).
type RelaySection struct {
	// ListenAddr is the host:port (or, for websocket, host:port plus the
	// Transport.Path) the relay accepts connections on.
	ListenAddr string `yaml:"listen_addr"`

	// MaxFrameSize is parsed but not passed to the relay: relay
	// connections always apply protocol.DefaultMaxFrameSize.
	MaxFrameSize uint32 `yaml:"max_frame_size"`

	// DefaultGroupCapacity is parsed and validated (0 or at least 2) but
	// not passed to the relay: a Group room without an explicit
	// max_participants always gets protocol.DefaultGroupCapacity.
	DefaultGroupCapacity uint64 `yaml:"default_group_capacity"`

	// IdleTimeout is parsed but not passed to the relay, which closes no
	// connection for being idle.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// TransportSection selects and configures the wire transport (spec.md
// §B.1 / SPEC_FULL.md: tls, quic, or ws).
type TransportSection struct {
	// Type is one of "tls", "quic", "ws".
	Type string `yaml:"type"`

	// Path is the HTTP path the websocket transport serves/dials on.
	Path string `yaml:"path"`
}

// TLSSection mirrors the teacher's GlobalTLSConfig: certificate material
// usable either as file paths or inline PEM, the latter taking
// precedence. Every rchat transport (including ws, which still runs over
// TLS) is configured through this one section.
type TLSSection struct {
	CA      string `yaml:"ca"`
	CAPEM   string `yaml:"ca_pem"`
	Cert    string `yaml:"cert"`
	Key     string `yaml:"key"`
	CertPEM string `yaml:"cert_pem"`
	KeyPEM  string `yaml:"key_pem"`

	// InsecureSkipVerify disables certificate verification. Development
	// only: rchat's end-to-end encryption protects message content
	// regardless, but TLS still protects room-membership metadata.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// GetCAPEM returns the CA certificate PEM, reading from file if CAPEM is
// not set inline.
func (t *TLSSection) GetCAPEM() ([]byte, error) {
	if t.CAPEM != "" {
		return []byte(t.CAPEM), nil
	}
	if t.CA != "" {
		return os.ReadFile(t.CA)
	}
	return nil, nil
}

// GetCertPEM returns the certificate PEM, reading from file if CertPEM is
// not set inline.
func (t *TLSSection) GetCertPEM() ([]byte, error) {
	if t.CertPEM != "" {
		return []byte(t.CertPEM), nil
	}
	if t.Cert != "" {
		return os.ReadFile(t.Cert)
	}
	return nil, nil
}

// GetKeyPEM returns the private key PEM, reading from file if KeyPEM is
// not set inline.
func (t *TLSSection) GetKeyPEM() ([]byte, error) {
	if t.KeyPEM != "" {
		return []byte(t.KeyPEM), nil
	}
	if t.Key != "" {
		return os.ReadFile(t.Key)
	}
	return nil, nil
}

func (t *TLSSection) HasCA() bool   { return t.CA != "" || t.CAPEM != "" }
func (t *TLSSection) HasCert() bool { return t.Cert != "" || t.CertPEM != "" }
func (t *TLSSection) HasKey() bool  { return t.Key != "" || t.KeyPEM != "" }

// HealthSection configures the relay's trimmed liveness/metrics HTTP
// surface (SPEC_FULL.md §B.3).
type HealthSection struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoggingSection configures the shared slog-based logger both processes
// use (SPEC_FULL.md §A).
type LoggingSection struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ClientConfig is the complete configuration for a client process.
type ClientConfig struct {
	Client    ClientSection    `yaml:"client"`
	Transport TransportSection `yaml:"transport"`
	TLS       TLSSection       `yaml:"tls"`
	Logging   LoggingSection   `yaml:"logging"`
}

// ClientSection holds the per-session parameters a ClientEngine needs
// (spec.md §4.4).
type ClientSection struct {
	// RelayAddr is the relay's host:port to dial.
	RelayAddr string `yaml:"relay_addr"`

	// ChatCode is the out-of-band shared secret (spec.md §3, §4.1): a
	// 6-digit numeric code or a 64-byte unpadded-base64 value. Left empty,
	// cmd/rchat-client prompts for it instead of reading it from the
	// config file, so it never has to be committed to disk.
	ChatCode string `yaml:"chat_code"`

	// Username is this participant's display name. The client sends it as
	// written; the relay compares usernames NFC-normalized when checking
	// uniqueness (SPEC_FULL.md §B.2).
	Username string `yaml:"username"`

	// MaxSkip bounds the per-sender ratchet's forward skip-ahead
	// distance; 0 means cryptocore.DefaultMaxSkip.
	MaxSkip uint64 `yaml:"max_skip"`

	// Backoff paces cmd/rchat-client's reconnect loop (delay curve and
	// attempt cap), grounded on the teacher's reconnect backoff shape
	// (SPEC_FULL.md §C.1). The session's unacknowledged-send retry table
	// does not read it; it uses clientengine.DefaultBackoffConfig.
	Backoff BackoffSection `yaml:"backoff"`
}

// BackoffSection is the YAML-facing twin of clientengine.BackoffConfig.
type BackoffSection struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	MaxAttempts  int           `yaml:"max_attempts"`
	Jitter       float64       `yaml:"jitter"`
}

// DefaultRelayConfig returns a RelayConfig with sensible defaults.
func DefaultRelayConfig() *RelayConfig {
	return &RelayConfig{
		Relay: RelaySection{
			ListenAddr:           ":6666",
			MaxFrameSize:         1 << 20,
			DefaultGroupCapacity: 8,
			IdleTimeout:          10 * time.Minute,
		},
		Transport: TransportSection{
			Type: "tls",
			Path: "/rchat",
		},
		Health: HealthSection{
			Enabled: true,
			Address: "127.0.0.1:9090",
		},
		Logging: LoggingSection{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultClientConfig returns a ClientConfig with sensible defaults.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Client: ClientSection{
			MaxSkip: 1 << 16,
			Backoff: BackoffSection{
				InitialDelay: 500 * time.Millisecond,
				MaxDelay:     30 * time.Second,
				Multiplier:   2.0,
				MaxAttempts:  5,
				Jitter:       0.2,
			},
		},
		Transport: TransportSection{
			Type: "tls",
			Path: "/rchat",
		},
		Logging: LoggingSection{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadRelayConfig reads and parses a relay configuration file.
func LoadRelayConfig(path string) (*RelayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseRelayConfig(data)
}

// ParseRelayConfig parses relay configuration from YAML bytes.
func ParseRelayConfig(data []byte) (*RelayConfig, error) {
	cfg := DefaultRelayConfig()
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadClientConfig reads and parses a client configuration file.
func LoadClientConfig(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseClientConfig(data)
}

// ParseClientConfig parses client configuration from YAML bytes.
func ParseClientConfig(data []byte) (*ClientConfig, error) {
	cfg := DefaultClientConfig()
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// envVarRegex matches ${VAR} or $VAR patterns.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces environment variable references with their
// values, so a chat_code or relay_addr can come from the environment
// instead of the file.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}

		if idx := strings.Index(name, ":-"); idx != -1 {
			varName := name[:idx]
			defaultVal := name[idx+2:]
			if val, ok := os.LookupEnv(varName); ok {
				return val
			}
			return defaultVal
		}

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

var validTransportTypes = map[string]bool{"tls": true, "quic": true, "ws": true}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

func isValidLogFormat(format string) bool {
	return format == "text" || format == "json"
}

// Validate checks the relay configuration for errors.
func (c *RelayConfig) Validate() error {
	var errs []string

	if c.Relay.ListenAddr == "" {
		errs = append(errs, "relay.listen_addr is required")
	}
	if !validTransportTypes[c.Transport.Type] {
		errs = append(errs, fmt.Sprintf("invalid transport.type: %s (must be tls, quic, or ws)", c.Transport.Type))
	}
	if !isValidLogLevel(c.Logging.Level) {
		errs = append(errs, fmt.Sprintf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level))
	}
	if !isValidLogFormat(c.Logging.Format) {
		errs = append(errs, fmt.Sprintf("invalid logging.format: %s (must be text or json)", c.Logging.Format))
	}
	if c.TLS.HasCert() != c.TLS.HasKey() {
		errs = append(errs, "tls.cert and tls.key must both be specified or both be empty")
	}
	if c.Health.Enabled && c.Health.Address == "" {
		errs = append(errs, "health.address is required when health.enabled is true")
	}
	if c.Relay.DefaultGroupCapacity != 0 && c.Relay.DefaultGroupCapacity < 2 {
		errs = append(errs, "relay.default_group_capacity must be at least 2")
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Validate checks the client configuration for errors.
func (c *ClientConfig) Validate() error {
	var errs []string

	if c.Client.RelayAddr == "" {
		errs = append(errs, "client.relay_addr is required")
	}
	if !validTransportTypes[c.Transport.Type] {
		errs = append(errs, fmt.Sprintf("invalid transport.type: %s (must be tls, quic, or ws)", c.Transport.Type))
	}
	if !isValidLogLevel(c.Logging.Level) {
		errs = append(errs, fmt.Sprintf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level))
	}
	if !isValidLogFormat(c.Logging.Format) {
		errs = append(errs, fmt.Sprintf("invalid logging.format: %s (must be text or json)", c.Logging.Format))
	}
	if c.Client.Backoff.MaxAttempts < 0 {
		errs = append(errs, "client.backoff.max_attempts must not be negative")
	}
	if c.Client.Backoff.Multiplier != 0 && c.Client.Backoff.Multiplier < 1 {
		errs = append(errs, "client.backoff.multiplier must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Redacted returns a copy of c with secret material replaced by a
// placeholder, safe to log or print.
func (c *RelayConfig) Redacted() *RelayConfig {
	redacted := *c
	if redacted.TLS.KeyPEM != "" {
		redacted.TLS.KeyPEM = "[REDACTED]"
	}
	if redacted.TLS.Key != "" {
		redacted.TLS.Key = "[REDACTED path]"
	}
	return &redacted
}

// Redacted returns a copy of c with secret material replaced by a
// placeholder, safe to log or print. The chat code is always redacted:
// it is the one out-of-band secret every participant needs, and an
// operator pasting config output is the likeliest leak path.
func (c *ClientConfig) Redacted() *ClientConfig {
	redacted := *c
	if redacted.Client.ChatCode != "" {
		redacted.Client.ChatCode = "[REDACTED]"
	}
	if redacted.TLS.KeyPEM != "" {
		redacted.TLS.KeyPEM = "[REDACTED]"
	}
	if redacted.TLS.Key != "" {
		redacted.TLS.Key = "[REDACTED path]"
	}
	return &redacted
}
