// Package main is the entry point for the rchat client: a thin CLI
// shell around clientengine.Session (spec.md §1: "not a UI"). It
// reads lines from stdin, sends them as chat messages, and prints
// whatever clientengine.Session.Events delivers.
package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rchat-io/rchat/internal/clientengine"
	"github.com/rchat-io/rchat/internal/config"
	"github.com/rchat-io/rchat/internal/cryptocore"
	"github.com/rchat-io/rchat/internal/logging"
	"github.com/rchat-io/rchat/internal/metrics"
	"github.com/rchat-io/rchat/internal/protocol"
	"github.com/rchat-io/rchat/internal/transport"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "rchat-client",
		Short:   "rchat-client joins or creates an end-to-end encrypted group chat",
		Version: Version,
	}

	rootCmd.AddCommand(createCmd(), joinCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func createCmd() *cobra.Command {
	var configPath, username string
	var maxParticipants uint64
	var oneToOne bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new chat room and wait for others to join",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := protocol.Group(nil)
			if oneToOne {
				kind = protocol.OneToOne()
			} else if maxParticipants > 0 {
				kind = protocol.Group(&maxParticipants)
			}
			return runSession(configPath, username, func(s *clientengine.Session, u string) error {
				return s.CreateChat(u, kind)
			})
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to client config file")
	cmd.Flags().StringVarP(&username, "username", "u", "", "your display name")
	cmd.Flags().Uint64Var(&maxParticipants, "max-participants", 0, "room capacity (group rooms only, default 8)")
	cmd.Flags().BoolVar(&oneToOne, "one-to-one", false, "create a 2-participant room instead of a group")
	return cmd
}

func joinCmd() *cobra.Command {
	var configPath, username string

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join an existing chat room",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(configPath, username, func(s *clientengine.Session, u string) error {
				count, err := s.JoinChat(u)
				if err != nil {
					return err
				}
				fmt.Printf("joined room (%s participants)\n", humanize.Comma(int64(count)))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to client config file")
	cmd.Flags().StringVarP(&username, "username", "u", "", "your display name")
	return cmd
}

// enter is CreateChat or JoinChat, whichever subcommand was invoked.
func runSession(configPath, username string, enter func(*clientengine.Session, string) error) error {
	cfg, err := loadClientConfig(configPath)
	if err != nil {
		return err
	}
	if username != "" {
		cfg.Client.Username = username
	}
	if cfg.Client.Username == "" {
		return fmt.Errorf("--username is required")
	}

	if cfg.Client.ChatCode == "" {
		code, err := promptChatCode()
		if err != nil {
			return err
		}
		cfg.Client.ChatCode = code
	}
	chatCode, err := cryptocore.ParseChatCode(cfg.Client.ChatCode)
	if err != nil {
		return fmt.Errorf("invalid chat code: %w", err)
	}
	defer chatCode.Zero()

	logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	m := metrics.NewMetrics()

	session, err := clientengine.NewSession(chatCode, cfg.Client.MaxSkip, logger, m)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	defer session.Close()

	tr, err := transport.New(transport.TransportType(cfg.Transport.Type))
	if err != nil {
		return err
	}
	defer tr.Close()

	dialOpts := transport.DefaultDialOptions()
	dialOpts.Path = cfg.Transport.Path
	dialOpts.TLSConfig, err = clientTLSConfig(cfg)
	if err != nil {
		return fmt.Errorf("tls config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := tr.Dial(ctx, cfg.Client.RelayAddr, dialOpts)
	if err != nil {
		return fmt.Errorf("dial %s: %w", cfg.Client.RelayAddr, err)
	}
	if err := session.Attach(conn); err != nil {
		return err
	}

	if err := enter(session, cfg.Client.Username); err != nil {
		return err
	}
	fmt.Printf("room: %x\n", session.RoomID()[:8])

	go session.Run(ctx)
	go printEvents(ctx, session)
	go reconnectLoop(ctx, cancel, session, tr, dialOpts, cfg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	linesCh := make(chan string)
	go readLines(linesCh)

	fmt.Println("connected. type a message and press enter; ctrl-c to quit.")
	for {
		select {
		case <-sigCh:
			fmt.Println("\nleaving...")
			session.Leave()
			return nil
		case line, ok := <-linesCh:
			if !ok {
				session.Leave()
				return nil
			}
			if line == "" {
				continue
			}
			if err := session.Send(line); err != nil {
				fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
			}
		}
	}
}

func readLines(out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

func printEvents(ctx context.Context, s *clientengine.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.Events:
			if !ok {
				return
			}
			switch {
			case ev.Message != nil:
				fmt.Printf("[%s] %s: %s\n", ev.Message.Timestamp.Format(time.Kitchen), ev.Message.Username, ev.Message.Content)
			case ev.UserJoined != "":
				fmt.Printf("* %s joined\n", ev.UserJoined)
			case ev.UserLeft != "":
				fmt.Printf("* %s left\n", ev.UserLeft)
			case ev.RelayError != "":
				fmt.Fprintf(os.Stderr, "relay error: %s\n", ev.RelayError)
			case ev.Disconnected:
				fmt.Println("disconnected from relay, reconnecting...")
			}
		}
	}
}

// reconnectLoop watches for the session dropping to Disconnected and
// redials with bounded backoff, re-joining the room and flushing the
// retry table exactly once per successful reconnect. Resend is never
// driven by a free-running timer: spec.md §4.4 step 6 fires it "on
// connection loss, re-send upon reconnect", not merely because an ack
// is slow while the session is still connected and in the room.
func reconnectLoop(ctx context.Context, cancel context.CancelFunc, s *clientengine.Session, tr transport.Transport, dialOpts transport.DialOptions, cfg *config.ClientConfig) {
	poll := time.NewTicker(200 * time.Millisecond)
	defer poll.Stop()
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
		}

		if s.State() != clientengine.StateDisconnected {
			attempt = 0
			continue
		}
		if cfg.Client.Backoff.MaxAttempts > 0 && attempt >= cfg.Client.Backoff.MaxAttempts {
			fmt.Fprintln(os.Stderr, "reconnect attempts exhausted, giving up")
			cancel()
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoffDelay(cfg.Client.Backoff, attempt)):
		}
		attempt++

		conn, err := tr.Dial(ctx, cfg.Client.RelayAddr, dialOpts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reconnect dial failed: %v\n", err)
			continue
		}
		if err := s.Attach(conn); err != nil {
			fmt.Fprintf(os.Stderr, "reconnect attach failed: %v\n", err)
			conn.Close()
			continue
		}
		if _, err := s.JoinChat(cfg.Client.Username); err != nil {
			fmt.Fprintf(os.Stderr, "rejoin failed: %v\n", err)
			continue
		}

		attempt = 0
		fmt.Println("reconnected.")
		go s.Run(ctx)
		s.Resend(ctx)
	}
}

// backoffDelay mirrors clientengine.BackoffConfig.delayForAttempt for
// the reconnect loop, which lives outside that package.
func backoffDelay(cfg config.BackoffSection, attempt int) time.Duration {
	base := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if cfg.MaxDelay > 0 && base > float64(cfg.MaxDelay) {
		base = float64(cfg.MaxDelay)
	}
	if cfg.Jitter <= 0 {
		return time.Duration(base)
	}
	jitterRange := base * cfg.Jitter
	jitter := (rand.Float64() - 0.5) * 2 * jitterRange
	d := time.Duration(base + jitter)
	if d < 0 {
		d = time.Duration(base)
	}
	return d
}

func loadClientConfig(path string) (*config.ClientConfig, error) {
	if path == "" {
		return config.DefaultClientConfig(), nil
	}
	return config.LoadClientConfig(path)
}

// promptChatCode reads the shared chat code without echoing it to the
// terminal, the same hidden-input pattern the teacher used for
// password entry.
func promptChatCode() (string, error) {
	fmt.Print("Enter chat code: ")
	codeBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read chat code: %w", err)
	}
	return string(codeBytes), nil
}

// clientTLSConfig builds the client's TLS config from the configured
// CA material, falling back to skip-verify so `join`/`create` work
// against a relay's self-signed development certificate without extra
// flags.
func clientTLSConfig(cfg *config.ClientConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS13,
		NextProtos:         []string{transport.ALPNProtocol},
		InsecureSkipVerify: cfg.TLS.InsecureSkipVerify || !cfg.TLS.HasCA(),
	}
	if cfg.TLS.HasCA() {
		caPEM, err := cfg.TLS.GetCAPEM()
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsCfg.RootCAs = pool
	}
	return tlsCfg, nil
}
