// Package main is the entry point for the rchat relay: the untrusted
// routing process that fans encrypted messages out to room
// participants without ever holding a key capable of reading them
// (spec.md §4.3).
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rchat-io/rchat/internal/config"
	"github.com/rchat-io/rchat/internal/health"
	"github.com/rchat-io/rchat/internal/logging"
	"github.com/rchat-io/rchat/internal/metrics"
	"github.com/rchat-io/rchat/internal/relay"
	"github.com/rchat-io/rchat/internal/transport"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "rchat-relay",
		Short:   "rchat-relay routes encrypted group-chat messages between clients",
		Long:    "rchat-relay is the untrusted routing process of rchat: it creates rooms, tracks membership, and fans out sealed messages it cannot decrypt.",
		Version: Version,
	}

	rootCmd.AddCommand(runCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
			m := metrics.NewMetrics()

			tlsConfig, err := relayTLSConfig(cfg)
			if err != nil {
				return fmt.Errorf("tls config: %w", err)
			}

			tr, err := transport.New(transport.TransportType(cfg.Transport.Type))
			if err != nil {
				return err
			}
			defer tr.Close()

			ln, err := tr.Listen(cfg.Relay.ListenAddr, transport.ListenOptions{
				TLSConfig: tlsConfig,
				Path:      cfg.Transport.Path,
			})
			if err != nil {
				return fmt.Errorf("listen on %s: %w", cfg.Relay.ListenAddr, err)
			}
			defer ln.Close()

			mgr := relay.NewManager(logger, m)

			var healthSrv *health.Server
			if cfg.Health.Enabled {
				healthSrv = health.NewServer(health.ServerConfig{
					Address:      cfg.Health.Address,
					ReadTimeout:  10 * time.Second,
					WriteTimeout: 10 * time.Second,
				}, managerStatsAdapter{mgr})
				if err := healthSrv.Start(); err != nil {
					return fmt.Errorf("start health server: %w", err)
				}
				defer healthSrv.Stop()
				logger.Info("health server listening", logging.KeyLocalAddr, cfg.Health.Address)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			serveErr := make(chan error, 1)
			go func() { serveErr <- mgr.Serve(ctx, ln) }()

			logger.Info("relay listening",
				logging.KeyLocalAddr, cfg.Relay.ListenAddr,
				logging.KeyTransport, cfg.Transport.Type,
			)
			fmt.Printf("rchat-relay listening on %s (%s)\n", cfg.Relay.ListenAddr, cfg.Transport.Type)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-sigCh:
				fmt.Printf("\nreceived signal %v, shutting down...\n", sig)
			case err := <-serveErr:
				if err != nil {
					logger.Error("relay serve loop exited", logging.KeyError, err)
				}
			}

			cancel()
			mgr.Wait()
			fmt.Println("relay stopped.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to relay config file (defaults if omitted)")
	return cmd
}

func loadConfig(path string) (*config.RelayConfig, error) {
	if path == "" {
		return config.DefaultRelayConfig(), nil
	}
	return config.LoadRelayConfig(path)
}

// relayTLSConfig builds the relay's server-side TLS config from the
// configured cert/key material. Every transport's Listen rejects a nil
// config, so an empty TLSSection is treated as "self-signed" rather
// than "insecure" to keep `run` usable with zero configuration.
func relayTLSConfig(cfg *config.RelayConfig) (*tls.Config, error) {
	if cfg.TLS.HasCert() && cfg.TLS.HasKey() {
		certPEM, err := cfg.TLS.GetCertPEM()
		if err != nil {
			return nil, err
		}
		keyPEM, err := cfg.TLS.GetKeyPEM()
		if err != nil {
			return nil, err
		}
		return transport.TLSConfigFromBytes(certPEM, keyPEM)
	}

	certPEM, keyPEM, err := transport.GenerateSelfSignedCert("rchat-relay", 365*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("generate self-signed cert: %w", err)
	}
	return transport.TLSConfigFromBytes(certPEM, keyPEM)
}

// managerStatsAdapter adapts relay.Manager's Stats to health.Stats so
// the health package never has to import the relay package.
type managerStatsAdapter struct {
	mgr *relay.Manager
}

func (a managerStatsAdapter) Stats() health.Stats {
	s := a.mgr.Stats()
	return health.Stats{RoomCount: s.RoomCount, ParticipantCount: s.ParticipantCount}
}
