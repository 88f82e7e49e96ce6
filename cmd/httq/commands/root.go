package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/TheusHen/HTTQ/httq"
	"github.com/TheusHen/HTTQ/httq/config"
	"github.com/TheusHen/HTTQ/httq/keys"
	"github.com/TheusHen/HTTQ/httq/logging"
	"github.com/TheusHen/HTTQ/httq/mesh"
	"github.com/TheusHen/HTTQ/httq/transport"
	"github.com/TheusHen/HTTQ/httq/transport/grpcrelay"
	"github.com/TheusHen/HTTQ/httq/transport/quic"
)

var (
	configPath string
	logLevel   string
	logFormat  string
)

func Execute() error {
	return newRootCmd().ExecuteContext(context.Background())
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "httq",
		Short:        "HTTQ relay mesh node and tools",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "node.toml", "node configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug|info|warn|error or 1-7 (overrides config)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "text|json (overrides config)")

	root.AddCommand(keygenCmd(), idCmd(), initConfigCmd(), orbitalCmd(), sendCmd())
	return root
}

// loadNode reads the configuration and the keyring it points at.
func loadNode() (*config.Config, *keys.Keyring, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	opts := cfg.Logging()
	if logLevel != "" {
		opts.Level = logLevel
	}
	if logFormat != "" {
		opts.Format = logFormat
	}
	log, err := logging.NewWithOptions(opts, os.Stderr)
	if err != nil {
		return nil, nil, nil, err
	}
	kr, err := keys.LoadKeyring(cfg.Node.KeyFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load keyring: %w", err)
	}
	return cfg, kr, log, nil
}

func newSender(cfg *config.Config) transport.Sender {
	if cfg.Node.Transport == config.TransportGRPC {
		return grpcrelay.NewTransport(grpcrelay.DialOptions{Timeout: cfg.SendTimeout()})
	}
	return quic.NewTransport()
}

func newServer(cfg *config.Config, log *slog.Logger) (transport.Server, error) {
	if cfg.Node.Transport == config.TransportGRPC {
		return grpcrelay.Listen(cfg.Node.Listen)
	}
	return quic.Listen(cfg.Node.Listen, log)
}

// newOrbital builds an Orbital from cfg with the static peers applied.
func newOrbital(cfg *config.Config, kr *keys.Keyring, log *slog.Logger, sender transport.Sender) (*httq.Orbital, error) {
	dir := keys.NewDirectory()
	topo := mesh.New()
	if err := cfg.Apply(kr.Identity(), dir, topo); err != nil {
		return nil, err
	}
	return httq.NewOrbital(httq.Options{
		Keyring:         kr,
		Directory:       dir,
		Topology:        topo,
		Sender:          sender,
		Addr:            cfg.AdvertiseAddr(),
		Capabilities:    map[string]string{"transport": cfg.Node.Transport},
		Logger:          log,
		DefaultTTL:      cfg.Node.DefaultTTL,
		ReplayCacheSize: cfg.Node.ReplayCache,
		PendingMessages: cfg.Node.PendingMessages,
		Compression:     cfg.Compression(),
		ShardSize:       cfg.Node.ShardSize,
		ParityShards:    cfg.Node.ParityShards,
	})
}
