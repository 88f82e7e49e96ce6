package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TheusHen/HTTQ/httq/config"
)

func initConfigCmd() *cobra.Command {
	var (
		keyFile string
		listen  string
		tr      string
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a default node configuration to --config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("%s exists, use --force to overwrite", configPath)
			}
			cfg := config.Default()
			if keyFile != "" {
				cfg.Node.KeyFile = keyFile
			}
			if listen != "" {
				cfg.Node.Listen = listen
			}
			if tr != "" {
				cfg.Node.Transport = tr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(configPath, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", configPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "key-file", "", "keyring file, relative to the config")
	cmd.Flags().StringVar(&listen, "listen", "", "listen address")
	cmd.Flags().StringVar(&tr, "transport", "", "quic|grpc")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
