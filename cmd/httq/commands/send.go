package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/TheusHen/HTTQ/httq/identity"
)

func sendCmd() *cobra.Command {
	var (
		to       string
		message  string
		announce bool
	)
	cmd := &cobra.Command{
		Use:   "send --to httq://<digest> [--message text]",
		Short: "Send one message through the mesh; reads stdin without --message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dst, err := identity.ParseURI(to)
			if err != nil {
				return err
			}
			msg := []byte(message)
			if message == "" {
				if msg, err = io.ReadAll(io.LimitReader(os.Stdin, 64<<20)); err != nil {
					return err
				}
			}

			cfg, kr, log, err := loadNode()
			if err != nil {
				return err
			}
			sender := newSender(cfg)
			defer sender.Close()
			orb, err := newOrbital(cfg, kr, log, sender)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.SendTimeout())
			defer cancel()
			if announce {
				if err := orb.Announce(ctx); err != nil {
					log.Warn("announce failed", "error", err)
				}
			}
			if err := orb.Send(ctx, dst, msg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d bytes to %s\n", len(msg), dst)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "destination QIK")
	cmd.Flags().StringVarP(&message, "message", "m", "", "message text")
	cmd.Flags().BoolVar(&announce, "announce", false, "announce this node before sending")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
