package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TheusHen/HTTQ/httq"
)

func orbitalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "orbital",
		Short: "Run an Orbital: relay packets and print messages addressed to it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, kr, log, err := loadNode()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sender := newSender(cfg)
			defer sender.Close()
			srv, err := newServer(cfg, log)
			if err != nil {
				return err
			}
			defer srv.Close()

			orb, err := newOrbital(cfg, kr, log, sender)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			orb.OnMessage(func(m httq.Message) {
				fmt.Fprintf(out, "%s: %s\n", m.From, m.Payload)
			})

			log.Info("orbital listening",
				"id", orb.Identity().String(),
				"addr", srv.Addr(),
				"transport", cfg.Node.Transport,
				"peers", len(cfg.Peers))
			go orb.AnnounceEvery(ctx, cfg.AnnounceInterval())

			err = orb.Serve(ctx, srv)
			st := orb.Stats()
			log.Info("orbital stopped",
				"received", st.Received,
				"delivered", st.Delivered,
				"forwarded", st.Forwarded,
				"dropped", st.Dropped)
			if err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}
