package commands

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/TheusHen/HTTQ/httq/config"
	"github.com/TheusHen/HTTQ/httq/keys"
)

func idCmd() *cobra.Command {
	var (
		peer    bool
		address string
		latency uint32
	)
	cmd := &cobra.Command{
		Use:   "id <keyring>",
		Short: "Print the QIK of a keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kr, err := keys.LoadKeyring(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if !peer {
				fmt.Fprintln(w, kr.Identity())
				return nil
			}
			// A [[peer]] block other nodes paste into their config.
			p := config.PeerFromEntry(kr.Entry(), address, 0, config.SelfLink)
			p.LatencyMS = latency
			return toml.NewEncoder(w).Encode(struct {
				Peers []config.Peer `toml:"peer"`
			}{[]config.Peer{p}})
		},
	}
	cmd.Flags().BoolVar(&peer, "peer", false, "print a [[peer]] config block instead")
	cmd.Flags().StringVar(&address, "address", "", "address to put in the peer block")
	cmd.Flags().Uint32Var(&latency, "latency-ms", 0, "link latency to put in the peer block")
	return cmd
}
