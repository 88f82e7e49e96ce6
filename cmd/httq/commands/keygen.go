package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TheusHen/HTTQ/httq/crypto"
	"github.com/TheusHen/HTTQ/httq/keys"
)

func keygenCmd() *cobra.Command {
	var (
		scheme string
		box    string
		out    string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a keyring and print its QIK",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := keys.ParseScheme(scheme)
			if err != nil {
				return err
			}
			b, err := crypto.BoxByName(box)
			if err != nil {
				return err
			}
			kr, err := keys.NewKeyring(s, b)
			if err != nil {
				return err
			}
			if err := kr.Save(out, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Keyring written to %s\nQIK: %s\n", out, kr.Identity())
			return nil
		},
	}
	cmd.Flags().StringVar(&scheme, "scheme", string(keys.Ed25519), "signing scheme: ed25519|dilithium3")
	cmd.Flags().StringVar(&box, "box", crypto.SealedBox{}.Name(), "payload encryption: x25519|hybrid")
	cmd.Flags().StringVarP(&out, "out", "o", "keyring.toml", "keyring file to write")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing keyring")
	return cmd
}
