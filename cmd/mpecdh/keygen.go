package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taurusgroup/multi-party-ecdh/pkg/identity"
)

var keygenOut string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a participant identity key",
	Long: "Generate an ed25519 identity key and write it to a PEM file.\n" +
		"The printed public key is what the wallet configuration lists as an owner.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := identity.GenerateEd25519Signer(rand.Reader)
		if err != nil {
			return err
		}
		if err = identity.WriteKeyFile(s, keygenOut); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "address:    %s\npublic key: %s\n", s.ID(), hex.EncodeToString(s.PublicKey()))
		return nil
	},
}

func init() {
	keygenCmd.Flags().StringVarP(&keygenOut, "out", "o", "mpecdh.pem", "path of the key file to create")
}
