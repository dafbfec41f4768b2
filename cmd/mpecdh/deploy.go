package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taurusgroup/multi-party-ecdh/pkg/transport"
)

var (
	deployRemote      remoteFlags
	deployGroup       string
	deployCorrectable bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a ceremony for the wallet of a server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		resp, err := transport.Deploy(cmd.Context(), deployRemote.server, transport.DeployRequest{
			Group:                deployGroup,
			AllowRoundCorrection: deployCorrectable,
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ceremony: %s\n", resp.ID)
		for i, id := range resp.Participants {
			fmt.Fprintf(out, "  %d: %s\n", i, id)
		}
		return nil
	},
}

func init() {
	deployRemote.register(deployCmd, false)
	deployCmd.Flags().StringVar(&deployGroup, "group", "", "group of the ceremony (x25519 or secp256k1)")
	deployCmd.Flags().BoolVar(&deployCorrectable, "allow-round-correction", false, "let participants replace a submission until the round seals")
}
