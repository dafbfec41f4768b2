package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taurusgroup/multi-party-ecdh/pkg/transport"
	"github.com/taurusgroup/multi-party-ecdh/protocols/mpecdh"
)

var (
	reconstructRemote    remoteFlags
	reconstructApprovers []string
)

var reconstructCmd = &cobra.Command{
	Use:   "reconstruct",
	Short: "Reset a remote ceremony with the approval of a threshold of owners",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := reconstructRemote.requireCeremony(); err != nil {
			return err
		}
		signers, err := readSigners(reconstructApprovers)
		if err != nil {
			return err
		}
		if len(signers) == 0 {
			return fmt.Errorf("at least one --approver is required")
		}

		client := transport.NewClient(reconstructRemote.server, reconstructRemote.ceremony, signers[0])
		epoch, err := client.Epoch(cmd.Context())
		if err != nil {
			return err
		}
		approvals := make([]mpecdh.Approval, 0, len(signers))
		for _, s := range signers {
			a, err := mpecdh.Approve(s, reconstructRemote.ceremony, epoch)
			if err != nil {
				return err
			}
			approvals = append(approvals, a)
		}
		next, err := client.Reconstruct(cmd.Context(), approvals)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ceremony %s reset, epoch %d -> %d\n", reconstructRemote.ceremony, epoch, next)
		return nil
	},
}

func init() {
	reconstructRemote.register(reconstructCmd, true)
	reconstructCmd.Flags().StringSliceVar(&reconstructApprovers, "approver", nil, "identity key file of an approving owner (repeatable)")
}
