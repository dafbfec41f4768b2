package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taurusgroup/multi-party-ecdh/pkg/identity"
	"github.com/taurusgroup/multi-party-ecdh/pkg/transport"
)

var (
	statusRemote  remoteFlags
	statusKeyFile string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a remote ceremony",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := statusRemote.requireCeremony(); err != nil {
			return err
		}
		s, err := identity.ReadKeyFile(statusKeyFile)
		if err != nil {
			return err
		}
		client := transport.NewClient(statusRemote.server, statusRemote.ceremony, s)
		st, err := client.Status(cmd.Context(), s.ID())
		if err != nil {
			return err
		}
		verdict, err := client.Verdict(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ceremony:  %s\n", client.ID())
		fmt.Fprintf(out, "group:     %s\n", st.Group)
		fmt.Fprintf(out, "ssid:      %s\n", hex.EncodeToString(st.SSID))
		fmt.Fprintf(out, "parties:   %d\n", st.N)
		fmt.Fprintf(out, "epoch:     %d\n", st.Epoch)
		fmt.Fprintf(out, "round:     %d\n", st.Round)
		fmt.Fprintf(out, "complete:  %t\n", st.Complete)
		fmt.Fprintf(out, "submitted: %t\n", st.Submitted)
		fmt.Fprintf(out, "verdict:   %s\n", verdict)
		for _, id := range st.Missing {
			fmt.Fprintf(out, "missing:   %s\n", id)
		}
		return nil
	},
}

func init() {
	statusRemote.register(statusCmd, true)
	statusCmd.Flags().StringVar(&statusKeyFile, "key", "mpecdh.pem", "identity key file of a participant")
}
