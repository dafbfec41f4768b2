package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// remoteFlags are shared by the commands talking to a server.
type remoteFlags struct {
	server   string
	ceremony string
}

func (f *remoteFlags) register(cmd *cobra.Command, withCeremony bool) {
	cmd.Flags().StringVar(&f.server, "server", "http://localhost:8080", "base URL of the mpecdh server")
	if withCeremony {
		cmd.Flags().StringVar(&f.ceremony, "ceremony", "", "ceremony ID")
	}
}

func (f *remoteFlags) requireCeremony() error {
	if f.ceremony == "" {
		return fmt.Errorf("--ceremony is required")
	}
	return nil
}
