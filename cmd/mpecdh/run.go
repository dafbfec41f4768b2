package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taurusgroup/multi-party-ecdh/pkg/identity"
	"github.com/taurusgroup/multi-party-ecdh/pkg/transport"
	"github.com/taurusgroup/multi-party-ecdh/protocols/mpecdh"
)

var (
	runRemote  remoteFlags
	runKeyFile string
	runKeyOut  string
	runKeySize int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive one participant through a remote ceremony",
	Long: "Drive one participant through a remote ceremony, attest to the result and wait\n" +
		"for every participant to do the same. The shared secret never leaves the process;\n" +
		"with --key-out a key derived from it is written to a file.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := runRemote.requireCeremony(); err != nil {
			return err
		}
		env, err := newEnvironment()
		if err != nil {
			return err
		}
		s, err := identity.ReadKeyFile(runKeyFile)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client := transport.NewClient(runRemote.server, runRemote.ceremony, s)
		d := mpecdh.NewDriver(client, env.options()...)
		res, err := d.Run(ctx, s)
		if err != nil {
			return err
		}
		verdict, err := d.AwaitVerdict(ctx)
		if err != nil {
			return fmt.Errorf("verdict %s: %w", verdict, err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "party:   %s\nepoch:   %d\ntag:     %s\nverdict: %s\n",
			res.ID, res.Epoch, hex.EncodeToString(res.Tag()), verdict)
		if runKeyOut == "" {
			return nil
		}
		key, err := res.Key(runKeySize)
		if err != nil {
			return err
		}
		return os.WriteFile(runKeyOut, []byte(hex.EncodeToString(key)+"\n"), 0o600)
	},
}

func init() {
	runRemote.register(runCmd, true)
	runCmd.Flags().StringVar(&runKeyFile, "key", "mpecdh.pem", "identity key file of the participant")
	runCmd.Flags().StringVar(&runKeyOut, "key-out", "", "write a key derived from the shared secret to this file")
	runCmd.Flags().IntVar(&runKeySize, "key-size", 32, "size in bytes of the derived key")
}
