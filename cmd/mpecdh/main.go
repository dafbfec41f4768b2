// Command mpecdh runs sequential multi-party Diffie-Hellman ceremonies.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Path to the configuration file.
	configFile string

	rootCmd = &cobra.Command{
		Use:          "mpecdh",
		Short:        "Multi-party ECDH ceremonies gated by a multi-signer wallet",
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to the YAML configuration file")
	rootCmd.AddCommand(
		serveCmd,
		keygenCmd,
		deployCmd,
		runCmd,
		statusCmd,
		reconstructCmd,
		simulateCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
