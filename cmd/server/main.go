// Command carimport runs the car import brokerage site and its maintenance tasks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string
	rootCmd := &cobra.Command{
		Use:           "carimport",
		Short:         "Car import brokerage: public site, customer portal and back office",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file (env CARIMPORT_* overrides it)")

	rootCmd.AddCommand(
		newServeCmd(&configFile),
		newMigrateCmd(&configFile),
		newSeedAdminCmd(&configFile),
	)
	return rootCmd
}
