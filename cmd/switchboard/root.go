package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "switchboard",
	Short: "Switchboard - dual-protocol connection negotiator",
	Long: `Switchboard is a server-side connection negotiator for listeners that
speak both HTTP/1.1 and HTTP/2 on the same port.

Each accepted connection is committed to exactly one protocol pipeline:
  - ALPN drives the decision on TLS listeners, with a configurable
    fallback when the peer negotiates nothing
  - Admission control bounds concurrent connections; excess connections
    queue instead of failing
  - Requests and responses are correlated per connection, so multiplexed
    responses can complete out of order
  - Connection lifecycles are journaled for later inspection`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
