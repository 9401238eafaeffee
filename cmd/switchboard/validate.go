package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"switchboard-net/switchboard/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Validate the configuration file without starting the server.

Every violation is reported, not just the first one found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.LoadConfigWithEnvOverrides(cfgFile)
		if err != nil {
			var verr config.ValidationError
			if errors.As(err, &verr) {
				fmt.Printf("✗ %s is invalid:\n", cfgFile)
				for _, fe := range verr.Errors {
					fmt.Printf("  - %s\n", fe.Error())
				}
				return fmt.Errorf("%d validation error(s)", len(verr.Errors))
			}
			return err
		}
		fmt.Printf("✓ %s is valid\n", cfgFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
