// Package cmd holds the recherche command line.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/recherche/internal/config"
)

// RootCmd is the root Cobra command that gets called from the main func.
func RootCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:           "recherche",
		Short:         "recherche indexes and searches person records",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&env, "env", config.GetEnv(), "configuration environment (config/<env>.yaml)")

	cmd.AddCommand(
		serveCmd(&env),
		loadtestCmd(&env),
		versionCmd(),
	)
	return cmd
}
