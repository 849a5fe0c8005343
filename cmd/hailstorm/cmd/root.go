// Package cmd implements the hailstorm CLI surface: one subcommand per
// Project Coordinator operation, grounded on armadactl's RootCmd/AddCommand
// factory-function layout (_examples/armadaproject-armada/cmd/armadactl/cmd).
package cmd

import (
	"github.com/spf13/cobra"
)

// RootCmd is the root Cobra command invoked from main. All other
// subcommands are registered here.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hailstorm",
		Short:         "hailstorm orchestrates distributed JMeter load tests across elastic and fixed clusters.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	bindPersistentFlags(root)

	root.AddCommand(
		versionCmd(),
		projectCmd(),
		setupCmd(),
		startCmd(),
		stopCmd(),
		abortCmd(),
		terminateCmd(),
		statusCmd(),
		resultsCmd(),
		purgeCmd(),
		ingestPlanCmd(),
	)

	return root
}
