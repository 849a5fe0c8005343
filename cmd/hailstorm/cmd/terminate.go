package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func terminateCmd() *cobra.Command {
	c := &cobra.Command{
		Use:     "terminate <project-code>",
		Short:   "Release every cluster's backend resources and clear the project's setup state",
		Args:    cobra.ExactArgs(1),
		PreRunE: withBootstrap,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a := hsContext(cmd)
			projectID, err := resolveProjectID(ctx, a, args[0])
			if err != nil {
				return err
			}
			if err := a.Coordinator.Terminate(ctx, projectID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "terminated")
			return nil
		},
	}
	return c
}
