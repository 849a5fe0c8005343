package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func abortCmd() *cobra.Command {
	var suspend bool
	c := &cobra.Command{
		Use:     "abort <project-code>",
		Short:   "Abort the current execution cycle without waiting for load agents to finish",
		Args:    cobra.ExactArgs(1),
		PreRunE: withBootstrap,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a := hsContext(cmd)
			projectID, err := resolveProjectID(ctx, a, args[0])
			if err != nil {
				return err
			}
			if err := a.Coordinator.Abort(ctx, projectID, suspend); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "aborted")
			return nil
		},
	}
	c.Flags().BoolVar(&suspend, "suspend", false, "Also stop the underlying agent hosts")
	return c
}
