package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func stopCmd() *cobra.Command {
	var wait, suspend bool
	c := &cobra.Command{
		Use:     "stop <project-code>",
		Short:   "Stop the current execution cycle's load agents and monitors, and collect+process results",
		Args:    cobra.ExactArgs(1),
		PreRunE: withBootstrap,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a := hsContext(cmd)
			projectID, err := resolveProjectID(ctx, a, args[0])
			if err != nil {
				return err
			}
			if err := a.Coordinator.Stop(ctx, projectID, wait, suspend); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "stopped")
			return nil
		},
	}
	c.Flags().BoolVar(&wait, "wait", true, "Wait for each master agent's JMeter process to exit before returning")
	c.Flags().BoolVar(&suspend, "suspend", false, "Stop (elastic) or leave running (fixed) the underlying agent hosts after stopping load")
	return c
}
