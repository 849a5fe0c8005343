package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	c := &cobra.Command{
		Use:     "status <project-code>",
		Short:   "List the currently running load agents across the project's active plans",
		Args:    cobra.ExactArgs(1),
		PreRunE: withBootstrap,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a := hsContext(cmd)
			projectID, err := resolveProjectID(ctx, a, args[0])
			if err != nil {
				return err
			}
			agents, err := a.Coordinator.Status(ctx, projectID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "AGENT\tTYPE\tPLAN\tPID\tPUBLIC_IP")
			for _, ag := range agents {
				ip := "-"
				if ag.PublicIPAddress != nil {
					ip = *ag.PublicIPAddress
				}
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n", ag.ID, ag.Type, ag.JmeterPlanID, *ag.JmeterPID, ip)
			}
			return w.Flush()
		},
	}
	return c
}
