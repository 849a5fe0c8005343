package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func ingestPlanCmd() *cobra.Command {
	c := &cobra.Command{
		Use:     "ingest-plan <project-code> <test-plan-name> <jmx-path>",
		Short:   "Parse a .jmx file and register (or update) it as one of the project's active test plans",
		Args:    cobra.ExactArgs(3),
		PreRunE: withBootstrap,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a := hsContext(cmd)
			projectID, err := resolveProjectID(ctx, a, args[0])
			if err != nil {
				return err
			}
			plan, err := a.Coordinator.IngestPlan(ctx, projectID, args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingested plan %q (id=%d, threads=%d)\n", plan.TestPlanName, plan.ID, plan.LatestThreadsCount)
			return nil
		},
	}
	return c
}
