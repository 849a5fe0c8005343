package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hailstorm-project/hailstorm/internal/hserrors"
)

func purgeCmd() *cobra.Command {
	var scope string
	c := &cobra.Command{
		Use:     "purge <project-code>",
		Short:   "Purge execution cycles (--scope tests) or the whole project (--scope all)",
		Args:    cobra.ExactArgs(1),
		PreRunE: withBootstrap,
		RunE: func(cmd *cobra.Command, args []string) error {
			if scope != "tests" && scope != "all" {
				return &hserrors.IncorrectCommandException{Command: "purge", Reason: `--scope must be "tests" or "all"`}
			}
			ctx, a := hsContext(cmd)
			projectID, err := resolveProjectID(ctx, a, args[0])
			if err != nil {
				return err
			}
			if err := a.Coordinator.Purge(ctx, projectID, scope); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged (scope=%s)\n", scope)
			return nil
		},
	}
	c.Flags().StringVar(&scope, "scope", "tests", `Purge scope: "tests" or "all"`)
	return c
}
