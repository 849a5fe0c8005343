package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hailstorm-project/hailstorm/internal/config"
)

func startCmd() *cobra.Command {
	var configPath string
	var redeploy bool
	c := &cobra.Command{
		Use:     "start <project-code>",
		Short:   "Start a new execution cycle: setup, start monitors, deploy and run load agents",
		Args:    cobra.ExactArgs(1),
		PreRunE: withBootstrap,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a := hsContext(cmd)
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			projectID, err := resolveProjectID(ctx, a, args[0])
			if err != nil {
				return err
			}
			cy, err := a.Coordinator.Start(ctx, projectID, cfg, redeploy)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "started execution cycle %d\n", cy.ID)
			return nil
		},
	}
	c.Flags().StringVar(&configPath, "config", "", "Path to the project's YAML configuration file")
	c.Flags().BoolVar(&redeploy, "redeploy", false, "Force setup and agent redeployment even if unchanged")
	_ = c.MarkFlagRequired("config")
	return c
}
