package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hailstorm-project/hailstorm/internal/config"
)

func setupCmd() *cobra.Command {
	var configPath string
	var force bool
	c := &cobra.Command{
		Use:     "setup <project-code>",
		Short:   "Provision cluster agents and target hosts for a project",
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
			if err := a.Coordinator.Setup(ctx, projectID, cfg, force); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "setup complete")
			return nil
		},
	}
	c.Flags().StringVar(&configPath, "config", "", "Path to the project's YAML configuration file")
	c.Flags().BoolVar(&force, "force", false, "Re-run setup even if the configuration signature is unchanged")
	_ = c.MarkFlagRequired("config")
	return c
}
