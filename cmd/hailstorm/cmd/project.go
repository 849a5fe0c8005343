package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hailstorm-project/hailstorm/internal/config"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
)

func projectCmd() *cobra.Command {
	parent := &cobra.Command{
		Use:   "project",
		Short: "Create and inspect projects",
	}
	parent.AddCommand(projectCreateCmd())
	return parent
}

// projectCreateCmd materializes a project and its cluster definitions from
// a configuration file. Unlike setup (which re-provisions an existing
// project's clusters against whatever is already stored), this is the
// one-time step that turns a config file's `clusters` section into
// clusters/amazon_clouds/data_centers rows for setup to act on later.
func projectCreateCmd() *cobra.Command {
	var configPath string
	c := &cobra.Command{
		Use:     "create <project-code>",
		Short:   "Create a project and its cluster definitions from a config file",
		Args:    cobra.ExactArgs(1),
		PreRunE: withBootstrap,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a := hsContext(cmd)
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			project := model.NewProject(args[0])
			project.MasterSlaveMode = cfg.MasterSlaveMode
			if cfg.MaxThreadsPerAgent > 0 {
				project.MaxThreadsPerAgent = cfg.MaxThreadsPerAgent
			}
			if cfg.SamplesBreakupInterval != "" {
				project.SamplesBreakupInterval = cfg.SamplesBreakupInterval
			}
			if err := project.Validate(); err != nil {
				return err
			}
			if err := a.Store.Projects.Create(ctx, project); err != nil {
				return fmt.Errorf("creating project: %w", err)
			}

			for i := range cfg.Clusters {
				cc := &cfg.Clusters[i]
				switch cc.Type {
				case "elastic":
					amazon := model.NewAmazonCloud()
					amazon.AccessKey = cc.AmazonCloud.AccessKey
					amazon.SecretKey = cc.AmazonCloud.SecretKey
					amazon.SSHIdentity = cc.AmazonCloud.SSHIdentity
					amazon.Region = cc.AmazonCloud.Region
					amazon.Zone = cc.AmazonCloud.Zone
					amazon.InstanceType = cc.AmazonCloud.InstanceType
					if cc.AmazonCloud.AgentAMI != "" {
						amazon.AgentAMI = &cc.AmazonCloud.AgentAMI
					}
					amazon.Active = cc.AmazonCloud.Active
					if cc.AmazonCloud.UserName != "" {
						amazon.UserName = cc.AmazonCloud.UserName
					}
					amazon.SecurityGroup = cc.AmazonCloud.SecurityGroup
					amazon.AutogeneratedSSHKey = cc.AmazonCloud.AutogeneratedSSHKey
					if cc.AmazonCloud.SSHPort != 0 {
						amazon.SSHPort = cc.AmazonCloud.SSHPort
					}
					if cc.AmazonCloud.MaxThreadsPerAgent > 0 {
						amazon.MaxThreadsPerAgent = &cc.AmazonCloud.MaxThreadsPerAgent
					}
					if err := amazon.Validate(); err != nil {
						return fmt.Errorf("cluster %d: %w", i, err)
					}
					if err := a.Store.Clusters.CreateAmazonCloud(ctx, project.ID, amazon); err != nil {
						return fmt.Errorf("creating elastic cluster %d: %w", i, err)
					}
				case "fixed":
					dc := &model.DataCenter{
						UserName:    cc.DataCenter.UserName,
						SSHIdentity: cc.DataCenter.SSHIdentity,
						Machines:    cc.DataCenter.Machines,
						Title:       cc.DataCenter.Title,
					}
					if err := dc.Validate(); err != nil {
						return fmt.Errorf("cluster %d: %w", i, err)
					}
					if err := a.Store.Clusters.CreateDataCenter(ctx, project.ID, dc); err != nil {
						return fmt.Errorf("creating fixed cluster %d: %w", i, err)
					}
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created project %q (id=%d) with %d cluster(s)\n", project.Code, project.ID, len(cfg.Clusters))
			return nil
		},
	}
	c.Flags().StringVar(&configPath, "config", "", "Path to the project's YAML configuration file")
	_ = c.MarkFlagRequired("config")
	return c
}
