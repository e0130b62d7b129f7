package main

import (
	"fmt"

	"github.com/LucaPlaster/MyGeoEyes/pkg/config"

	"github.com/spf13/cobra"
)

func clusterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Manage saved cluster profiles used by client commands",
	}

	cmd.AddCommand(
		clusterAddCmd(),
		clusterListCmd(),
		clusterUseCmd(),
		clusterRemoveCmd(),
	)

	return cmd
}

func clusterAddCmd() *cobra.Command {
	var (
		coordinator string
		monitor     string
		description string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add or replace a cluster profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClientConfig()
			if err != nil {
				return err
			}

			if err := cfg.AddCluster(config.ClusterInfo{
				Name:               args[0],
				CoordinatorAddress: coordinator,
				MonitorAddress:     monitor,
				Description:        description,
			}); err != nil {
				return err
			}

			fmt.Printf("%s saved cluster %s to %s\n", successStyle.Render("✓"), args[0], config.GetConfigPath())
			return nil
		},
	}

	cmd.Flags().StringVar(&coordinator, "coordinator", "", "coordinator address")
	cmd.Flags().StringVar(&monitor, "monitor", "", "failure monitor address")
	cmd.Flags().StringVar(&description, "description", "", "free-form description")
	cmd.MarkFlagRequired("coordinator")

	return cmd
}

func clusterListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cluster profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClientConfig()
			if err != nil {
				return err
			}

			if len(cfg.Clusters) == 0 {
				fmt.Println(mutedStyle.Render("No clusters configured; client commands default to localhost" + config.DefaultCoordinatorAddress))
				return nil
			}

			t := newTable("", "NAME", "COORDINATOR", "MONITOR", "DESCRIPTION")
			for _, cluster := range cfg.Clusters {
				marker := ""
				if cluster.Name == cfg.Defaults.PreferredCluster {
					marker = successStyle.Render("*")
				}
				t.Row(marker, cluster.Name, cluster.CoordinatorAddress, cluster.MonitorAddress, cluster.Description)
			}
			fmt.Println(renderSection("🛰 CLUSTERS", t))
			return nil
		},
	}
}

func clusterUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <name>",
		Short: "Make a cluster the default for client commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClientConfig()
			if err != nil {
				return err
			}
			if _, err := cfg.GetClusterByName(args[0]); err != nil {
				return err
			}

			cfg.Defaults.PreferredCluster = args[0]
			if err := cfg.Save(); err != nil {
				return err
			}

			fmt.Printf("%s now using cluster %s\n", successStyle.Render("✓"), args[0])
			return nil
		},
	}
}

func clusterRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a cluster profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClientConfig()
			if err != nil {
				return err
			}
			if err := cfg.RemoveCluster(args[0]); err != nil {
				return err
			}

			fmt.Printf("%s removed cluster %s\n", successStyle.Render("✓"), args[0])
			return nil
		},
	}
}
