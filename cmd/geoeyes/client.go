package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/LucaPlaster/MyGeoEyes/pkg/client"
	"github.com/LucaPlaster/MyGeoEyes/pkg/config"
	"github.com/LucaPlaster/MyGeoEyes/pkg/types"
	"github.com/LucaPlaster/MyGeoEyes/pkg/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	coordinatorAddr string
	monitorAddr     string
	clientTimeout   time.Duration
)

func clientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Store, fetch and inspect objects",
	}

	cmd.PersistentFlags().StringVar(&coordinatorAddr, "coordinator", "", "coordinator address (default: preferred cluster)")
	cmd.PersistentFlags().StringVar(&monitorAddr, "monitor", "", "failure monitor address")
	cmd.PersistentFlags().DurationVar(&clientTimeout, "timeout", 0, "timeout for each request")

	cmd.AddCommand(
		storeCmd(),
		listCmd(),
		getCmd(),
		locateCmd(),
		deleteCmd(),
		statusCmd(),
		eventsCmd(),
		failuresCmd(),
		benchCmd(),
	)

	return cmd
}

// newClient resolves the target cluster from flags and the saved client
// configuration.
func newClient(logger *zap.Logger) (*client.Client, *config.ConnectionConfig, error) {
	cfg, err := config.LoadClientConfig()
	if err != nil {
		return nil, nil, err
	}

	address := coordinatorAddr
	if address == "" && len(cfg.Clusters) == 0 {
		address = "localhost" + config.DefaultCoordinatorAddress
	}

	conn, err := cfg.ResolveConnection(address)
	if err != nil {
		return nil, nil, err
	}
	if monitorAddr != "" {
		conn.Monitor = monitorAddr
	}
	if clientTimeout > 0 {
		conn.Timeout = clientTimeout
	}

	logger.Debug("Resolved cluster",
		zap.String("coordinator", conn.Coordinator),
		zap.String("monitor", conn.Monitor),
		zap.Duration("timeout", conn.Timeout))

	return client.New(conn, logger), conn, nil
}

func storeCmd() *cobra.Command {
	var (
		name     string
		numParts int
	)

	cmd := &cobra.Command{
		Use:   "store <file>",
		Short: "Store a file, split into parts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose)
			defer logger.Sync()

			c, conn, err := newClient(logger)
			if err != nil {
				return err
			}
			defer c.Close()

			if !cmd.Flags().Changed("parts") {
				numParts = conn.NumParts
			}

			stored, err := c.StoreFile(context.Background(), args[0], name, numParts)
			if err != nil {
				return err
			}

			fmt.Printf("%s stored %s in %d parts\n", successStyle.Render("✓"), stored, numParts)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "object name (default: file name)")
	cmd.Flags().IntVarP(&numParts, "parts", "p", config.DefaultNumParts, "number of parts to split the object into")

	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored objects",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose)
			defer logger.Sync()

			c, _, err := newClient(logger)
			if err != nil {
				return err
			}
			defer c.Close()

			names, err := c.List(context.Background())
			if err != nil {
				return err
			}

			if len(names) == 0 {
				fmt.Println(mutedStyle.Render("No objects stored"))
				return nil
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func getCmd() *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Download an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose)
			defer logger.Sync()

			c, _, err := newClient(logger)
			if err != nil {
				return err
			}
			defer c.Close()

			path, err := c.DownloadFile(context.Background(), args[0], outputDir)
			if err != nil {
				return err
			}

			fmt.Printf("%s downloaded %s to %s\n", successStyle.Render("✓"), args[0], path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "client_downloads", "directory to write the object to")

	return cmd
}

func locateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locate <name>",
		Short: "Show which node serves each part of an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose)
			defer logger.Sync()

			c, _, err := newClient(logger)
			if err != nil {
				return err
			}
			defer c.Close()

			locations, err := c.Locate(context.Background(), args[0])
			if err != nil {
				return err
			}

			t := newTable("PART", "NODE", "ADDRESS")
			for _, loc := range locations {
				t.Row(fmt.Sprintf("%d", loc.Index), string(loc.NodeID), loc.Address)
			}
			fmt.Println(renderSection("📍 "+args[0], t))
			return nil
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an object and its parts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose)
			defer logger.Sync()

			c, _, err := newClient(logger)
			if err != nil {
				return err
			}
			defer c.Close()

			removed, failed, err := c.Delete(context.Background(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("%s deleted %s (%d replicas removed)\n", successStyle.Render("✓"), args[0], removed)
			if failed > 0 {
				fmt.Println(warningStyle.Render(fmt.Sprintf("%d replicas could not be removed and are orphaned", failed)))
			}
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show cluster membership and object replication",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose)
			defer logger.Sync()

			c, conn, err := newClient(logger)
			if err != nil {
				return err
			}
			defer c.Close()

			status, err := c.Status(context.Background())
			if err != nil {
				return err
			}

			if jsonOutput {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(status)
			}

			fmt.Println(titleStyle.Render("GeoEyes cluster at " + conn.Coordinator))
			fmt.Printf("Replication factor: %d\n\n", status.ReplicationFactor)

			members := newTable("NODE ID", "ADDRESS", "REGISTERED", "LAST PROBE", "MISSES")
			for _, m := range status.Members {
				lastProbe := mutedStyle.Render("never")
				if !m.LastProbe.IsZero() {
					lastProbe = time.Since(m.LastProbe).Round(time.Second).String() + " ago"
				}
				misses := successStyle.Render("0")
				if m.Misses > 0 {
					misses = errorStyle.Render(fmt.Sprintf("%d", m.Misses))
				}
				members.Row(string(m.ID), m.Address, m.RegisteredAt.Local().Format(time.DateTime), lastProbe, misses)
			}
			fmt.Println(renderSection(fmt.Sprintf("💾 STORAGE NODES (%d)", len(status.Members)), members))

			objects := newTable("NAME", "SIZE", "PARTS", "REPLICAS", "STORED")
			for _, o := range status.Objects {
				objects.Row(
					o.Name,
					utils.FormatDataSize(o.Size),
					fmt.Sprintf("%d", o.Parts),
					renderReplicas(o.Replicas, status.ReplicationFactor),
					o.StoredAt.Local().Format(time.DateTime),
				)
			}
			fmt.Println(renderSection(fmt.Sprintf("📦 OBJECTS (%d)", len(status.Objects)), objects))

			events := make([]string, 0, len(status.Subscribers))
			for event := range status.Subscribers {
				events = append(events, string(event))
			}
			sort.Strings(events)

			subscribers := newTable("EVENT", "SUBSCRIBERS")
			for _, event := range events {
				subscribers.Row(event, fmt.Sprintf("%d", status.Subscribers[types.EventType(event)]))
			}
			fmt.Println(renderSection("🔔 SUBSCRIPTIONS", subscribers))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "List the event types subscribers can receive",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose)
			defer logger.Sync()

			c, _, err := newClient(logger)
			if err != nil {
				return err
			}
			defer c.Close()

			events, err := c.Events(context.Background())
			if err != nil {
				return err
			}
			for _, event := range events {
				fmt.Println(eventStyle(event).Render(string(event)))
			}
			return nil
		},
	}
}

func failuresCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "failures",
		Short: "Show storage node failures recorded by the monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose)
			defer logger.Sync()

			c, _, err := newClient(logger)
			if err != nil {
				return err
			}
			defer c.Close()

			log, err := c.Failures(context.Background(), limit)
			if err != nil {
				return err
			}

			fmt.Printf("Reporting coordinators: %s\n\n", strings.Join(log.Coordinators, ", "))

			t := newTable("REPORTED", "NODE ID")
			for _, report := range log.Reports {
				t.Row(report.ReportedAt.Local().Format(time.DateTime), errorStyle.Render(string(report.NodeID)))
			}
			fmt.Println(renderSection(fmt.Sprintf("⚠ FAILURES (%d)", len(log.Reports)), t))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "most recent reports to show (0 for all)")

	return cmd
}

func benchCmd() *cobra.Command {
	var (
		count    int
		size     string
		numParts int
		cleanup  bool
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure insert and retrieve times for random objects",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose)
			defer logger.Sync()

			objectSize, err := utils.ParseDataSize(size)
			if err != nil {
				return err
			}

			c, _, err := newClient(logger)
			if err != nil {
				return err
			}
			defer c.Close()

			result, err := c.Bench(context.Background(), client.BenchOptions{
				Count:    count,
				Size:     int(objectSize),
				NumParts: numParts,
				Cleanup:  cleanup,
			})
			if err != nil {
				return err
			}

			t := newTable("PHASE", "OBJECTS", "TOTAL", "PER SECOND", "FAILURES")
			t.Row("insert",
				fmt.Sprintf("%d", result.Count),
				result.Insert.Round(time.Millisecond).String(),
				fmt.Sprintf("%.1f", result.InsertRate()),
				fmt.Sprintf("%d", result.InsertFailures))
			t.Row("retrieve",
				fmt.Sprintf("%d", result.Count-result.InsertFailures),
				result.Retrieve.Round(time.Millisecond).String(),
				fmt.Sprintf("%.1f", result.RetrieveRate()),
				fmt.Sprintf("%d", result.RetrieveFailures))

			title := fmt.Sprintf("⏱ %d × %s in %d parts", result.Count, utils.FormatDataSize(int64(result.Size)), result.NumParts)
			fmt.Println(renderSection(title, t))
			if result.Mismatches > 0 {
				fmt.Println(errorStyle.Render(fmt.Sprintf("%d objects came back corrupted", result.Mismatches)))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of objects to store")
	cmd.Flags().StringVar(&size, "size", "50KiB", "size of each object")
	cmd.Flags().IntVarP(&numParts, "parts", "p", client.DefaultBenchNumParts, "number of parts per object")
	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "delete the objects afterwards")

	return cmd
}
