package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LucaPlaster/MyGeoEyes/pkg/config"
	"github.com/LucaPlaster/MyGeoEyes/pkg/coordinator"
	"github.com/LucaPlaster/MyGeoEyes/pkg/monitor"
	"github.com/LucaPlaster/MyGeoEyes/pkg/node"
	"github.com/LucaPlaster/MyGeoEyes/pkg/subscriber"
	"github.com/LucaPlaster/MyGeoEyes/pkg/types"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const version = "0.1.0"

var (
	configFile string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "geoeyes",
		Short: "Distributed chunked image store",
		Long: `GeoEyes splits objects into parts and keeps replicated copies of each part
on a cluster of storage nodes. A coordinator tracks membership and placement,
re-replicates parts when a node fails and notifies subscribers of changes.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(
		coordinatorCmd(),
		nodeCmd(),
		monitorCmd(),
		subscriberCmd(),
		clientCmd(),
		clusterCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads --config when given, otherwise GEOEYES_* variables for
// mode. Flags applied afterwards override either source.
func loadConfig(mode config.Mode) (*config.Config, error) {
	if configFile == "" {
		return config.LoadFromEnvMode(mode), nil
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Mode != mode {
		return nil, fmt.Errorf("config file is for %s mode, not %s", cfg.Mode, mode)
	}
	return cfg, nil
}

// runUntilSignal serves until serve returns or an interrupt arrives. On a
// signal it calls stop and waits for serve to drain.
func runUntilSignal(logger *zap.Logger, name string, serve func() error, stop func()) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- serve()
	}()

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		logger.Info("Shutting down "+name, zap.String("signal", sig.String()))
		stop()
		return <-errChan
	}
}

func coordinatorCmd() *cobra.Command {
	var (
		address           string
		replicationFactor int
		sweepInterval     time.Duration
		rpcTimeout        time.Duration
		failureThreshold  int
		monitorAddress    string
		metricsAddress    string
	)

	cmd := &cobra.Command{
		Use:   "coordinator",
		Short: "Run the coordinator",
		Long:  `Start a coordinator that tracks storage nodes, places object parts and re-replicates them when a node fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose)
			defer logger.Sync()

			cfg, err := loadConfig(config.ModeCoordinator)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("address") {
				cfg.Coordinator.Address = address
			}
			if flags.Changed("replication-factor") {
				cfg.Coordinator.ReplicationFactor = replicationFactor
			}
			if flags.Changed("sweep-interval") {
				cfg.Coordinator.SweepInterval = config.Duration(sweepInterval)
			}
			if flags.Changed("rpc-timeout") {
				cfg.Coordinator.RPCTimeout = config.Duration(rpcTimeout)
			}
			if flags.Changed("failure-threshold") {
				cfg.Coordinator.FailureThreshold = failureThreshold
			}
			if flags.Changed("monitor") {
				cfg.Coordinator.MonitorAddress = monitorAddress
			}
			if flags.Changed("metrics-address") {
				cfg.Coordinator.MetricsAddress = metricsAddress
			}
			if err := cfg.Coordinator.Validate(); err != nil {
				return err
			}

			coord := coordinator.New(&cfg.Coordinator, logger)
			return runUntilSignal(logger, "coordinator", coord.Start, coord.Stop)
		},
	}

	cmd.Flags().StringVar(&address, "address", config.DefaultCoordinatorAddress, "coordinator listening address")
	cmd.Flags().IntVar(&replicationFactor, "replication-factor", config.DefaultReplicationFactor, "replicas kept per part")
	cmd.Flags().DurationVar(&sweepInterval, "sweep-interval", config.DefaultSweepInterval, "interval between liveness sweeps")
	cmd.Flags().DurationVar(&rpcTimeout, "rpc-timeout", config.DefaultRPCTimeout, "timeout for each call to a node or subscriber")
	cmd.Flags().IntVar(&failureThreshold, "failure-threshold", config.DefaultFailureThreshold, "consecutive missed probes before a node is failed")
	cmd.Flags().StringVar(&monitorAddress, "monitor", "", "failure monitor address")
	cmd.Flags().StringVar(&metricsAddress, "metrics-address", "", "serve Prometheus metrics on this address")

	return cmd
}

func nodeCmd() *cobra.Command {
	var (
		nodeID               string
		address              string
		coordinatorAddress   string
		dataDir              string
		registrationInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "node",
		Short: "Run a storage node",
		Long:  `Start a storage node that registers with a coordinator and stores object parts on local disk.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose)
			defer logger.Sync()

			cfg, err := loadConfig(config.ModeNode)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("node-id") {
				cfg.Node.NodeID = nodeID
			}
			if flags.Changed("address") {
				cfg.Node.Address = address
			}
			if flags.Changed("coordinator") {
				cfg.Node.CoordinatorAddress = coordinatorAddress
			}
			if flags.Changed("data-dir") {
				cfg.Node.DataDir = dataDir
			}
			if flags.Changed("registration-interval") {
				cfg.Node.RegistrationInterval = config.Duration(registrationInterval)
			}
			if err := cfg.Node.Validate(); err != nil {
				return err
			}

			n, err := node.New(&cfg.Node, logger)
			if err != nil {
				return fmt.Errorf("failed to create node: %w", err)
			}
			return runUntilSignal(logger, "node", n.Start, n.Stop)
		},
	}

	cmd.Flags().StringVar(&nodeID, "node-id", "", "unique node identifier (generated if empty)")
	cmd.Flags().StringVar(&address, "address", ":7001", "node listening address")
	cmd.Flags().StringVar(&coordinatorAddress, "coordinator", "localhost:8001", "coordinator address")
	cmd.Flags().StringVar(&dataDir, "data-dir", "./data", "directory for stored parts")
	cmd.Flags().DurationVar(&registrationInterval, "registration-interval", config.DefaultRegistrationInterval, "interval between re-registrations")

	return cmd
}

func monitorCmd() *cobra.Command {
	var (
		address    string
		maxReports int
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run the failure monitor",
		Long:  `Start a monitor that records the storage node failures coordinators report.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose)
			defer logger.Sync()

			cfg, err := loadConfig(config.ModeMonitor)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("address") {
				cfg.Monitor.Address = address
			}
			if cmd.Flags().Changed("max-reports") {
				cfg.Monitor.MaxReports = maxReports
			}

			m := monitor.New(&cfg.Monitor, logger)
			return runUntilSignal(logger, "monitor", m.Start, m.Stop)
		},
	}

	cmd.Flags().StringVar(&address, "address", config.DefaultMonitorAddress, "monitor listening address")
	cmd.Flags().IntVar(&maxReports, "max-reports", config.DefaultMaxFailureReports, "failure reports kept in memory")

	return cmd
}

func subscriberCmd() *cobra.Command {
	var (
		address            string
		coordinatorAddress string
		events             []string
	)

	cmd := &cobra.Command{
		Use:   "subscriber",
		Short: "Subscribe to object events and print them",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose)
			defer logger.Sync()

			cfg, err := loadConfig(config.ModeSubscriber)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("address") {
				cfg.Subscriber.Address = address
			}
			if flags.Changed("coordinator") {
				cfg.Subscriber.CoordinatorAddress = coordinatorAddress
			}
			if flags.Changed("events") {
				cfg.Subscriber.Events = events
			}

			s := subscriber.New(&cfg.Subscriber, logger, printEvent)
			return runUntilSignal(logger, "subscriber", s.Start, s.Stop)
		},
	}

	cmd.Flags().StringVar(&address, "address", "localhost:9001", "address the coordinator delivers events to")
	cmd.Flags().StringVar(&coordinatorAddress, "coordinator", "localhost:8001", "coordinator address")
	cmd.Flags().StringSliceVar(&events, "events", nil, "events to subscribe to (default: all)")

	return cmd
}

func printEvent(event types.Event) {
	fmt.Printf("%s  %s  %s\n",
		mutedStyle.Render(event.OccurredAt.Local().Format(time.RFC3339)),
		eventStyle(event.Type).Render(string(event.Type)),
		event.Object)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("GeoEyes v%s\n", version)
		},
	}
}

func setupLogger(verbose bool) *zap.Logger {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, _ := config.Build()
	return logger
}
