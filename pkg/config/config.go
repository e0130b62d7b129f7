package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Mode string

const (
	ModeCoordinator Mode = "coordinator"
	ModeNode        Mode = "node"
	ModeMonitor     Mode = "monitor"
	ModeSubscriber  Mode = "subscriber"
)

const (
	DefaultCoordinatorAddress   = ":8001"
	DefaultReplicationFactor    = 2
	DefaultSweepInterval        = 5 * time.Second
	DefaultRPCTimeout           = 3 * time.Second
	DefaultFailureThreshold     = 1
	DefaultRegistrationInterval = 30 * time.Second
	DefaultMonitorAddress       = ":2000"
	DefaultMaxFailureReports    = 1000
)

type Config struct {
	Mode        Mode              `json:"mode"`
	Coordinator CoordinatorConfig `json:"coordinator,omitempty"`
	Node        NodeConfig        `json:"node,omitempty"`
	Monitor     MonitorConfig     `json:"monitor,omitempty"`
	Subscriber  SubscriberConfig  `json:"subscriber,omitempty"`
}

type CoordinatorConfig struct {
	Address           string   `json:"address"`
	ReplicationFactor int      `json:"replication_factor"`
	SweepInterval     Duration `json:"sweep_interval"`
	RPCTimeout        Duration `json:"rpc_timeout"`
	// FailureThreshold is the number of consecutive missed probes before a
	// member is declared failed.
	FailureThreshold int      `json:"failure_threshold"`
	MonitorAddress   string   `json:"monitor_address"`
	MetricsAddress   string   `json:"metrics_address"`
	MaxMessageSize   DataSize `json:"max_message_size"`
}

type NodeConfig struct {
	NodeID               string   `json:"node_id"`
	Address              string   `json:"address"`
	CoordinatorAddress   string   `json:"coordinator_address"`
	DataDir              string   `json:"data_dir"`
	RegistrationInterval Duration `json:"registration_interval"`
	RPCTimeout           Duration `json:"rpc_timeout"`
	MaxMessageSize       DataSize `json:"max_message_size"`
}

type MonitorConfig struct {
	Address    string `json:"address"`
	MaxReports int    `json:"max_reports"`
}

type SubscriberConfig struct {
	Address            string   `json:"address"`
	CoordinatorAddress string   `json:"coordinator_address"`
	Events             []string `json:"events"`
	RPCTimeout         Duration `json:"rpc_timeout"`
}

// Duration is a time.Duration that reads "5s" style strings or nanosecond
// numbers from JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
	case nil:
		*d = 0
	default:
		return fmt.Errorf("duration must be a number or string, got %T", v)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds a configuration for the mode named by GEOEYES_MODE.
func LoadFromEnv() *Config {
	return LoadFromEnvMode(Mode(getEnv("GEOEYES_MODE", string(ModeCoordinator))))
}

// LoadFromEnvMode fills the section for mode from GEOEYES_* variables.
func LoadFromEnvMode(mode Mode) *Config {
	cfg := &Config{Mode: mode}

	switch cfg.Mode {
	case ModeCoordinator:
		cfg.Coordinator = CoordinatorConfig{
			Address:           getEnv("GEOEYES_COORDINATOR_ADDRESS", DefaultCoordinatorAddress),
			ReplicationFactor: getEnvInt("GEOEYES_REPLICATION_FACTOR", DefaultReplicationFactor),
			SweepInterval:     Duration(getEnvDuration("GEOEYES_SWEEP_INTERVAL", DefaultSweepInterval)),
			RPCTimeout:        Duration(getEnvDuration("GEOEYES_RPC_TIMEOUT", DefaultRPCTimeout)),
			FailureThreshold:  getEnvInt("GEOEYES_FAILURE_THRESHOLD", DefaultFailureThreshold),
			MonitorAddress:    os.Getenv("GEOEYES_MONITOR_ADDRESS"),
			MetricsAddress:    os.Getenv("GEOEYES_METRICS_ADDRESS"),
		}
	case ModeNode:
		cfg.Node = NodeConfig{
			NodeID:             os.Getenv("GEOEYES_NODE_ID"),
			Address:            getEnv("GEOEYES_NODE_ADDRESS", ":7001"),
			CoordinatorAddress: getEnv("GEOEYES_COORDINATOR_ADDRESS", "localhost:8001"),
			DataDir:            getEnv("GEOEYES_DATA_DIR", "./data"),
		}
	case ModeMonitor:
		cfg.Monitor = MonitorConfig{
			Address:    getEnv("GEOEYES_MONITOR_ADDRESS", DefaultMonitorAddress),
			MaxReports: getEnvInt("GEOEYES_MAX_REPORTS", DefaultMaxFailureReports),
		}
	case ModeSubscriber:
		cfg.Subscriber = SubscriberConfig{
			Address:            getEnv("GEOEYES_SUBSCRIBER_ADDRESS", "localhost:9001"),
			CoordinatorAddress: getEnv("GEOEYES_COORDINATOR_ADDRESS", "localhost:8001"),
		}
		if events := os.Getenv("GEOEYES_EVENTS"); events != "" {
			cfg.Subscriber.Events = strings.Split(events, ",")
		}
	}

	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values of every section.
func (c *Config) ApplyDefaults() {
	c.Coordinator.ApplyDefaults()
	c.Node.ApplyDefaults()
	c.Monitor.ApplyDefaults()
	c.Subscriber.ApplyDefaults()
}

func (c *Config) Validate() error {
	switch c.Mode {
	case ModeCoordinator:
		return c.Coordinator.Validate()
	case ModeNode:
		return c.Node.Validate()
	case ModeMonitor, ModeSubscriber:
		return nil
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
}

func (c *CoordinatorConfig) ApplyDefaults() {
	if c.Address == "" {
		c.Address = DefaultCoordinatorAddress
	}
	if c.ReplicationFactor == 0 {
		c.ReplicationFactor = DefaultReplicationFactor
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = Duration(DefaultSweepInterval)
	}
	if c.RPCTimeout == 0 {
		c.RPCTimeout = Duration(DefaultRPCTimeout)
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
}

func (c *CoordinatorConfig) Validate() error {
	if c.ReplicationFactor < 1 {
		return fmt.Errorf("replication factor must be at least 1, got %d", c.ReplicationFactor)
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("failure threshold must be at least 1, got %d", c.FailureThreshold)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}
	return nil
}

func (c *NodeConfig) ApplyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.RegistrationInterval == 0 {
		c.RegistrationInterval = Duration(DefaultRegistrationInterval)
	}
	if c.RPCTimeout == 0 {
		c.RPCTimeout = Duration(DefaultRPCTimeout)
	}
}

func (c *NodeConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("node address is required")
	}
	if c.CoordinatorAddress == "" {
		return fmt.Errorf("coordinator address is required")
	}
	return nil
}

func (c *MonitorConfig) ApplyDefaults() {
	if c.Address == "" {
		c.Address = DefaultMonitorAddress
	}
	if c.MaxReports == 0 {
		c.MaxReports = DefaultMaxFailureReports
	}
}

func (c *SubscriberConfig) ApplyDefaults() {
	if c.RPCTimeout == 0 {
		c.RPCTimeout = Duration(DefaultRPCTimeout)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
