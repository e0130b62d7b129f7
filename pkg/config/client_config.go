package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultClientTimeout = 30 * time.Second
	DefaultNumParts      = 5
)

// ClientConfig holds the cluster profiles known to the geoeyes CLI.
type ClientConfig struct {
	Version  string          `json:"version"`
	Clusters []ClusterInfo   `json:"clusters"`
	Defaults DefaultSettings `json:"defaults"`
}

type DefaultSettings struct {
	PreferredCluster string   `json:"preferred_cluster,omitempty"`
	Timeout          Duration `json:"timeout,omitempty"`
	NumParts         int      `json:"num_parts,omitempty"`
}

// ClusterInfo names one coordinator and, optionally, its failure monitor.
type ClusterInfo struct {
	Name               string `json:"name"`
	CoordinatorAddress string `json:"coordinator_address"`
	MonitorAddress     string `json:"monitor_address,omitempty"`
	Description        string `json:"description,omitempty"`
}

// ConnectionConfig is what a client needs to reach one cluster.
type ConnectionConfig struct {
	Coordinator string
	Monitor     string
	Timeout     time.Duration
	NumParts    int
}

// GetConfigDir returns the geoeyes configuration directory
func GetConfigDir() string {
	if dir := os.Getenv("GEOEYES_CONFIG_DIR"); dir != "" {
		return dir
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "geoeyes")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ".geoeyes"
	}
	return filepath.Join(home, ".geoeyes")
}

func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "client.json")
}

// LoadClientConfig reads the client configuration, returning defaults when
// none has been saved yet.
func LoadClientConfig() (*ClientConfig, error) {
	configPath := GetConfigPath()

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		cfg := &ClientConfig{Version: "1"}
		cfg.ApplyDefaults()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg ClientConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = "1"
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

func (c *ClientConfig) ApplyDefaults() {
	if c.Defaults.Timeout == 0 {
		c.Defaults.Timeout = Duration(DefaultClientTimeout)
	}
	if c.Defaults.NumParts == 0 {
		c.Defaults.NumParts = DefaultNumParts
	}
}

// Save writes the configuration with owner-only permissions.
func (c *ClientConfig) Save() error {
	if err := os.MkdirAll(GetConfigDir(), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(GetConfigPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *ClientConfig) GetClusterByName(name string) (*ClusterInfo, error) {
	for i := range c.Clusters {
		if c.Clusters[i].Name == name {
			cluster := c.Clusters[i]
			return &cluster, nil
		}
	}
	return nil, fmt.Errorf("cluster %q not found", name)
}

func (c *ClientConfig) GetClusterByCoordinator(coordinatorAddr string) (*ClusterInfo, error) {
	normalizedAddr := normalizeAddress(coordinatorAddr)

	for i := range c.Clusters {
		if normalizeAddress(c.Clusters[i].CoordinatorAddress) == normalizedAddr {
			cluster := c.Clusters[i]
			return &cluster, nil
		}
	}
	return nil, fmt.Errorf("cluster with coordinator %q not found", coordinatorAddr)
}

// GetPreferredCluster returns the preferred cluster or the first one.
func (c *ClientConfig) GetPreferredCluster() (*ClusterInfo, error) {
	if c.Defaults.PreferredCluster != "" {
		return c.GetClusterByName(c.Defaults.PreferredCluster)
	}
	if len(c.Clusters) == 0 {
		return nil, fmt.Errorf("no clusters configured")
	}
	cluster := c.Clusters[0]
	return &cluster, nil
}

// AddCluster adds or replaces a cluster profile and saves the configuration.
func (c *ClientConfig) AddCluster(cluster ClusterInfo) error {
	if cluster.Name == "" {
		return fmt.Errorf("cluster name is required")
	}
	if cluster.CoordinatorAddress == "" {
		return fmt.Errorf("coordinator address is required")
	}

	replaced := false
	for i := range c.Clusters {
		if c.Clusters[i].Name == cluster.Name {
			c.Clusters[i] = cluster
			replaced = true
			break
		}
	}
	if !replaced {
		c.Clusters = append(c.Clusters, cluster)
	}

	if c.Defaults.PreferredCluster == "" {
		c.Defaults.PreferredCluster = cluster.Name
	}
	return c.Save()
}

func (c *ClientConfig) RemoveCluster(name string) error {
	for i := range c.Clusters {
		if c.Clusters[i].Name != name {
			continue
		}
		c.Clusters = append(c.Clusters[:i], c.Clusters[i+1:]...)

		if c.Defaults.PreferredCluster == name {
			c.Defaults.PreferredCluster = ""
			if len(c.Clusters) > 0 {
				c.Defaults.PreferredCluster = c.Clusters[0].Name
			}
		}
		return c.Save()
	}
	return fmt.Errorf("cluster %q not found", name)
}

// ResolveConnection picks the cluster to talk to. An explicit coordinator
// address wins; its monitor is taken from a matching profile if one exists.
func (c *ClientConfig) ResolveConnection(coordinatorAddr string) (*ConnectionConfig, error) {
	conn := &ConnectionConfig{
		Coordinator: coordinatorAddr,
		Timeout:     c.Defaults.Timeout.Std(),
		NumParts:    c.Defaults.NumParts,
	}

	if coordinatorAddr == "" {
		cluster, err := c.GetPreferredCluster()
		if err != nil {
			return nil, fmt.Errorf("no coordinator given: %w", err)
		}
		conn.Coordinator = cluster.CoordinatorAddress
		conn.Monitor = cluster.MonitorAddress
		return conn, nil
	}

	if cluster, err := c.GetClusterByCoordinator(coordinatorAddr); err == nil {
		conn.Monitor = cluster.MonitorAddress
	}
	return conn, nil
}

// normalizeAddress makes loopback spellings and a missing port compare equal.
func normalizeAddress(addr string) string {
	if !strings.Contains(addr, ":") {
		addr = addr + DefaultCoordinatorAddress
	}

	if host, port, err := net.SplitHostPort(addr); err == nil {
		if host == "" || host == "localhost" || host == "127.0.0.1" || host == "::1" {
			return fmt.Sprintf("localhost:%s", port)
		}
	}
	return addr
}
