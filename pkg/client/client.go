// Package client is the library behind the geoeyes CLI: it stores, lists,
// downloads and deletes objects through a coordinator and reads parts
// directly from the storage nodes serving them.
package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/LucaPlaster/MyGeoEyes/pkg/config"
	"github.com/LucaPlaster/MyGeoEyes/pkg/protocol"
	"github.com/LucaPlaster/MyGeoEyes/pkg/shared"
	"github.com/LucaPlaster/MyGeoEyes/pkg/storage"
	"github.com/LucaPlaster/MyGeoEyes/pkg/types"

	"go.uber.org/zap"
)

const maxParallelDownloads = 4

var (
	ErrNotFound  = errors.New("object not found")
	ErrRejected  = errors.New("request rejected by coordinator")
	ErrNoMonitor = errors.New("no monitor address configured")
)

type Client struct {
	coordinatorAddress string
	monitorAddress     string
	timeout            time.Duration
	logger             *zap.Logger

	// Shared between the coordinator, the monitor and every storage node
	// parts are read from.
	pool     *shared.ConnectionPool
	transfer *storage.PartTransfer
}

// Status is the coordinator's view of the cluster.
type Status struct {
	ReplicationFactor int
	Members           []types.MemberInfo
	Objects           []types.ObjectInfo
	Subscribers       map[types.EventType]int
}

// FailureLog is the monitor's record of reporting coordinators and failed
// nodes.
type FailureLog struct {
	Coordinators []string
	Reports      []types.FailureReport
}

func New(conn *config.ConnectionConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := conn.Timeout
	if timeout <= 0 {
		timeout = config.DefaultClientTimeout
	}

	return &Client{
		coordinatorAddress: conn.Coordinator,
		monitorAddress:     conn.Monitor,
		timeout:            timeout,
		logger:             logger,
		pool:               shared.NewConnectionPool(),
		transfer:           storage.NewPartTransfer(logger, timeout),
	}
}

func (c *Client) Close() {
	c.pool.CloseAll()
}

func (c *Client) coordinator() (protocol.CoordinatorClient, error) {
	conn, err := c.pool.GetConnection(c.coordinatorAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to coordinator: %w", err)
	}
	return protocol.NewCoordinatorClient(conn), nil
}

func (c *Client) node(address string) (*shared.RemoteNode, error) {
	conn, err := c.pool.GetConnection(address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to node %s: %w", address, err)
	}
	return shared.NewRemoteNode(address, conn), nil
}

// Store splits data into numParts and stores it under name.
func (c *Client) Store(ctx context.Context, name string, data []byte, numParts int) error {
	coord, err := c.coordinator()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := coord.StoreObject(ctx, &protocol.StoreObjectRequest{
		Name:     name,
		Data:     data,
		NumParts: int32(numParts),
	})
	if err != nil {
		return fmt.Errorf("store %s: %w", name, err)
	}
	if !resp.Success {
		return fmt.Errorf("%w: store %s: %s", ErrRejected, name, resp.Message)
	}

	c.logger.Debug("Object stored",
		zap.String("name", name),
		zap.Int("size", len(data)),
		zap.Int("parts", numParts))
	return nil
}

// StoreFile stores the file at path. An empty name uses the file's base name.
func (c *Client) StoreFile(ctx context.Context, path, name string, numParts int) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if name == "" {
		name = filepath.Base(path)
	}
	return name, c.Store(ctx, name, data, numParts)
}

func (c *Client) List(ctx context.Context) ([]string, error) {
	coord, err := c.coordinator()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := coord.ListObjects(ctx, &protocol.ListObjectsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	return resp.Names, nil
}

// Locate returns one serving node per part, in index order.
func (c *Client) Locate(ctx context.Context, name string) ([]types.PartLocation, error) {
	coord, err := c.coordinator()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := coord.GetPartLocations(ctx, &protocol.GetPartLocationsRequest{Name: name})
	if err != nil {
		return nil, fmt.Errorf("locate %s: %w", name, err)
	}
	if !resp.Found {
		return nil, fmt.Errorf("%w: %s: %s", ErrNotFound, name, resp.Message)
	}

	locations := make([]types.PartLocation, len(resp.Locations))
	for i, loc := range resp.Locations {
		locations[i] = types.PartLocation{
			Index:   int(loc.Index),
			NodeID:  types.NodeID(loc.NodeId),
			Address: loc.Address,
		}
	}
	return locations, nil
}

// Download locates every part, fetches them from their serving nodes in
// parallel and reassembles the object.
func (c *Client) Download(ctx context.Context, name string) ([]byte, error) {
	locations, err := c.Locate(ctx, name)
	if err != nil {
		return nil, err
	}

	sources := make([]storage.PartSource, len(locations))
	for _, loc := range locations {
		if loc.Index < 0 || loc.Index >= len(sources) || sources[loc.Index] != nil {
			return nil, fmt.Errorf("coordinator returned bad part index %d for %d parts", loc.Index, len(sources))
		}

		node, err := c.node(loc.Address)
		if err != nil {
			return nil, err
		}
		sources[loc.Index] = node
	}

	parts, err := c.transfer.ParallelFetch(ctx, name, sources, maxParallelDownloads)
	if errors.Is(err, storage.ErrPartMissing) {
		return nil, fmt.Errorf("%w: download %s: %v", ErrNotFound, name, err)
	}
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", name, err)
	}

	return storage.ReassembleParts(parts)
}

// DownloadFile writes the object into dir, named after the object. It
// returns the written path.
func (c *Client) DownloadFile(ctx context.Context, name, dir string) (string, error) {
	data, err := c.Download(ctx, name)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// Delete removes the object and reports how many part replicas were removed
// and how many could not be.
func (c *Client) Delete(ctx context.Context, name string) (removed, failed int, err error) {
	coord, err := c.coordinator()
	if err != nil {
		return 0, 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := coord.DeleteObject(ctx, &protocol.DeleteObjectRequest{Name: name})
	if err != nil {
		return 0, 0, fmt.Errorf("delete %s: %w", name, err)
	}
	if !resp.Success {
		return 0, 0, fmt.Errorf("%w: %s: %s", ErrNotFound, name, resp.Message)
	}
	return int(resp.Removed), int(resp.Failed), nil
}

func (c *Client) Status(ctx context.Context) (*Status, error) {
	coord, err := c.coordinator()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := coord.GetStatus(ctx, &protocol.GetStatusRequest{})
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	status := &Status{
		ReplicationFactor: int(resp.ReplicationFactor),
		Members:           make([]types.MemberInfo, len(resp.Members)),
		Objects:           make([]types.ObjectInfo, len(resp.Objects)),
		Subscribers:       make(map[types.EventType]int, len(resp.Subscribers)),
	}

	for i, m := range resp.Members {
		status.Members[i] = types.MemberInfo{
			ID:           types.NodeID(m.NodeId),
			Address:      m.Address,
			RegisteredAt: time.UnixMilli(m.RegisteredAt),
			Misses:       int(m.Misses),
		}
		if m.LastProbe != 0 {
			status.Members[i].LastProbe = time.UnixMilli(m.LastProbe)
		}
	}

	for i, o := range resp.Objects {
		replicas := make([]int, len(o.Replicas))
		for j, n := range o.Replicas {
			replicas[j] = int(n)
		}
		status.Objects[i] = types.ObjectInfo{
			Name:     o.Name,
			Size:     o.Size,
			Parts:    int(o.Parts),
			Replicas: replicas,
			StoredAt: time.UnixMilli(o.StoredAt),
		}
	}

	for event, n := range resp.Subscribers {
		status.Subscribers[types.EventType(event)] = int(n)
	}
	return status, nil
}

func (c *Client) Events(ctx context.Context) ([]types.EventType, error) {
	coord, err := c.coordinator()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := coord.ListEventTypes(ctx, &protocol.ListEventTypesRequest{})
	if err != nil {
		return nil, fmt.Errorf("list event types: %w", err)
	}

	events := make([]types.EventType, len(resp.EventTypes))
	for i, name := range resp.EventTypes {
		events[i] = types.EventType(name)
	}
	return events, nil
}

// Failures reads up to limit of the monitor's most recent failure reports.
func (c *Client) Failures(ctx context.Context, limit int) (*FailureLog, error) {
	if c.monitorAddress == "" {
		return nil, ErrNoMonitor
	}

	conn, err := c.pool.GetConnection(c.monitorAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to monitor: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := protocol.NewMonitorClient(conn).ListFailures(ctx, &protocol.ListFailuresRequest{Limit: int32(limit)})
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}

	log := &FailureLog{
		Coordinators: resp.Coordinators,
		Reports:      make([]types.FailureReport, len(resp.Reports)),
	}
	for i, report := range resp.Reports {
		log.Reports[i] = types.FailureReport{NodeID: types.NodeID(report.NodeId)}
		if report.ReportedAt != nil {
			log.Reports[i].ReportedAt = report.ReportedAt.AsTime()
		}
	}
	return log, nil
}
