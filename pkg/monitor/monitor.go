// Package monitor implements the failure monitor: coordinators register with
// it and report storage nodes they lost contact with. It keeps a bounded log
// of reports for operators.
package monitor

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/LucaPlaster/MyGeoEyes/pkg/config"
	"github.com/LucaPlaster/MyGeoEyes/pkg/protocol"
	"github.com/LucaPlaster/MyGeoEyes/pkg/types"

	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// Monitor is a passive failure sink. It records which coordinators
// registered and the node failures they report.
type Monitor struct {
	protocol.UnimplementedMonitorServer

	config config.MonitorConfig
	logger *zap.Logger

	coordinators map[string]time.Time
	reports      []types.FailureReport
	mu           sync.RWMutex

	server      *grpc.Server
	serverMutex sync.Mutex
}

// New creates a monitor; it does not listen until Start or Serve.
func New(cfg *config.MonitorConfig, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}

	conf := *cfg
	conf.ApplyDefaults()

	return &Monitor{
		config:       conf,
		logger:       logger,
		coordinators: make(map[string]time.Time),
	}
}

// Start listens on the configured address and serves until Stop.
func (m *Monitor) Start() error {
	listener, err := net.Listen("tcp", m.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", m.config.Address, err)
	}
	return m.Serve(listener)
}

// Serve runs the monitor service on listener.
func (m *Monitor) Serve(listener net.Listener) error {
	server := grpc.NewServer(protocol.ServerOptions(0)...)
	protocol.RegisterMonitorServer(server, m)

	m.serverMutex.Lock()
	m.server = server
	m.serverMutex.Unlock()

	m.logger.Info("Monitor starting",
		zap.String("address", listener.Addr().String()),
		zap.Int("max_reports", m.config.MaxReports))

	return server.Serve(listener)
}

func (m *Monitor) Stop() {
	m.serverMutex.Lock()
	server := m.server
	m.serverMutex.Unlock()

	if server != nil {
		server.GracefulStop()
	}
}

func (m *Monitor) RegisterCoordinator(ctx context.Context, req *protocol.RegisterCoordinatorRequest) (*protocol.RegisterCoordinatorResponse, error) {
	if req.Address == "" {
		return &protocol.RegisterCoordinatorResponse{Success: false}, nil
	}

	m.mu.Lock()
	m.coordinators[req.Address] = time.Now()
	m.mu.Unlock()

	m.logger.Info("Coordinator registered", zap.String("coordinator", req.Address))
	return &protocol.RegisterCoordinatorResponse{Success: true}, nil
}

func (m *Monitor) ReportNodeFailure(ctx context.Context, req *protocol.ReportNodeFailureRequest) (*protocol.ReportNodeFailureResponse, error) {
	m.Record(types.NodeID(req.NodeId))
	return &protocol.ReportNodeFailureResponse{}, nil
}

// Record appends a failure report, dropping the oldest once MaxReports is
// reached.
func (m *Monitor) Record(nodeID types.NodeID) {
	report := types.FailureReport{NodeID: nodeID, ReportedAt: time.Now()}

	m.mu.Lock()
	m.reports = append(m.reports, report)
	if overflow := len(m.reports) - m.config.MaxReports; overflow > 0 {
		m.reports = append(m.reports[:0:0], m.reports[overflow:]...)
	}
	m.mu.Unlock()

	m.logger.Warn("Storage node failure reported", zap.String("node_id", string(nodeID)))
}

func (m *Monitor) ListFailures(ctx context.Context, req *protocol.ListFailuresRequest) (*protocol.ListFailuresResponse, error) {
	reports := m.Reports(int(req.Limit))

	resp := &protocol.ListFailuresResponse{
		Coordinators: m.Coordinators(),
		Reports:      make([]*protocol.FailureReport, len(reports)),
	}
	for i, report := range reports {
		resp.Reports[i] = &protocol.FailureReport{
			NodeId:     string(report.NodeID),
			ReportedAt: protocol.NewTimestamp(report.ReportedAt),
		}
	}
	return resp, nil
}

// Reports returns up to limit of the most recent reports, oldest first. A
// limit of zero or less returns all of them.
func (m *Monitor) Reports(limit int) []types.FailureReport {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reports := m.reports
	if limit > 0 && len(reports) > limit {
		reports = reports[len(reports)-limit:]
	}
	return append([]types.FailureReport(nil), reports...)
}

func (m *Monitor) Coordinators() []string {
	m.mu.RLock()
	addresses := make([]string, 0, len(m.coordinators))
	for address := range m.coordinators {
		addresses = append(addresses, address)
	}
	m.mu.RUnlock()

	sort.Strings(addresses)
	return addresses
}
