package coordinator

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/LucaPlaster/MyGeoEyes/pkg/config"
	"github.com/LucaPlaster/MyGeoEyes/pkg/metrics"
	"github.com/LucaPlaster/MyGeoEyes/pkg/protocol"
	"github.com/LucaPlaster/MyGeoEyes/pkg/shared"
	"github.com/LucaPlaster/MyGeoEyes/pkg/types"

	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// NodeHandle is the coordinator's capability to call one storage node.
type NodeHandle interface {
	Address() string
	UploadPart(ctx context.Context, name string, index int, data []byte) (bool, error)
	DownloadPart(ctx context.Context, name string, index int) ([]byte, bool, error)
	DeletePart(ctx context.Context, name string, index int) (bool, error)
	Probe(ctx context.Context) (bool, error)
}

// NotificationSink receives store/delete events. ID identifies the sink for
// idempotent subscribe and unsubscribe.
type NotificationSink interface {
	ID() string
	Notify(ctx context.Context, event types.EventType, object string) error
}

// FailureSink collects reports about nodes the coordinator lost contact with.
type FailureSink interface {
	RegisterCoordinator(ctx context.Context, address string) error
	ReportNodeFailure(ctx context.Context, nodeID types.NodeID) error
}

// Dialer resolves an advertised endpoint into a callable handle.
type Dialer interface {
	DialNode(address string) (NodeHandle, error)
	DialSink(address string) (NotificationSink, error)
	DialMonitor(address string) (FailureSink, error)
}

// Member is a registered storage node.
type Member struct {
	ID           types.NodeID
	Address      string
	Handle       NodeHandle
	RegisteredAt time.Time

	// guarded by memberMutex
	lastProbe time.Time
	misses    int
}

// objectEntry is the part map of one object. parts[i] is the replica set of
// part i; a replica set slice is never modified after publication, edits
// swap in a new slice under objectMutex.
type objectEntry struct {
	size     int64
	parts    [][]types.NodeID
	storedAt time.Time
}

// Coordinator owns cluster membership, the object directory and the
// subscription directory.
type Coordinator struct {
	logger  *zap.Logger
	config  config.CoordinatorConfig
	dialer  Dialer
	metrics *metrics.CoordinatorMetrics

	// Membership
	members     map[types.NodeID]*Member
	memberMutex sync.RWMutex

	// Object directory
	objects     map[string]*objectEntry
	objectMutex sync.RWMutex

	// Subscription directory
	subscriptions map[types.EventType][]NotificationSink
	subMutex      sync.RWMutex

	failureSink FailureSink
	sinkMutex   sync.RWMutex

	rng   *rand.Rand
	rngMu sync.Mutex

	sweepMutex sync.Mutex
	startOnce  sync.Once

	server        *grpc.Server
	metricsServer *http.Server
	serverMutex   sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a coordinator that reaches nodes, sinks and the monitor over
// gRPC.
func New(cfg *config.CoordinatorConfig, logger *zap.Logger) *Coordinator {
	return NewWithDialer(cfg, logger, NewGRPCDialer(shared.NewConnectionPool()))
}

// NewWithDialer creates a coordinator that resolves addresses through dialer.
func NewWithDialer(cfg *config.CoordinatorConfig, logger *zap.Logger, dialer Dialer) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}

	conf := *cfg
	conf.ApplyDefaults()

	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		logger:        logger,
		config:        conf,
		dialer:        dialer,
		metrics:       metrics.NewCoordinatorMetrics(),
		members:       make(map[types.NodeID]*Member),
		objects:       make(map[string]*objectEntry),
		subscriptions: make(map[types.EventType][]NotificationSink),
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Metrics returns the coordinator's Prometheus collectors.
func (c *Coordinator) Metrics() *metrics.CoordinatorMetrics {
	return c.metrics
}

func (c *Coordinator) ReplicationFactor() int {
	return c.config.ReplicationFactor
}

// Start listens on the configured address and serves until Stop.
func (c *Coordinator) Start() error {
	listener, err := net.Listen("tcp", c.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", c.config.Address, err)
	}
	return c.Serve(listener)
}

// Serve runs the gRPC surface on listener, starts the liveness sweep and
// blocks until the server stops.
func (c *Coordinator) Serve(listener net.Listener) error {
	server := grpc.NewServer(protocol.ServerOptions(c.config.MaxMessageSize.Int())...)
	protocol.RegisterCoordinatorServer(server, &rpcServer{c: c})

	c.serverMutex.Lock()
	c.server = server
	c.serverMutex.Unlock()

	c.logger.Info("Coordinator starting",
		zap.String("address", listener.Addr().String()),
		zap.Int("replication_factor", c.config.ReplicationFactor),
		zap.Duration("sweep_interval", c.config.SweepInterval.Std()))

	if c.config.MetricsAddress != "" {
		c.startMetricsServer()
	}

	if c.config.MonitorAddress != "" {
		if err := c.connectMonitor(c.config.MonitorAddress, listener.Addr().String()); err != nil {
			c.logger.Warn("Failed to connect to monitor",
				zap.String("monitor", c.config.MonitorAddress),
				zap.Error(err))
		}
	}

	c.StartSweeper()

	return server.Serve(listener)
}

// StartSweeper launches the background liveness sweep once.
func (c *Coordinator) StartSweeper() {
	c.startOnce.Do(func() {
		c.wg.Add(1)
		go c.sweepLoop()
	})
}

func (c *Coordinator) Stop() {
	c.cancel()
	c.wg.Wait()

	c.serverMutex.Lock()
	server, metricsServer := c.server, c.metricsServer
	c.serverMutex.Unlock()

	if server != nil {
		server.GracefulStop()
	}

	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(ctx); err != nil {
			c.logger.Warn("Metrics server shutdown failed", zap.Error(err))
		}
		cancel()
	}

	if closer, ok := c.dialer.(io.Closer); ok {
		closer.Close()
	}
}

func (c *Coordinator) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.metrics.Handler())
	metricsServer := &http.Server{
		Addr:              c.config.MetricsAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	c.serverMutex.Lock()
	c.metricsServer = metricsServer
	c.serverMutex.Unlock()

	go func() {
		c.logger.Info("Metrics server listening", zap.String("address", c.config.MetricsAddress))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
}

// connectMonitor installs the monitor as failure sink and registers this
// coordinator with it.
func (c *Coordinator) connectMonitor(monitorAddress, selfAddress string) error {
	sink, err := c.dialer.DialMonitor(monitorAddress)
	if err != nil {
		return err
	}
	c.SetFailureSink(sink)

	ctx, cancel := context.WithTimeout(c.ctx, c.config.RPCTimeout.Std())
	defer cancel()
	if err := sink.RegisterCoordinator(ctx, selfAddress); err != nil {
		return fmt.Errorf("%w: monitor registration: %v", ErrUnreachable, err)
	}

	c.logger.Info("Registered with monitor", zap.String("monitor", monitorAddress))
	return nil
}

func (c *Coordinator) SetFailureSink(sink FailureSink) {
	c.sinkMutex.Lock()
	c.failureSink = sink
	c.sinkMutex.Unlock()
}

// reportFailure tells the failure sink that contact with a node was lost.
func (c *Coordinator) reportFailure(ctx context.Context, nodeID types.NodeID) {
	c.sinkMutex.RLock()
	sink := c.failureSink
	c.sinkMutex.RUnlock()

	if sink == nil {
		c.logger.Debug("Node failure observed, no monitor configured", zap.String("node_id", string(nodeID)))
		return
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if err := sink.ReportNodeFailure(callCtx, nodeID); err != nil {
		c.metrics.FailureReports.WithLabelValues(metrics.ResultFailure).Inc()
		c.logger.Warn("Failed to report node failure",
			zap.String("node_id", string(nodeID)),
			zap.Error(err))
		return
	}
	c.metrics.FailureReports.WithLabelValues(metrics.ResultSuccess).Inc()
}

// callContext bounds a single remote call.
func (c *Coordinator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.config.RPCTimeout.Std())
}

// RegisterNode adds or replaces a member. Registering an existing id again
// replaces its handle and resets its probe history.
func (c *Coordinator) RegisterNode(id types.NodeID, handle NodeHandle) error {
	if id == "" || handle == nil {
		return fmt.Errorf("%w: node id and handle are required", ErrInvalidArgument)
	}

	member := &Member{
		ID:           id,
		Address:      handle.Address(),
		Handle:       handle,
		RegisteredAt: time.Now(),
	}

	c.memberMutex.Lock()
	_, existed := c.members[id]
	c.members[id] = member
	count := len(c.members)
	c.memberMutex.Unlock()

	c.metrics.Members.Set(float64(count))

	if existed {
		c.logger.Debug("Node re-registered", zap.String("node_id", string(id)), zap.String("address", member.Address))
	} else {
		c.logger.Info("Node registered", zap.String("node_id", string(id)), zap.String("address", member.Address))
	}
	return nil
}

// UnregisterNode removes a member without triggering re-replication.
func (c *Coordinator) UnregisterNode(id types.NodeID) bool {
	c.memberMutex.Lock()
	_, existed := c.members[id]
	delete(c.members, id)
	count := len(c.members)
	c.memberMutex.Unlock()

	c.metrics.Members.Set(float64(count))

	if existed {
		c.logger.Info("Node unregistered", zap.String("node_id", string(id)))
	}
	return existed
}

// removeMember drops m only if it is still the current registration for its
// id.
func (c *Coordinator) removeMember(m *Member) bool {
	c.memberMutex.Lock()
	current, exists := c.members[m.ID]
	removed := exists && current == m
	if removed {
		delete(c.members, m.ID)
	}
	count := len(c.members)
	c.memberMutex.Unlock()

	c.metrics.Members.Set(float64(count))
	return removed
}

func (c *Coordinator) member(id types.NodeID) *Member {
	c.memberMutex.RLock()
	defer c.memberMutex.RUnlock()
	return c.members[id]
}

// memberList returns the current members ordered by id.
func (c *Coordinator) memberList() []*Member {
	c.memberMutex.RLock()
	members := make([]*Member, 0, len(c.members))
	for _, m := range c.members {
		members = append(members, m)
	}
	c.memberMutex.RUnlock()

	sort.Slice(members, func(i, j int) bool {
		return members[i].ID < members[j].ID
	})
	return members
}

func (c *Coordinator) shuffle(members []*Member) {
	c.rngMu.Lock()
	c.rng.Shuffle(len(members), func(i, j int) {
		members[i], members[j] = members[j], members[i]
	})
	c.rngMu.Unlock()
}

// Members returns a snapshot of the membership ordered by id.
func (c *Coordinator) Members() []types.MemberInfo {
	c.memberMutex.RLock()
	infos := make([]types.MemberInfo, 0, len(c.members))
	for _, m := range c.members {
		infos = append(infos, types.MemberInfo{
			ID:           m.ID,
			Address:      m.Address,
			RegisteredAt: m.RegisteredAt,
			LastProbe:    m.lastProbe,
			Misses:       m.misses,
		})
	}
	c.memberMutex.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ID < infos[j].ID
	})
	return infos
}

// Objects returns a snapshot of the object directory ordered by name.
func (c *Coordinator) Objects() []types.ObjectInfo {
	c.objectMutex.RLock()
	infos := make([]types.ObjectInfo, 0, len(c.objects))
	for name, entry := range c.objects {
		replicas := make([]int, len(entry.parts))
		for i, set := range entry.parts {
			replicas[i] = len(set)
		}
		infos = append(infos, types.ObjectInfo{
			Name:     name,
			Size:     entry.size,
			Parts:    len(entry.parts),
			Replicas: replicas,
			StoredAt: entry.storedAt,
		})
	}
	c.objectMutex.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// ReplicaSets returns a copy of the replica sets of an object.
func (c *Coordinator) ReplicaSets(name string) ([][]types.NodeID, bool) {
	c.objectMutex.RLock()
	defer c.objectMutex.RUnlock()

	entry, ok := c.objects[name]
	if !ok {
		return nil, false
	}
	return entry.snapshot(), true
}

func (e *objectEntry) snapshot() [][]types.NodeID {
	parts := make([][]types.NodeID, len(e.parts))
	for i, set := range e.parts {
		parts[i] = append([]types.NodeID(nil), set...)
	}
	return parts
}

func containsNode(ids []types.NodeID, id types.NodeID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func withoutNode(ids []types.NodeID, id types.NodeID) []types.NodeID {
	result := make([]types.NodeID, 0, len(ids))
	for _, candidate := range ids {
		if candidate != id {
			result = append(result, candidate)
		}
	}
	return result
}
