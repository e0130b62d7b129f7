package node

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/LucaPlaster/MyGeoEyes/pkg/config"
	"github.com/LucaPlaster/MyGeoEyes/pkg/protocol"
	"github.com/LucaPlaster/MyGeoEyes/pkg/shared"
	"github.com/LucaPlaster/MyGeoEyes/pkg/storage"
	"github.com/LucaPlaster/MyGeoEyes/pkg/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Node is a storage node. It keeps object parts on local disk and serves
// them to the coordinator and to clients.
type Node struct {
	protocol.UnimplementedNodeServer

	nodeID  types.NodeID
	config  config.NodeConfig
	logger  *zap.Logger
	store   *storage.PartStore
	address string // advertised, known after listen

	// Coordinator connection
	coordinatorAddress string
	coordinatorConn    *grpc.ClientConn
	coordinatorClient  protocol.CoordinatorClient
	connMutex          sync.Mutex

	server      *grpc.Server
	serverMutex sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg *config.NodeConfig, logger *zap.Logger) (*Node, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conf := *cfg
	conf.ApplyDefaults()
	if conf.NodeID == "" {
		conf.NodeID = uuid.New().String()
	}

	store, err := storage.NewPartStore(conf.DataDir)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Node{
		nodeID:             types.NodeID(conf.NodeID),
		config:             conf,
		logger:             logger.With(zap.String("node_id", conf.NodeID)),
		store:              store,
		address:            conf.Address,
		coordinatorAddress: conf.CoordinatorAddress,
		ctx:                ctx,
		cancel:             cancel,
	}, nil
}

func (n *Node) ID() types.NodeID {
	return n.nodeID
}

// Address is the endpoint advertised to the coordinator.
func (n *Node) Address() string {
	n.serverMutex.Lock()
	defer n.serverMutex.Unlock()
	return n.address
}

func (n *Node) Start() error {
	// Bind to all interfaces on the advertised port when a hostname is given
	bindAddr := n.config.Address
	if host, port, err := net.SplitHostPort(n.config.Address); err == nil && host != "" {
		bindAddr = ":" + port
	}

	listener, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", bindAddr, err)
	}
	return n.Serve(listener)
}

// Serve registers with the coordinator and serves parts on listener until
// Stop.
func (n *Node) Serve(listener net.Listener) error {
	// Held until the registration loop takes over, so Stop waits for startup.
	n.wg.Add(1)

	server := grpc.NewServer(protocol.ServerOptions(n.config.MaxMessageSize.Int())...)
	protocol.RegisterNodeServer(server, n)

	n.serverMutex.Lock()
	n.server = server
	n.address = shared.AdvertiseAddress(n.config.Address, listener.Addr())
	n.serverMutex.Unlock()

	count, bytes, err := n.store.Stats()
	if err != nil {
		n.logger.Warn("Failed to read part store", zap.Error(err))
	}

	n.logger.Info("Node starting",
		zap.String("address", n.Address()),
		zap.String("coordinator", n.coordinatorAddress),
		zap.String("data_dir", n.store.Dir()),
		zap.Int64("stored_parts", count),
		zap.Int64("stored_bytes", bytes))

	if err := n.connectToCoordinator(); err != nil {
		listener.Close()
		n.wg.Done()
		return fmt.Errorf("failed to connect to coordinator: %w", err)
	}

	if err := n.registerWithCoordinator(); err != nil {
		listener.Close()
		n.wg.Done()
		return fmt.Errorf("failed to register with coordinator: %w", err)
	}

	go n.registrationLoop()

	return server.Serve(listener)
}

func (n *Node) Stop() {
	n.cancel()
	n.wg.Wait()

	n.unregisterFromCoordinator()

	n.connMutex.Lock()
	if n.coordinatorConn != nil {
		n.coordinatorConn.Close()
		n.coordinatorConn = nil
		n.coordinatorClient = nil
	}
	n.connMutex.Unlock()

	n.serverMutex.Lock()
	server := n.server
	n.serverMutex.Unlock()
	if server != nil {
		server.GracefulStop()
	}
}

func (n *Node) connectToCoordinator() error {
	ctx, cancel := context.WithTimeout(n.ctx, shared.DefaultGRPCTimeout)
	defer cancel()

	conn, err := shared.Dial(ctx, n.coordinatorAddress)
	if err != nil {
		return err
	}

	n.connMutex.Lock()
	if n.coordinatorConn != nil {
		n.coordinatorConn.Close()
	}
	n.coordinatorConn = conn
	n.coordinatorClient = protocol.NewCoordinatorClient(conn)
	n.connMutex.Unlock()
	return nil
}

func (n *Node) client() protocol.CoordinatorClient {
	n.connMutex.Lock()
	defer n.connMutex.Unlock()
	return n.coordinatorClient
}

func (n *Node) registerWithCoordinator() error {
	client := n.client()
	if client == nil {
		return fmt.Errorf("coordinator client not initialized")
	}

	ctx, cancel := context.WithTimeout(n.ctx, n.config.RPCTimeout.Std())
	defer cancel()

	resp, err := client.RegisterNode(ctx, &protocol.RegisterNodeRequest{
		NodeId:  string(n.nodeID),
		Address: n.Address(),
	})
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("registration rejected by coordinator: %s", resp.Message)
	}

	n.logger.Debug("Registered with coordinator", zap.String("coordinator", n.coordinatorAddress))
	return nil
}

func (n *Node) unregisterFromCoordinator() {
	client := n.client()
	if client == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.config.RPCTimeout.Std())
	defer cancel()

	if _, err := client.UnregisterNode(ctx, &protocol.UnregisterNodeRequest{NodeId: string(n.nodeID)}); err != nil {
		n.logger.Warn("Failed to unregister from coordinator", zap.Error(err))
		return
	}
	n.logger.Info("Unregistered from coordinator")
}

// =============================================================================
// Part Operations
// =============================================================================

func partKey(name string, index int32) (types.PartKey, error) {
	if name == "" || index < 0 {
		return types.PartKey{}, status.Errorf(codes.InvalidArgument, "invalid part %q#%d", name, index)
	}
	return types.PartKey{Object: name, Index: int(index)}, nil
}

func (n *Node) UploadPart(ctx context.Context, req *protocol.UploadPartRequest) (*protocol.UploadPartResponse, error) {
	key, err := partKey(req.Name, req.Index)
	if err != nil {
		return nil, err
	}

	if err := n.store.Put(key, req.Data); err != nil {
		n.logger.Error("Failed to store part", zap.String("part", key.String()), zap.Error(err))
		return &protocol.UploadPartResponse{Success: false}, nil
	}

	n.logger.Debug("Stored part",
		zap.String("part", key.String()),
		zap.Int("size", len(req.Data)))

	return &protocol.UploadPartResponse{Success: true}, nil
}

func (n *Node) DownloadPart(ctx context.Context, req *protocol.DownloadPartRequest) (*protocol.DownloadPartResponse, error) {
	key, err := partKey(req.Name, req.Index)
	if err != nil {
		return nil, err
	}

	data, found, err := n.store.Get(key)
	if err != nil {
		n.logger.Error("Failed to read part", zap.String("part", key.String()), zap.Error(err))
		return &protocol.DownloadPartResponse{Found: false}, nil
	}
	if !found {
		n.logger.Debug("Part not found", zap.String("part", key.String()))
		return &protocol.DownloadPartResponse{Found: false}, nil
	}

	return &protocol.DownloadPartResponse{Found: true, Data: data}, nil
}

func (n *Node) DeletePart(ctx context.Context, req *protocol.DeletePartRequest) (*protocol.DeletePartResponse, error) {
	key, err := partKey(req.Name, req.Index)
	if err != nil {
		return nil, err
	}

	existed, err := n.store.Delete(key)
	if err != nil {
		n.logger.Warn("Failed to delete part", zap.String("part", key.String()), zap.Error(err))
		return &protocol.DeletePartResponse{Success: false}, nil
	}

	n.logger.Debug("Deleted part", zap.String("part", key.String()), zap.Bool("existed", existed))
	return &protocol.DeletePartResponse{Success: existed}, nil
}

func (n *Node) Probe(ctx context.Context, req *protocol.ProbeRequest) (*protocol.ProbeResponse, error) {
	count, bytes, err := n.store.Stats()
	if err != nil {
		n.logger.Warn("Failed to read part store stats", zap.Error(err))
	}

	return &protocol.ProbeResponse{
		Alive:       true,
		NodeId:      string(n.nodeID),
		StoredParts: count,
		StoredBytes: bytes,
	}, nil
}
