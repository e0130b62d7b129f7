package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/LucaPlaster/MyGeoEyes/pkg/protocol"
	"github.com/LucaPlaster/MyGeoEyes/pkg/types"

	"google.golang.org/grpc"
)

// RemoteNode calls a storage node over gRPC.
type RemoteNode struct {
	address string
	client  protocol.NodeClient
}

func NewRemoteNode(address string, conn grpc.ClientConnInterface) *RemoteNode {
	return &RemoteNode{address: address, client: protocol.NewNodeClient(conn)}
}

func (n *RemoteNode) Address() string {
	return n.address
}

func (n *RemoteNode) UploadPart(ctx context.Context, name string, index int, data []byte) (bool, error) {
	resp, err := n.client.UploadPart(ctx, &protocol.UploadPartRequest{
		Name:  name,
		Index: int32(index),
		Data:  data,
	})
	if err != nil {
		return false, err
	}
	return resp.Success, nil
}

func (n *RemoteNode) DownloadPart(ctx context.Context, name string, index int) ([]byte, bool, error) {
	resp, err := n.client.DownloadPart(ctx, &protocol.DownloadPartRequest{
		Name:  name,
		Index: int32(index),
	})
	if err != nil {
		return nil, false, err
	}
	if !resp.Found {
		return nil, false, nil
	}
	data := resp.Data
	if data == nil {
		data = []byte{}
	}
	return data, true, nil
}

func (n *RemoteNode) DeletePart(ctx context.Context, name string, index int) (bool, error) {
	resp, err := n.client.DeletePart(ctx, &protocol.DeletePartRequest{
		Name:  name,
		Index: int32(index),
	})
	if err != nil {
		return false, err
	}
	return resp.Success, nil
}

func (n *RemoteNode) Probe(ctx context.Context) (bool, error) {
	resp, err := n.client.Probe(ctx, &protocol.ProbeRequest{})
	if err != nil {
		return false, err
	}
	return resp.Alive, nil
}

// RemoteSink delivers notifications to a subscriber process. Its identity is
// the address it was subscribed with.
type RemoteSink struct {
	address string
	client  protocol.SubscriberClient
}

func NewRemoteSink(address string, conn grpc.ClientConnInterface) *RemoteSink {
	return &RemoteSink{address: address, client: protocol.NewSubscriberClient(conn)}
}

func (s *RemoteSink) ID() string {
	return s.address
}

func (s *RemoteSink) Notify(ctx context.Context, event types.EventType, object string) error {
	_, err := s.client.Notify(ctx, &protocol.NotifyRequest{
		EventType:  string(event),
		ObjectName: object,
		OccurredAt: protocol.NewTimestamp(time.Now()),
	})
	if err != nil {
		return fmt.Errorf("notify %s: %w", s.address, err)
	}
	return nil
}

// RemoteMonitor reports node failures to the monitor service.
type RemoteMonitor struct {
	address string
	client  protocol.MonitorClient
}

func NewRemoteMonitor(address string, conn grpc.ClientConnInterface) *RemoteMonitor {
	return &RemoteMonitor{address: address, client: protocol.NewMonitorClient(conn)}
}

func (m *RemoteMonitor) Address() string {
	return m.address
}

func (m *RemoteMonitor) RegisterCoordinator(ctx context.Context, address string) error {
	resp, err := m.client.RegisterCoordinator(ctx, &protocol.RegisterCoordinatorRequest{Address: address})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("monitor %s rejected coordinator registration", m.address)
	}
	return nil
}

func (m *RemoteMonitor) ReportNodeFailure(ctx context.Context, nodeID types.NodeID) error {
	_, err := m.client.ReportNodeFailure(ctx, &protocol.ReportNodeFailureRequest{NodeId: string(nodeID)})
	return err
}
