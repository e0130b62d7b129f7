package coordinator

import (
	"context"

	"github.com/LucaPlaster/MyGeoEyes/pkg/protocol"
	"github.com/LucaPlaster/MyGeoEyes/pkg/types"

	"go.uber.org/zap"
)

// rpcServer exposes the coordinator over gRPC. Domain failures are returned
// in the response body; transport errors are left to gRPC.
type rpcServer struct {
	protocol.UnimplementedCoordinatorServer
	c *Coordinator
}

// detach keeps an operation running after the caller gives up; each remote
// call inside it is still bounded by the RPC timeout.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func (s *rpcServer) RegisterNode(ctx context.Context, req *protocol.RegisterNodeRequest) (*protocol.RegisterNodeResponse, error) {
	if req.NodeId == "" || req.Address == "" {
		return &protocol.RegisterNodeResponse{
			Success: false,
			Message: "node id and address are required",
		}, nil
	}

	handle, err := s.c.dialer.DialNode(req.Address)
	if err != nil {
		s.c.logger.Warn("Failed to dial registering node",
			zap.String("node_id", req.NodeId),
			zap.String("address", req.Address),
			zap.Error(err))
		return &protocol.RegisterNodeResponse{
			Success: false,
			Message: err.Error(),
		}, nil
	}

	if err := s.c.RegisterNode(types.NodeID(req.NodeId), handle); err != nil {
		return &protocol.RegisterNodeResponse{Success: false, Message: err.Error()}, nil
	}
	return &protocol.RegisterNodeResponse{Success: true}, nil
}

func (s *rpcServer) UnregisterNode(ctx context.Context, req *protocol.UnregisterNodeRequest) (*protocol.UnregisterNodeResponse, error) {
	return &protocol.UnregisterNodeResponse{
		Success: s.c.UnregisterNode(types.NodeID(req.NodeId)),
	}, nil
}

func (s *rpcServer) ListObjects(ctx context.Context, req *protocol.ListObjectsRequest) (*protocol.ListObjectsResponse, error) {
	return &protocol.ListObjectsResponse{Names: s.c.ListObjects()}, nil
}

func (s *rpcServer) GetPartLocations(ctx context.Context, req *protocol.GetPartLocationsRequest) (*protocol.GetPartLocationsResponse, error) {
	locations, err := s.c.GetPartLocations(detach(ctx), req.Name)
	if err != nil {
		return &protocol.GetPartLocationsResponse{Found: false, Message: err.Error()}, nil
	}

	resp := &protocol.GetPartLocationsResponse{
		Found:     true,
		Locations: make([]*protocol.PartLocation, len(locations)),
	}
	for i, loc := range locations {
		resp.Locations[i] = &protocol.PartLocation{
			Index:   int32(loc.Index),
			NodeId:  string(loc.NodeID),
			Address: loc.Address,
		}
	}
	return resp, nil
}

func (s *rpcServer) StoreObject(ctx context.Context, req *protocol.StoreObjectRequest) (*protocol.StoreObjectResponse, error) {
	if err := s.c.StoreObject(detach(ctx), req.Name, req.Data, int(req.NumParts)); err != nil {
		return &protocol.StoreObjectResponse{Success: false, Message: err.Error()}, nil
	}
	return &protocol.StoreObjectResponse{Success: true}, nil
}

func (s *rpcServer) DeleteObject(ctx context.Context, req *protocol.DeleteObjectRequest) (*protocol.DeleteObjectResponse, error) {
	result, err := s.c.DeleteObject(detach(ctx), req.Name)
	if err != nil {
		return &protocol.DeleteObjectResponse{Success: false, Message: err.Error()}, nil
	}

	resp := &protocol.DeleteObjectResponse{
		Success: true,
		Removed: int32(result.Removed),
		Failed:  int32(result.Failed),
	}
	if result.Failed > 0 {
		resp.Message = "some replicas could not be removed"
	}
	return resp, nil
}

func (s *rpcServer) Subscribe(ctx context.Context, req *protocol.SubscribeRequest) (*protocol.SubscribeResponse, error) {
	event := types.EventType(req.EventType)
	if !event.Valid() {
		return &protocol.SubscribeResponse{Success: false, Message: ErrUnknownEvent.Error() + ": " + req.EventType}, nil
	}

	sink, err := s.c.dialer.DialSink(req.Address)
	if err != nil {
		return &protocol.SubscribeResponse{Success: false, Message: err.Error()}, nil
	}

	if err := s.c.Subscribe(event, sink); err != nil {
		return &protocol.SubscribeResponse{Success: false, Message: err.Error()}, nil
	}
	return &protocol.SubscribeResponse{Success: true}, nil
}

func (s *rpcServer) Unsubscribe(ctx context.Context, req *protocol.UnsubscribeRequest) (*protocol.UnsubscribeResponse, error) {
	if err := s.c.Unsubscribe(types.EventType(req.EventType), req.Address); err != nil {
		return &protocol.UnsubscribeResponse{Success: false, Message: err.Error()}, nil
	}
	return &protocol.UnsubscribeResponse{Success: true}, nil
}

func (s *rpcServer) ListEventTypes(ctx context.Context, req *protocol.ListEventTypesRequest) (*protocol.ListEventTypesResponse, error) {
	events := s.c.ListEventTypes()
	names := make([]string, len(events))
	for i, event := range events {
		names[i] = string(event)
	}
	return &protocol.ListEventTypesResponse{EventTypes: names}, nil
}

func (s *rpcServer) GetStatus(ctx context.Context, req *protocol.GetStatusRequest) (*protocol.GetStatusResponse, error) {
	resp := &protocol.GetStatusResponse{
		ReplicationFactor: int32(s.c.ReplicationFactor()),
		Subscribers:       make(map[string]int32),
	}

	for _, m := range s.c.Members() {
		info := &protocol.MemberInfo{
			NodeId:       string(m.ID),
			Address:      m.Address,
			RegisteredAt: m.RegisteredAt.UnixMilli(),
			Misses:       int32(m.Misses),
		}
		if !m.LastProbe.IsZero() {
			info.LastProbe = m.LastProbe.UnixMilli()
		}
		resp.Members = append(resp.Members, info)
	}

	for _, o := range s.c.Objects() {
		replicas := make([]int32, len(o.Replicas))
		for i, n := range o.Replicas {
			replicas[i] = int32(n)
		}
		resp.Objects = append(resp.Objects, &protocol.ObjectInfo{
			Name:     o.Name,
			Size:     o.Size,
			Parts:    int32(o.Parts),
			Replicas: replicas,
			StoredAt: o.StoredAt.UnixMilli(),
		})
	}

	for event, ids := range s.c.Subscribers() {
		resp.Subscribers[string(event)] = int32(len(ids))
	}
	return resp, nil
}
