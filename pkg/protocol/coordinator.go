package protocol

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const coordinatorService = "geoeyes.Coordinator"

type RegisterNodeRequest struct {
	NodeId  string `json:"node_id"`
	Address string `json:"address"`
}

type RegisterNodeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type UnregisterNodeRequest struct {
	NodeId string `json:"node_id"`
}

type UnregisterNodeResponse struct {
	Success bool `json:"success"`
}

type ListObjectsRequest struct{}

type ListObjectsResponse struct {
	Names []string `json:"names"`
}

type GetPartLocationsRequest struct {
	Name string `json:"name"`
}

type PartLocation struct {
	Index   int32  `json:"index"`
	NodeId  string `json:"node_id"`
	Address string `json:"address"`
}

type GetPartLocationsResponse struct {
	Found     bool            `json:"found"`
	Message   string          `json:"message,omitempty"`
	Locations []*PartLocation `json:"locations,omitempty"`
}

type StoreObjectRequest struct {
	Name     string `json:"name"`
	Data     []byte `json:"data"`
	NumParts int32  `json:"num_parts"`
}

type StoreObjectResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type DeleteObjectRequest struct {
	Name string `json:"name"`
}

type DeleteObjectResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Removed int32  `json:"removed"`
	Failed  int32  `json:"failed"`
}

type SubscribeRequest struct {
	EventType string `json:"event_type"`
	Address   string `json:"address"`
}

type SubscribeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type UnsubscribeRequest struct {
	EventType string `json:"event_type"`
	Address   string `json:"address"`
}

type UnsubscribeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type ListEventTypesRequest struct{}

type ListEventTypesResponse struct {
	EventTypes []string `json:"event_types"`
}

type GetStatusRequest struct{}

type MemberInfo struct {
	NodeId       string `json:"node_id"`
	Address      string `json:"address"`
	RegisteredAt int64  `json:"registered_at"`
	LastProbe    int64  `json:"last_probe"`
	Misses       int32  `json:"misses"`
}

type ObjectInfo struct {
	Name     string  `json:"name"`
	Size     int64   `json:"size"`
	Parts    int32   `json:"parts"`
	Replicas []int32 `json:"replicas"`
	StoredAt int64   `json:"stored_at"`
}

type GetStatusResponse struct {
	ReplicationFactor int32            `json:"replication_factor"`
	Members           []*MemberInfo    `json:"members"`
	Objects           []*ObjectInfo    `json:"objects"`
	Subscribers       map[string]int32 `json:"subscribers"`
}

// CoordinatorServer is the client- and node-facing coordinator surface.
type CoordinatorServer interface {
	RegisterNode(context.Context, *RegisterNodeRequest) (*RegisterNodeResponse, error)
	UnregisterNode(context.Context, *UnregisterNodeRequest) (*UnregisterNodeResponse, error)
	ListObjects(context.Context, *ListObjectsRequest) (*ListObjectsResponse, error)
	GetPartLocations(context.Context, *GetPartLocationsRequest) (*GetPartLocationsResponse, error)
	StoreObject(context.Context, *StoreObjectRequest) (*StoreObjectResponse, error)
	DeleteObject(context.Context, *DeleteObjectRequest) (*DeleteObjectResponse, error)
	Subscribe(context.Context, *SubscribeRequest) (*SubscribeResponse, error)
	Unsubscribe(context.Context, *UnsubscribeRequest) (*UnsubscribeResponse, error)
	ListEventTypes(context.Context, *ListEventTypesRequest) (*ListEventTypesResponse, error)
	GetStatus(context.Context, *GetStatusRequest) (*GetStatusResponse, error)
}

// UnimplementedCoordinatorServer can be embedded to satisfy CoordinatorServer.
type UnimplementedCoordinatorServer struct{}

func (UnimplementedCoordinatorServer) RegisterNode(context.Context, *RegisterNodeRequest) (*RegisterNodeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RegisterNode not implemented")
}
func (UnimplementedCoordinatorServer) UnregisterNode(context.Context, *UnregisterNodeRequest) (*UnregisterNodeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UnregisterNode not implemented")
}
func (UnimplementedCoordinatorServer) ListObjects(context.Context, *ListObjectsRequest) (*ListObjectsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListObjects not implemented")
}
func (UnimplementedCoordinatorServer) GetPartLocations(context.Context, *GetPartLocationsRequest) (*GetPartLocationsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetPartLocations not implemented")
}
func (UnimplementedCoordinatorServer) StoreObject(context.Context, *StoreObjectRequest) (*StoreObjectResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method StoreObject not implemented")
}
func (UnimplementedCoordinatorServer) DeleteObject(context.Context, *DeleteObjectRequest) (*DeleteObjectResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteObject not implemented")
}
func (UnimplementedCoordinatorServer) Subscribe(context.Context, *SubscribeRequest) (*SubscribeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Subscribe not implemented")
}
func (UnimplementedCoordinatorServer) Unsubscribe(context.Context, *UnsubscribeRequest) (*UnsubscribeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Unsubscribe not implemented")
}
func (UnimplementedCoordinatorServer) ListEventTypes(context.Context, *ListEventTypesRequest) (*ListEventTypesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListEventTypes not implemented")
}
func (UnimplementedCoordinatorServer) GetStatus(context.Context, *GetStatusRequest) (*GetStatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetStatus not implemented")
}

var Coordinator_ServiceDesc = grpc.ServiceDesc{
	ServiceName: coordinatorService,
	HandlerType: (*CoordinatorServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(coordinatorService, "RegisterNode", CoordinatorServer.RegisterNode),
		unary(coordinatorService, "UnregisterNode", CoordinatorServer.UnregisterNode),
		unary(coordinatorService, "ListObjects", CoordinatorServer.ListObjects),
		unary(coordinatorService, "GetPartLocations", CoordinatorServer.GetPartLocations),
		unary(coordinatorService, "StoreObject", CoordinatorServer.StoreObject),
		unary(coordinatorService, "DeleteObject", CoordinatorServer.DeleteObject),
		unary(coordinatorService, "Subscribe", CoordinatorServer.Subscribe),
		unary(coordinatorService, "Unsubscribe", CoordinatorServer.Unsubscribe),
		unary(coordinatorService, "ListEventTypes", CoordinatorServer.ListEventTypes),
		unary(coordinatorService, "GetStatus", CoordinatorServer.GetStatus),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "geoeyes/coordinator",
}

func RegisterCoordinatorServer(s grpc.ServiceRegistrar, srv CoordinatorServer) {
	s.RegisterService(&Coordinator_ServiceDesc, srv)
}

type CoordinatorClient interface {
	RegisterNode(ctx context.Context, in *RegisterNodeRequest, opts ...grpc.CallOption) (*RegisterNodeResponse, error)
	UnregisterNode(ctx context.Context, in *UnregisterNodeRequest, opts ...grpc.CallOption) (*UnregisterNodeResponse, error)
	ListObjects(ctx context.Context, in *ListObjectsRequest, opts ...grpc.CallOption) (*ListObjectsResponse, error)
	GetPartLocations(ctx context.Context, in *GetPartLocationsRequest, opts ...grpc.CallOption) (*GetPartLocationsResponse, error)
	StoreObject(ctx context.Context, in *StoreObjectRequest, opts ...grpc.CallOption) (*StoreObjectResponse, error)
	DeleteObject(ctx context.Context, in *DeleteObjectRequest, opts ...grpc.CallOption) (*DeleteObjectResponse, error)
	Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (*SubscribeResponse, error)
	Unsubscribe(ctx context.Context, in *UnsubscribeRequest, opts ...grpc.CallOption) (*UnsubscribeResponse, error)
	ListEventTypes(ctx context.Context, in *ListEventTypesRequest, opts ...grpc.CallOption) (*ListEventTypesResponse, error)
	GetStatus(ctx context.Context, in *GetStatusRequest, opts ...grpc.CallOption) (*GetStatusResponse, error)
}

type coordinatorClient struct {
	cc grpc.ClientConnInterface
}

func NewCoordinatorClient(cc grpc.ClientConnInterface) CoordinatorClient {
	return &coordinatorClient{cc: cc}
}

func (c *coordinatorClient) RegisterNode(ctx context.Context, in *RegisterNodeRequest, opts ...grpc.CallOption) (*RegisterNodeResponse, error) {
	out := new(RegisterNodeResponse)
	if err := invoke(ctx, c.cc, "/"+coordinatorService+"/RegisterNode", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorClient) UnregisterNode(ctx context.Context, in *UnregisterNodeRequest, opts ...grpc.CallOption) (*UnregisterNodeResponse, error) {
	out := new(UnregisterNodeResponse)
	if err := invoke(ctx, c.cc, "/"+coordinatorService+"/UnregisterNode", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorClient) ListObjects(ctx context.Context, in *ListObjectsRequest, opts ...grpc.CallOption) (*ListObjectsResponse, error) {
	out := new(ListObjectsResponse)
	if err := invoke(ctx, c.cc, "/"+coordinatorService+"/ListObjects", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorClient) GetPartLocations(ctx context.Context, in *GetPartLocationsRequest, opts ...grpc.CallOption) (*GetPartLocationsResponse, error) {
	out := new(GetPartLocationsResponse)
	if err := invoke(ctx, c.cc, "/"+coordinatorService+"/GetPartLocations", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorClient) StoreObject(ctx context.Context, in *StoreObjectRequest, opts ...grpc.CallOption) (*StoreObjectResponse, error) {
	out := new(StoreObjectResponse)
	if err := invoke(ctx, c.cc, "/"+coordinatorService+"/StoreObject", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorClient) DeleteObject(ctx context.Context, in *DeleteObjectRequest, opts ...grpc.CallOption) (*DeleteObjectResponse, error) {
	out := new(DeleteObjectResponse)
	if err := invoke(ctx, c.cc, "/"+coordinatorService+"/DeleteObject", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorClient) Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (*SubscribeResponse, error) {
	out := new(SubscribeResponse)
	if err := invoke(ctx, c.cc, "/"+coordinatorService+"/Subscribe", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorClient) Unsubscribe(ctx context.Context, in *UnsubscribeRequest, opts ...grpc.CallOption) (*UnsubscribeResponse, error) {
	out := new(UnsubscribeResponse)
	if err := invoke(ctx, c.cc, "/"+coordinatorService+"/Unsubscribe", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorClient) ListEventTypes(ctx context.Context, in *ListEventTypesRequest, opts ...grpc.CallOption) (*ListEventTypesResponse, error) {
	out := new(ListEventTypesResponse)
	if err := invoke(ctx, c.cc, "/"+coordinatorService+"/ListEventTypes", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorClient) GetStatus(ctx context.Context, in *GetStatusRequest, opts ...grpc.CallOption) (*GetStatusResponse, error) {
	out := new(GetStatusResponse)
	if err := invoke(ctx, c.cc, "/"+coordinatorService+"/GetStatus", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
