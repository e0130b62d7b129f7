package protocol

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	subscriberService = "geoeyes.Subscriber"
	monitorService    = "geoeyes.Monitor"
)

type NotifyRequest struct {
	EventType  string     `json:"event_type"`
	ObjectName string     `json:"object_name"`
	OccurredAt *Timestamp `json:"occurred_at,omitempty"`
}

type NotifyResponse struct{}

type SubscriberServer interface {
	Notify(context.Context, *NotifyRequest) (*NotifyResponse, error)
}

type UnimplementedSubscriberServer struct{}

func (UnimplementedSubscriberServer) Notify(context.Context, *NotifyRequest) (*NotifyResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Notify not implemented")
}

var Subscriber_ServiceDesc = grpc.ServiceDesc{
	ServiceName: subscriberService,
	HandlerType: (*SubscriberServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(subscriberService, "Notify", SubscriberServer.Notify),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "geoeyes/subscriber",
}

func RegisterSubscriberServer(s grpc.ServiceRegistrar, srv SubscriberServer) {
	s.RegisterService(&Subscriber_ServiceDesc, srv)
}

type SubscriberClient interface {
	Notify(ctx context.Context, in *NotifyRequest, opts ...grpc.CallOption) (*NotifyResponse, error)
}

type subscriberClient struct {
	cc grpc.ClientConnInterface
}

func NewSubscriberClient(cc grpc.ClientConnInterface) SubscriberClient {
	return &subscriberClient{cc: cc}
}

func (c *subscriberClient) Notify(ctx context.Context, in *NotifyRequest, opts ...grpc.CallOption) (*NotifyResponse, error) {
	out := new(NotifyResponse)
	if err := invoke(ctx, c.cc, "/"+subscriberService+"/Notify", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

type RegisterCoordinatorRequest struct {
	Address string `json:"address"`
}

type RegisterCoordinatorResponse struct {
	Success bool `json:"success"`
}

type ReportNodeFailureRequest struct {
	NodeId string `json:"node_id"`
}

type ReportNodeFailureResponse struct{}

type ListFailuresRequest struct {
	Limit int32 `json:"limit,omitempty"`
}

type FailureReport struct {
	NodeId     string     `json:"node_id"`
	ReportedAt *Timestamp `json:"reported_at"`
}

type ListFailuresResponse struct {
	Coordinators []string         `json:"coordinators"`
	Reports      []*FailureReport `json:"reports"`
}

type MonitorServer interface {
	RegisterCoordinator(context.Context, *RegisterCoordinatorRequest) (*RegisterCoordinatorResponse, error)
	ReportNodeFailure(context.Context, *ReportNodeFailureRequest) (*ReportNodeFailureResponse, error)
	ListFailures(context.Context, *ListFailuresRequest) (*ListFailuresResponse, error)
}

type UnimplementedMonitorServer struct{}

func (UnimplementedMonitorServer) RegisterCoordinator(context.Context, *RegisterCoordinatorRequest) (*RegisterCoordinatorResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RegisterCoordinator not implemented")
}
func (UnimplementedMonitorServer) ReportNodeFailure(context.Context, *ReportNodeFailureRequest) (*ReportNodeFailureResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ReportNodeFailure not implemented")
}
func (UnimplementedMonitorServer) ListFailures(context.Context, *ListFailuresRequest) (*ListFailuresResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListFailures not implemented")
}

var Monitor_ServiceDesc = grpc.ServiceDesc{
	ServiceName: monitorService,
	HandlerType: (*MonitorServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(monitorService, "RegisterCoordinator", MonitorServer.RegisterCoordinator),
		unary(monitorService, "ReportNodeFailure", MonitorServer.ReportNodeFailure),
		unary(monitorService, "ListFailures", MonitorServer.ListFailures),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "geoeyes/monitor",
}

func RegisterMonitorServer(s grpc.ServiceRegistrar, srv MonitorServer) {
	s.RegisterService(&Monitor_ServiceDesc, srv)
}

type MonitorClient interface {
	RegisterCoordinator(ctx context.Context, in *RegisterCoordinatorRequest, opts ...grpc.CallOption) (*RegisterCoordinatorResponse, error)
	ReportNodeFailure(ctx context.Context, in *ReportNodeFailureRequest, opts ...grpc.CallOption) (*ReportNodeFailureResponse, error)
	ListFailures(ctx context.Context, in *ListFailuresRequest, opts ...grpc.CallOption) (*ListFailuresResponse, error)
}

type monitorClient struct {
	cc grpc.ClientConnInterface
}

func NewMonitorClient(cc grpc.ClientConnInterface) MonitorClient {
	return &monitorClient{cc: cc}
}

func (c *monitorClient) RegisterCoordinator(ctx context.Context, in *RegisterCoordinatorRequest, opts ...grpc.CallOption) (*RegisterCoordinatorResponse, error) {
	out := new(RegisterCoordinatorResponse)
	if err := invoke(ctx, c.cc, "/"+monitorService+"/RegisterCoordinator", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *monitorClient) ReportNodeFailure(ctx context.Context, in *ReportNodeFailureRequest, opts ...grpc.CallOption) (*ReportNodeFailureResponse, error) {
	out := new(ReportNodeFailureResponse)
	if err := invoke(ctx, c.cc, "/"+monitorService+"/ReportNodeFailure", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *monitorClient) ListFailures(ctx context.Context, in *ListFailuresRequest, opts ...grpc.CallOption) (*ListFailuresResponse, error) {
	out := new(ListFailuresResponse)
	if err := invoke(ctx, c.cc, "/"+monitorService+"/ListFailures", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
