package protocol

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const nodeService = "geoeyes.Node"

type UploadPartRequest struct {
	Name  string `json:"name"`
	Index int32  `json:"index"`
	Data  []byte `json:"data"`
}

type UploadPartResponse struct {
	Success bool `json:"success"`
}

type DownloadPartRequest struct {
	Name  string `json:"name"`
	Index int32  `json:"index"`
}

type DownloadPartResponse struct {
	Found bool   `json:"found"`
	Data  []byte `json:"data,omitempty"`
}

type DeletePartRequest struct {
	Name  string `json:"name"`
	Index int32  `json:"index"`
}

type DeletePartResponse struct {
	Success bool `json:"success"`
}

type ProbeRequest struct{}

type ProbeResponse struct {
	Alive       bool   `json:"alive"`
	NodeId      string `json:"node_id"`
	StoredParts int64  `json:"stored_parts"`
	StoredBytes int64  `json:"stored_bytes"`
}

// NodeServer is the storage-node surface called by the coordinator and by
// clients fetching parts.
type NodeServer interface {
	UploadPart(context.Context, *UploadPartRequest) (*UploadPartResponse, error)
	DownloadPart(context.Context, *DownloadPartRequest) (*DownloadPartResponse, error)
	DeletePart(context.Context, *DeletePartRequest) (*DeletePartResponse, error)
	Probe(context.Context, *ProbeRequest) (*ProbeResponse, error)
}

type UnimplementedNodeServer struct{}

func (UnimplementedNodeServer) UploadPart(context.Context, *UploadPartRequest) (*UploadPartResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UploadPart not implemented")
}
func (UnimplementedNodeServer) DownloadPart(context.Context, *DownloadPartRequest) (*DownloadPartResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DownloadPart not implemented")
}
func (UnimplementedNodeServer) DeletePart(context.Context, *DeletePartRequest) (*DeletePartResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DeletePart not implemented")
}
func (UnimplementedNodeServer) Probe(context.Context, *ProbeRequest) (*ProbeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Probe not implemented")
}

var Node_ServiceDesc = grpc.ServiceDesc{
	ServiceName: nodeService,
	HandlerType: (*NodeServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(nodeService, "UploadPart", NodeServer.UploadPart),
		unary(nodeService, "DownloadPart", NodeServer.DownloadPart),
		unary(nodeService, "DeletePart", NodeServer.DeletePart),
		unary(nodeService, "Probe", NodeServer.Probe),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "geoeyes/node",
}

func RegisterNodeServer(s grpc.ServiceRegistrar, srv NodeServer) {
	s.RegisterService(&Node_ServiceDesc, srv)
}

type NodeClient interface {
	UploadPart(ctx context.Context, in *UploadPartRequest, opts ...grpc.CallOption) (*UploadPartResponse, error)
	DownloadPart(ctx context.Context, in *DownloadPartRequest, opts ...grpc.CallOption) (*DownloadPartResponse, error)
	DeletePart(ctx context.Context, in *DeletePartRequest, opts ...grpc.CallOption) (*DeletePartResponse, error)
	Probe(ctx context.Context, in *ProbeRequest, opts ...grpc.CallOption) (*ProbeResponse, error)
}

type nodeClient struct {
	cc grpc.ClientConnInterface
}

func NewNodeClient(cc grpc.ClientConnInterface) NodeClient {
	return &nodeClient{cc: cc}
}

func (c *nodeClient) UploadPart(ctx context.Context, in *UploadPartRequest, opts ...grpc.CallOption) (*UploadPartResponse, error) {
	out := new(UploadPartResponse)
	if err := invoke(ctx, c.cc, "/"+nodeService+"/UploadPart", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *nodeClient) DownloadPart(ctx context.Context, in *DownloadPartRequest, opts ...grpc.CallOption) (*DownloadPartResponse, error) {
	out := new(DownloadPartResponse)
	if err := invoke(ctx, c.cc, "/"+nodeService+"/DownloadPart", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *nodeClient) DeletePart(ctx context.Context, in *DeletePartRequest, opts ...grpc.CallOption) (*DeletePartResponse, error) {
	out := new(DeletePartResponse)
	if err := invoke(ctx, c.cc, "/"+nodeService+"/DeletePart", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *nodeClient) Probe(ctx context.Context, in *ProbeRequest, opts ...grpc.CallOption) (*ProbeResponse, error) {
	out := new(ProbeResponse)
	if err := invoke(ctx, c.cc, "/"+nodeService+"/Probe", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
