// Package protocol defines the gRPC services spoken between coordinator,
// storage nodes, subscribers and the monitor. Messages are plain Go structs
// carried by a JSON codec registered under the "json" content-subtype.
package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const CodecName = "json"

// DefaultMaxMessageSize bounds request and response sizes; whole parts travel
// in a single message.
const DefaultMaxMessageSize = 64 * 1024 * 1024

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// Timestamp is a protobuf timestamp carried in its canonical JSON form, an
// RFC 3339 string.
type Timestamp struct {
	*timestamppb.Timestamp
}

func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Timestamp: timestamppb.New(t)}
}

func (t *Timestamp) MarshalJSON() ([]byte, error) {
	if t == nil || t.Timestamp == nil {
		return []byte("null"), nil
	}
	return protojson.Marshal(t.Timestamp)
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Timestamp = nil
		return nil
	}
	ts := &timestamppb.Timestamp{}
	if err := protojson.Unmarshal(data, ts); err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}
	t.Timestamp = ts
	return nil
}

// CallOptions are prepended to every client call so the server picks the
// JSON codec.
func CallOptions(maxSize int) []grpc.CallOption {
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}
	return []grpc.CallOption{
		grpc.CallContentSubtype(CodecName),
		grpc.MaxCallRecvMsgSize(maxSize),
		grpc.MaxCallSendMsgSize(maxSize),
	}
}

// ServerOptions sizes a server for whole-part messages.
func ServerOptions(maxSize int) []grpc.ServerOption {
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}
	return []grpc.ServerOption{
		grpc.MaxRecvMsgSize(maxSize),
		grpc.MaxSendMsgSize(maxSize),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             10 * time.Second,
			PermitWithoutStream: true,
		}),
	}
}

func invoke(ctx context.Context, cc grpc.ClientConnInterface, method string, in, out interface{}, opts []grpc.CallOption) error {
	callOpts := append(CallOptions(0), opts...)
	return cc.Invoke(ctx, method, in, out, callOpts...)
}

// unary builds a MethodDesc for a handler taking *Req and returning *Resp.
func unary[S any, Req any, Resp any](service, method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := fmt.Sprintf("/%s/%s", service, method)
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
