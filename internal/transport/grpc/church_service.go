package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const ChurchServiceName = "sanctuary.v1.ChurchService"

// ChurchServiceServer is the public read surface of the site plus the admin
// event operations. Payloads are JSON-shaped structpb values.
type ChurchServiceServer interface {
	ListEvents(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	SyncEvents(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	CreateEvent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateEvent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteEvent(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	GetLatestSermon(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetLivestream(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	InvalidateSermonCache(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	ListSermonYears(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListSermonMonths(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSermons(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAllSermons(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

func RegisterChurchServiceServer(s grpc.ServiceRegistrar, srv ChurchServiceServer) {
	s.RegisterService(&ChurchServiceDesc, srv)
}

var ChurchServiceDesc = grpc.ServiceDesc{
	ServiceName: ChurchServiceName,
	HandlerType: (*ChurchServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("ListEvents", ChurchServiceServer.ListEvents),
		unaryMethod("SyncEvents", ChurchServiceServer.SyncEvents),
		unaryMethod("CreateEvent", ChurchServiceServer.CreateEvent),
		unaryMethod("UpdateEvent", ChurchServiceServer.UpdateEvent),
		unaryMethod("DeleteEvent", ChurchServiceServer.DeleteEvent),
		unaryMethod("GetLatestSermon", ChurchServiceServer.GetLatestSermon),
		unaryMethod("GetLivestream", ChurchServiceServer.GetLivestream),
		unaryMethod("InvalidateSermonCache", ChurchServiceServer.InvalidateSermonCache),
		unaryMethod("ListSermonYears", ChurchServiceServer.ListSermonYears),
		unaryMethod("ListSermonMonths", ChurchServiceServer.ListSermonMonths),
		unaryMethod("ListSermons", ChurchServiceServer.ListSermons),
		unaryMethod("ListAllSermons", ChurchServiceServer.ListAllSermons),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sanctuary/v1/church.proto",
}

func unaryMethod[Req any, PReq interface {
	*Req
	proto.Message
}, Resp proto.Message](name string, call func(ChurchServiceServer, context.Context, PReq) (Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ChurchServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := PReq(new(Req))
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ChurchServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ChurchServiceServer), ctx, req.(PReq))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ChurchServiceClient calls ChurchService over an existing connection.
type ChurchServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewChurchServiceClient(cc grpc.ClientConnInterface) *ChurchServiceClient {
	return &ChurchServiceClient{cc: cc}
}

func invoke[Resp any, PResp interface {
	*Resp
	proto.Message
}](ctx context.Context, cc grpc.ClientConnInterface, method string, in proto.Message, opts ...grpc.CallOption) (PResp, error) {
	out := PResp(new(Resp))
	if err := cc.Invoke(ctx, "/"+ChurchServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ChurchServiceClient) ListEvents(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "ListEvents", &emptypb.Empty{}, opts...)
}

func (c *ChurchServiceClient) SyncEvents(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "SyncEvents", &emptypb.Empty{}, opts...)
}

func (c *ChurchServiceClient) CreateEvent(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "CreateEvent", in, opts...)
}

func (c *ChurchServiceClient) UpdateEvent(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "UpdateEvent", in, opts...)
}

func (c *ChurchServiceClient) DeleteEvent(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, "DeleteEvent", in, opts...)
}

func (c *ChurchServiceClient) GetLatestSermon(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "GetLatestSermon", &emptypb.Empty{}, opts...)
}

func (c *ChurchServiceClient) GetLivestream(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "GetLivestream", &emptypb.Empty{}, opts...)
}

func (c *ChurchServiceClient) InvalidateSermonCache(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, "InvalidateSermonCache", in, opts...)
}

func (c *ChurchServiceClient) ListSermonYears(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "ListSermonYears", &emptypb.Empty{}, opts...)
}

func (c *ChurchServiceClient) ListSermonMonths(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "ListSermonMonths", in, opts...)
}

func (c *ChurchServiceClient) ListSermons(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "ListSermons", in, opts...)
}

func (c *ChurchServiceClient) ListAllSermons(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "ListAllSermons", &emptypb.Empty{}, opts...)
}
