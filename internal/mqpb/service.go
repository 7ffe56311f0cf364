package mqpb

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the single canonical gRPC service name. The source this
// spec distills from had the service named inconsistently across headers
// ("message_queue::message_queue" vs "MessageQueue"); per the design notes
// the single, capitalized name is adopted as canonical here.
const ServiceName = "mqpb.MessageQueue"

// Server is the interface the broker implements and exposes over gRPC.
type Server interface {
	ProduceMessages(context.Context, *ProduceMessagesRequest) (*ProduceMessagesResponse, error)
	ConsumeMessages(context.Context, *ConsumeMessagesRequest) (*ConsumeMessagesResponse, error)
	GetMetadata(context.Context, *GetMetadataRequest) (*GetMetadataResponse, error)
	GetBrokerAddress(context.Context, *GetBrokerAddressRequest) (*GetBrokerAddressResponse, error)
	CommitOffset(context.Context, *CommitOffsetRequest) (*CommitOffsetResponse, error)
	Shutdown(context.Context, *ShutdownRequest) (*ShutdownResponse, error)
}

// Client is the stub callers hold; NewClient wraps any grpc.ClientConnInterface.
type Client interface {
	ProduceMessages(ctx context.Context, in *ProduceMessagesRequest, opts ...grpc.CallOption) (*ProduceMessagesResponse, error)
	ConsumeMessages(ctx context.Context, in *ConsumeMessagesRequest, opts ...grpc.CallOption) (*ConsumeMessagesResponse, error)
	GetMetadata(ctx context.Context, in *GetMetadataRequest, opts ...grpc.CallOption) (*GetMetadataResponse, error)
	GetBrokerAddress(ctx context.Context, in *GetBrokerAddressRequest, opts ...grpc.CallOption) (*GetBrokerAddressResponse, error)
	CommitOffset(ctx context.Context, in *CommitOffsetRequest, opts ...grpc.CallOption) (*CommitOffsetResponse, error)
	Shutdown(ctx context.Context, in *ShutdownRequest, opts ...grpc.CallOption) (*ShutdownResponse, error)
}

type client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a Client bound to cc, negotiating the JSON content
// subtype registered in codec.go on every call.
func NewClient(cc grpc.ClientConnInterface) Client {
	return &client{cc: cc}
}

func callOpts(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
}

func (c *client) ProduceMessages(ctx context.Context, in *ProduceMessagesRequest, opts ...grpc.CallOption) (*ProduceMessagesResponse, error) {
	out := new(ProduceMessagesResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/ProduceMessages", in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) ConsumeMessages(ctx context.Context, in *ConsumeMessagesRequest, opts ...grpc.CallOption) (*ConsumeMessagesResponse, error) {
	out := new(ConsumeMessagesResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/ConsumeMessages", in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) GetMetadata(ctx context.Context, in *GetMetadataRequest, opts ...grpc.CallOption) (*GetMetadataResponse, error) {
	out := new(GetMetadataResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/GetMetadata", in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) GetBrokerAddress(ctx context.Context, in *GetBrokerAddressRequest, opts ...grpc.CallOption) (*GetBrokerAddressResponse, error) {
	out := new(GetBrokerAddressResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/GetBrokerAddress", in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) CommitOffset(ctx context.Context, in *CommitOffsetRequest, opts ...grpc.CallOption) (*CommitOffsetResponse, error) {
	out := new(CommitOffsetResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/CommitOffset", in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) Shutdown(ctx context.Context, in *ShutdownRequest, opts ...grpc.CallOption) (*ShutdownResponse, error) {
	out := new(ShutdownResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Shutdown", in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// RegisterServer registers srv against r under ServiceName.
func RegisterServer(r grpc.ServiceRegistrar, srv Server) {
	r.RegisterService(&serviceDesc, srv)
}

func produceHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ProduceMessagesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).ProduceMessages(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/ProduceMessages"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).ProduceMessages(ctx, req.(*ProduceMessagesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func consumeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ConsumeMessagesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).ConsumeMessages(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/ConsumeMessages"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).ConsumeMessages(ctx, req.(*ConsumeMessagesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getMetadataHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetMetadataRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).GetMetadata(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/GetMetadata"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).GetMetadata(ctx, req.(*GetMetadataRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getBrokerAddressHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetBrokerAddressRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).GetBrokerAddress(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/GetBrokerAddress"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).GetBrokerAddress(ctx, req.(*GetBrokerAddressRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func commitOffsetHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CommitOffsetRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).CommitOffset(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/CommitOffset"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).CommitOffset(ctx, req.(*CommitOffsetRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func shutdownHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ShutdownRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Shutdown(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Shutdown"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).Shutdown(ctx, req.(*ShutdownRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ProduceMessages", Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			return produceHandler(srv, ctx, dec, interceptor)
		}},
		{MethodName: "ConsumeMessages", Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			return consumeHandler(srv, ctx, dec, interceptor)
		}},
		{MethodName: "GetMetadata", Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			return getMetadataHandler(srv, ctx, dec, interceptor)
		}},
		{MethodName: "GetBrokerAddress", Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			return getBrokerAddressHandler(srv, ctx, dec, interceptor)
		}},
		{MethodName: "CommitOffset", Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			return commitOffsetHandler(srv, ctx, dec, interceptor)
		}},
		{MethodName: "Shutdown", Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			return shutdownHandler(srv, ctx, dec, interceptor)
		}},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mqpb/message_queue.proto",
}
