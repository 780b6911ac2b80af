package explore

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/OfomiMatthew/tech-buddy/internal/app"
	"github.com/OfomiMatthew/tech-buddy/internal/service/match"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "techbuddy.explore.v1.ExploreService"

// Server is the method set bound by ServiceDesc.
type Server interface {
	ListLikedYou(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListNewLikedYou(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CountLikedYou(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitLike(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Discover(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unary(method string, call func(Server, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(Server), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(Server), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes ExploreService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListLikedYou", Server.ListLikedYou),
		unary("ListNewLikedYou", Server.ListNewLikedYou),
		unary("CountLikedYou", Server.CountLikedYou),
		unary("SubmitLike", Server.SubmitLike),
		unary("Discover", Server.Discover),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: protoFile,
}

// Client calls ExploreService over a connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Invoke calls method with req and returns the decoded response.
func (c *Client) Invoke(ctx context.Context, method string, req map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Registrar ties the Explore service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
	engine *match.Engine
}

// NewRegistrar creates a new Registrar for the Explore service
func NewRegistrar(appCtx *app.AppContext, engine *match.Engine) *Registrar {
	return &Registrar{appCtx: appCtx, engine: engine}
}

// Register attaches the Explore service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	s.RegisterService(&ServiceDesc, NewExploreService(r.appCtx, r.engine))
}
