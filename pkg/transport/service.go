package transport

import (
	"context"

	"google.golang.org/grpc"
)

// Handler is implemented by whatever owns namespace/cluster state and
// wants to answer these four RPCs — pkg/manager, in the final wiring.
// Kept as an interface so this package carries no import-time
// dependency on pkg/manager, the same server/implementation split the
// teacher's pkg/api/server.go has against its Manager.
type Handler interface {
	Open(ctx context.Context, req Envelope) (Envelope, error)
	Commit(ctx context.Context, req Envelope) (Envelope, error)
	ProcExec(ctx context.Context, req Envelope) (Envelope, error)
	Join(ctx context.Context, req Envelope) (Envelope, error)
}

const serviceName = "eos.mgm.transport.CoreService"

// ServiceDesc is the hand-written equivalent of what protoc-gen-go-grpc
// would normally emit for a four-RPC service; there is no .proto
// source for it, by design (see the package doc).
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Open", Handler: unaryHandler(Handler.Open)},
		{MethodName: "Commit", Handler: unaryHandler(Handler.Commit)},
		{MethodName: "ProcExec", Handler: unaryHandler(Handler.ProcExec)},
		{MethodName: "Join", Handler: unaryHandler(Handler.Join)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pkg/transport/service.go",
}

// unaryHandler adapts one Handler method into the grpc.methodHandler
// shape grpc.Server.processUnaryRPC expects, decoding the request
// through the server's configured codec (the jsonCodec forced in
// NewServer) before dispatching.
func unaryHandler(call func(Handler, context.Context, Envelope) (Envelope, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		var req Envelope
		if err := dec(&req); err != nil {
			return nil, err
		}
		h := srv.(Handler)
		if interceptor == nil {
			return call(h, ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName}
		wrapped := func(ctx context.Context, reqIface interface{}) (interface{}, error) {
			return call(h, ctx, reqIface.(Envelope))
		}
		return interceptor(ctx, req, info, wrapped)
	}
}

// NewServer returns a grpc.Server with ServiceDesc registered against
// h and the JSON codec forced in place of protobuf's.
func NewServer(h Handler) *grpc.Server {
	srv := grpc.NewServer(grpc.ForceServerCodec(jsonCodec{}))
	srv.RegisterService(&ServiceDesc, h)
	return srv
}
