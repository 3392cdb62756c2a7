// Package grpcserver exposes the engine over gRPC. The service is
// registered by hand against the api wire codec; there is no generated
// code because the messages already are the api types.
package grpcserver

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tyr/api"
	"tyr/infra/ring"
)

const (
	// ServiceName is the full gRPC service identifier.
	ServiceName = "tyr.Engine"

	methodSubmit       = "/" + ServiceName + "/Submit"
	methodL2           = "/" + ServiceName + "/L2"
	methodSubmitStream = "/" + ServiceName + "/SubmitStream"
)

// Core is the slice of the engine the transport needs.
type Core interface {
	Submit(cmd *api.OrderCommand) error
	L2(symbol uint32, depth int) (*api.L2MarketData, error)
}

// Server adapts the engine to gRPC. Submit and L2 go straight to the
// core; SubmitStream feeds the ingress ring, when one is attached.
type Server struct {
	core    Core
	ingress *ring.SPSC[*api.OrderCommand]
	log     *zap.SugaredLogger

	// The ring is single-producer, so only one ingest stream may be
	// live at a time.
	streaming atomic.Bool
}

// NewServer builds the transport. in may be nil; SubmitStream then
// reports Unimplemented.
func NewServer(core Core, in *ring.SPSC[*api.OrderCommand], log *zap.SugaredLogger) *Server {
	return &Server{core: core, ingress: in, log: log}
}

// Register attaches the service to g.
func (s *Server) Register(g *grpc.Server) {
	g.RegisterService(&serviceDesc, s)
}

// -------------------- Handlers --------------------

// Submit runs one command and replies with it, events filled in.
func (s *Server) Submit(ctx context.Context, cmd *api.OrderCommand) (*api.OrderCommand, error) {
	if err := s.core.Submit(cmd); err != nil {
		s.log.Errorw("submit failed", "symbol", cmd.Symbol, "uid", cmd.UID, "err", err)
		return nil, status.Errorf(codes.Internal, "submit: %v", err)
	}
	return cmd, nil
}

// L2 replies with a depth-bounded view of one book.
func (s *Server) L2(ctx context.Context, req *api.L2Request) (*api.L2MarketData, error) {
	md, err := s.core.L2(req.Symbol, int(req.Depth))
	if err != nil {
		return nil, status.Error(codes.NotFound, err.Error())
	}
	return md, nil
}

// offerRetry is the pause before re-offering a command to a full ring.
const offerRetry = 50 * time.Microsecond

// SubmitStream is the fire-and-forget bulk path: every received
// command goes onto the ingress ring and the stream closes with a
// count. Outcomes travel on the event feed.
func (s *Server) SubmitStream(stream grpc.ServerStream) error {
	if s.ingress == nil {
		return status.Error(codes.Unimplemented, "no ingress ring attached")
	}
	if !s.streaming.CompareAndSwap(false, true) {
		return status.Error(codes.ResourceExhausted, "an ingest stream is already active")
	}
	defer s.streaming.Store(false)

	var accepted uint64
	for {
		cmd := new(api.OrderCommand)
		err := stream.RecvMsg(cmd)
		if err == io.EOF {
			s.log.Infow("ingest stream closed", "accepted", accepted)
			return stream.SendMsg(&api.IngestAck{Accepted: accepted})
		}
		if err != nil {
			return err
		}

		for !s.ingress.Offer(cmd) {
			select {
			case <-stream.Context().Done():
				return stream.Context().Err()
			default:
			}
			time.Sleep(offerRetry)
		}
		accepted++
	}
}

// -------------------- Service wiring --------------------

// EngineServer is the server-side contract of the tyr.Engine service.
type EngineServer interface {
	Submit(context.Context, *api.OrderCommand) (*api.OrderCommand, error)
	L2(context.Context, *api.L2Request) (*api.L2MarketData, error)
	SubmitStream(grpc.ServerStream) error
}

func submitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(api.OrderCommand)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EngineServer).Submit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodSubmit}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EngineServer).Submit(ctx, req.(*api.OrderCommand))
	}
	return interceptor(ctx, in, info, handler)
}

func l2Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(api.L2Request)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EngineServer).L2(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodL2}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EngineServer).L2(ctx, req.(*api.L2Request))
	}
	return interceptor(ctx, in, info, handler)
}

func submitStreamHandler(srv any, stream grpc.ServerStream) error {
	return srv.(EngineServer).SubmitStream(stream)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EngineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: submitHandler},
		{MethodName: "L2", Handler: l2Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "SubmitStream", Handler: submitStreamHandler, ClientStreams: true},
	},
	Metadata: "tyr/api",
}
