package grpcserver

import (
	"context"

	"google.golang.org/grpc"

	"tyr/api"
)

// Client calls the tyr.Engine service over an existing connection.
type Client struct {
	cc *grpc.ClientConn
}

func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc}
}

// Submit sends one command and returns it with the events filled in.
func (c *Client) Submit(ctx context.Context, cmd *api.OrderCommand) (*api.OrderCommand, error) {
	out := new(api.OrderCommand)
	if err := c.cc.Invoke(ctx, methodSubmit, cmd, out, grpc.ForceCodec(codec{})); err != nil {
		return nil, err
	}
	return out, nil
}

// L2 fetches a depth-bounded view of one book.
func (c *Client) L2(ctx context.Context, symbol uint32, depth uint32) (*api.L2MarketData, error) {
	out := new(api.L2MarketData)
	req := &api.L2Request{Symbol: symbol, Depth: depth}
	if err := c.cc.Invoke(ctx, methodL2, req, out, grpc.ForceCodec(codec{})); err != nil {
		return nil, err
	}
	return out, nil
}

var submitStreamDesc = grpc.StreamDesc{
	StreamName:    "SubmitStream",
	ClientStreams: true,
}

// SubmitStream opens the fire-and-forget bulk path.
func (c *Client) SubmitStream(ctx context.Context) (*IngestStream, error) {
	cs, err := c.cc.NewStream(ctx, &submitStreamDesc, methodSubmitStream, grpc.ForceCodec(codec{}))
	if err != nil {
		return nil, err
	}
	return &IngestStream{cs: cs}, nil
}

// IngestStream sends commands without per-command acknowledgements.
type IngestStream struct {
	cs grpc.ClientStream
}

func (s *IngestStream) Send(cmd *api.OrderCommand) error {
	return s.cs.SendMsg(cmd)
}

// CloseAndRecv ends the stream and returns the server's count.
func (s *IngestStream) CloseAndRecv() (*api.IngestAck, error) {
	if err := s.cs.CloseSend(); err != nil {
		return nil, err
	}
	ack := new(api.IngestAck)
	if err := s.cs.RecvMsg(ack); err != nil {
		return nil, err
	}
	return ack, nil
}
