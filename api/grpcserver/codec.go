package grpcserver

import (
	"fmt"

	"google.golang.org/grpc/encoding"

	"tyr/api"
)

// CodecName is the grpc content-subtype this service speaks.
const CodecName = "tyr-wire"

// codec marshals the api types with their own wire encoding, so the
// transport needs no generated message structs.
type codec struct{}

func init() {
	encoding.RegisterCodec(codec{})
}

func (codec) Name() string { return CodecName }

func (codec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case *api.OrderCommand:
		return api.EncodeCommand(m), nil
	case *api.L2Request:
		return api.AppendL2Request(nil, m), nil
	case *api.L2MarketData:
		return api.AppendL2(nil, m), nil
	case *api.IngestAck:
		return api.AppendIngestAck(nil, m), nil
	}
	return nil, fmt.Errorf("grpcserver: cannot marshal %T", v)
}

func (codec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case *api.OrderCommand:
		c, err := api.DecodeCommand(data)
		if err != nil {
			return err
		}
		*m = *c
		return nil
	case *api.L2Request:
		r, err := api.DecodeL2Request(data)
		if err != nil {
			return err
		}
		*m = *r
		return nil
	case *api.L2MarketData:
		md, err := api.DecodeL2(data)
		if err != nil {
			return err
		}
		*m = *md
		return nil
	case *api.IngestAck:
		a, err := api.DecodeIngestAck(data)
		if err != nil {
			return err
		}
		*m = *a
		return nil
	}
	return fmt.Errorf("grpcserver: cannot unmarshal into %T", v)
}
