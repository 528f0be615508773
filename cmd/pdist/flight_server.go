package main

import (
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog/log"

	"github.com/23skdu/longbow-pdist/internal/client"
	"github.com/23skdu/longbow-pdist/internal/op"
	"github.com/23skdu/longbow-pdist/internal/tensor"
)

type PdistFlightServer struct {
	flight.BaseFlightServer
	operator *op.Operator
	alloc    memory.Allocator
}

func NewPdistFlightServer(operator *op.Operator) *PdistFlightServer {
	return &PdistFlightServer{
		operator: operator,
		alloc:    memory.NewGoAllocator(),
	}
}

// DoExchange consumes a stream of vector batches and replies with one
// distances record per batch. The Minkowski exponent rides in the CBOR
// command of the flight descriptor; absent, the operator default applies.
func (s *PdistFlightServer) DoExchange(stream flight.FlightService_DoExchangeServer) error {
	reader, err := flight.NewRecordReader(stream, ipc.WithAllocator(s.alloc))
	if err != nil {
		return err
	}
	defer reader.Release()

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(client.DistanceSchema()))
	defer writer.Close()

	p := op.DefaultP
	attrsParsed := false

	for reader.Next() {
		if !attrsParsed {
			attrsParsed = true
			if desc := reader.LatestFlightDescriptor(); desc != nil && len(desc.Cmd) > 0 {
				var attrs client.ExchangeAttrs
				if err := cbor.Unmarshal(desc.Cmd, &attrs); err != nil {
					return err
				}
				if attrs.P != nil {
					p = *attrs.P
				}
			}
		}

		rec := reader.Record()
		n, m, flat, err := client.VectorsFromRecord(rec)
		if err != nil {
			return err
		}
		log.Info().Int("rows", n).Int("cols", m).Float64("p", float64(p)).Msg("DoExchange received batch")

		x, err := tensor.NewFloat32(n, m, flat)
		if err != nil {
			return err
		}
		y, err := s.operator.Compute(stream.Context(), x, p)
		if err != nil {
			return err
		}

		out := client.BuildDistanceRecord(s.alloc, y.Float32())
		err = writer.Write(out)
		out.Release()
		if err != nil {
			return err
		}
	}
	return reader.Err()
}

func StartFlightServer(addr string, operator *op.Operator) {
	// Create the generic Flight Server which manages the GRPC lifecycle
	server := flight.NewFlightServer()

	// Register our custom service implementation
	server.RegisterFlightService(NewPdistFlightServer(operator))

	// Init handles the listener creation internally
	if err := server.Init(addr); err != nil {
		log.Fatal().Err(err).Msg("Failed to init Flight server")
	}

	log.Info().Str("addr", addr).Msg("Starting Pdist Flight Server")
	if err := server.Serve(); err != nil {
		log.Fatal().Err(err).Msg("Flight server failed")
	}
}
