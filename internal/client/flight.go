package client

import (
	"context"
	"time"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/fxamacker/cbor/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ExchangeAttrs rides in the DoExchange descriptor command and carries
// the operator attributes alongside the vector batch.
type ExchangeAttrs struct {
	P *float32 `cbor:"p,omitempty"`
}

// FlightClient computes distances on a remote pdist server via Apache
// Flight DoExchange. Calls are guarded by a circuit breaker.
type FlightClient struct {
	client  flight.Client
	conn    *grpc.ClientConn
	breaker *CircuitBreaker
	alloc   memory.Allocator
}

// NewFlightClient connects to the given address.
func NewFlightClient(addr string) (*FlightClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}

	return &FlightClient{
		client:  flight.NewClientFromConn(conn, nil),
		conn:    conn,
		breaker: NewCircuitBreaker(5, 10*time.Second),
		alloc:   memory.NewGoAllocator(),
	}, nil
}

// Pdist sends one batch of row vectors and returns the condensed distance
// vector computed by the server.
func (c *FlightClient) Pdist(ctx context.Context, vectors [][]float32, p float32) ([]float32, error) {
	var out []float32
	err := c.breaker.Do(func() error {
		dists, err := c.exchange(ctx, vectors, p)
		if err != nil {
			return err
		}
		out = dists
		return nil
	})
	return out, err
}

func (c *FlightClient) exchange(ctx context.Context, vectors [][]float32, p float32) ([]float32, error) {
	rec, err := BuildVectorRecord(c.alloc, vectors)
	if err != nil {
		return nil, err
	}
	defer rec.Release()

	cmd, err := cbor.Marshal(ExchangeAttrs{P: &p})
	if err != nil {
		return nil, err
	}

	stream, err := c.client.DoExchange(ctx)
	if err != nil {
		return nil, err
	}

	wr := flight.NewRecordWriter(stream, ipc.WithSchema(rec.Schema()))
	wr.SetFlightDescriptor(&flight.FlightDescriptor{
		Type: flight.DescriptorCMD,
		Cmd:  cmd,
	})
	if err := wr.Write(rec); err != nil {
		return nil, err
	}
	if err := wr.Close(); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}

	rd, err := flight.NewRecordReader(stream, ipc.WithAllocator(c.alloc))
	if err != nil {
		return nil, err
	}
	defer rd.Release()

	var dists []float32
	for rd.Next() {
		part, err := DistancesFromRecord(rd.Record())
		if err != nil {
			return nil, err
		}
		dists = append(dists, part...)
	}
	return dists, rd.Err()
}

// Close closes the client connection.
func (c *FlightClient) Close() error {
	return c.conn.Close()
}
