package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/cespare/xxhash/v2"
	"github.com/fxamacker/cbor/v2"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/23skdu/longbow-pdist/internal/cache"
	"github.com/23skdu/longbow-pdist/internal/client"
	"github.com/23skdu/longbow-pdist/internal/op"
	"github.com/23skdu/longbow-pdist/internal/tensor"
)

var (
	batchesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pdist_batches_processed_total",
		Help: "The total number of vector batches computed",
	})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pdist_request_duration_seconds",
		Help:    "Time spent processing distance requests",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pdist_result_cache_hits_total",
		Help: "Distance requests served from the result cache",
	})
)

var tracer = otel.Tracer("pdist-server")

// pdistRequest is the CBOR body of POST /pdist.
type pdistRequest struct {
	Vectors [][]float32 `cbor:"vectors"`
	P       *float32    `cbor:"p,omitempty"`
	DType   string      `cbor:"dtype,omitempty"`
}

type Server struct {
	operator *op.Operator
	results  cache.ResultCache
	alloc    memory.Allocator
	sem      *semaphore.Weighted
}

func NewServer(operator *op.Operator, maxConcurrent int) *Server {
	return &Server{
		operator: operator,
		results:  cache.NewMapCache(),
		alloc:    memory.NewGoAllocator(),
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

func startServer(addr string, operator *op.Operator, maxConcurrent int) {
	srv := NewServer(operator, maxConcurrent)

	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/pdist", srv.handlePdist)
	http.HandleFunc("/pdist/arrow", srv.handlePdistArrow)
	http.HandleFunc("/health", srv.handleHealth)

	log.Info().Str("addr", addr).Msg("Starting Pdist Server")

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// compute flattens a batch, runs the operator, and returns the widened
// condensed distance vector.
func (s *Server) compute(ctx context.Context, vectors [][]float32, p float32, dtype string) ([]float32, error) {
	n := len(vectors)
	if n == 0 {
		return []float32{}, nil
	}
	m := len(vectors[0])
	flat := make([]float32, 0, n*m)
	for _, row := range vectors {
		if len(row) != m {
			return nil, fmt.Errorf("ragged batch: row width %d != %d", len(row), m)
		}
		flat = append(flat, row...)
	}

	dt, err := tensor.ParseDType(dtype)
	if err != nil {
		return nil, err
	}

	var x *tensor.Matrix
	if dt == tensor.Float16 {
		x, err = tensor.NewFloat16FromFloat32(n, m, flat)
	} else {
		x, err = tensor.NewFloat32(n, m, flat)
	}
	if err != nil {
		return nil, err
	}

	y, err := s.operator.Compute(ctx, x, p)
	if err != nil {
		return nil, err
	}
	batchesProcessed.Inc()
	return y.Float32(), nil
}

func (s *Server) handlePdist(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "handlePdist")
	defer span.End()

	start := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	var req pdistRequest
	if err := cbor.Unmarshal(body, &req); err != nil {
		span.RecordError(err)
		http.Error(w, fmt.Sprintf("Bad Request (CBOR decode): %v", err), http.StatusBadRequest)
		return
	}

	span.SetAttributes(
		attribute.Int("row_count", len(req.Vectors)),
	)

	p := op.DefaultP
	if req.P != nil {
		p = *req.P
	}

	// The digest covers the raw body, so vectors, p and dtype all key
	// the result cache.
	key := xxhash.Sum64(body)
	if dists, ok := s.results.Get(key); ok {
		cacheHits.Inc()
		s.writeCBOR(w, dists)
		return
	}

	// Admission Control
	weight := int64(len(req.Vectors))
	if weight == 0 {
		weight = 1
	}
	if err := s.sem.Acquire(ctx, weight); err != nil {
		log.Error().Err(err).Msg("Failed to acquire semaphore")
		http.Error(w, "Server busy", http.StatusServiceUnavailable)
		return
	}
	defer s.sem.Release(weight)

	dists, err := s.compute(ctx, req.Vectors, p, req.DType)
	if err != nil {
		span.RecordError(err)
		http.Error(w, fmt.Sprintf("Compute failed: %v", err), http.StatusBadRequest)
		return
	}

	s.results.Put(key, dists)
	s.writeCBOR(w, dists)
}

func (s *Server) writeCBOR(w http.ResponseWriter, dists []float32) {
	data, err := cbor.Marshal(dists)
	if err != nil {
		http.Error(w, "Encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/cbor")
	_, _ = w.Write(data)
}

func (s *Server) handlePdistArrow(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "handlePdistArrow")
	defer span.End()

	start := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	p := op.DefaultP
	if ps := r.URL.Query().Get("p"); ps != "" {
		v, err := parseExponent(ps)
		if err != nil {
			http.Error(w, fmt.Sprintf("Bad exponent %q", ps), http.StatusBadRequest)
			return
		}
		p = v
	}

	reader, err := ipc.NewReader(r.Body, ipc.WithAllocator(s.alloc))
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to create IPC reader: %v", err), http.StatusBadRequest)
		return
	}
	defer reader.Release()

	// Each input record is an independent matrix; its condensed output
	// becomes one record of the response stream.
	var buf bytes.Buffer
	writer := ipc.NewWriter(&buf, ipc.WithSchema(client.DistanceSchema()), ipc.WithAllocator(s.alloc))

	for reader.Next() {
		n, m, flat, err := client.VectorsFromRecord(reader.Record())
		if err != nil {
			log.Warn().Err(err).Msg("Skipping malformed record")
			continue
		}

		weight := int64(n)
		if err := s.sem.Acquire(ctx, weight); err != nil {
			span.RecordError(err)
			log.Error().Err(err).Msg("Failed to acquire semaphore for arrow batch")
			http.Error(w, "Server busy", http.StatusServiceUnavailable)
			return
		}

		x, err := tensor.NewFloat32(n, m, flat)
		if err != nil {
			s.sem.Release(weight)
			http.Error(w, fmt.Sprintf("Bad batch: %v", err), http.StatusBadRequest)
			return
		}
		y, err := s.operator.Compute(ctx, x, p)
		s.sem.Release(weight)
		if err != nil {
			span.RecordError(err)
			http.Error(w, fmt.Sprintf("Compute failed: %v", err), http.StatusBadRequest)
			return
		}
		batchesProcessed.Inc()

		rec := client.BuildDistanceRecord(s.alloc, y.Float32())
		err = writer.Write(rec)
		rec.Release()
		if err != nil {
			http.Error(w, "Stream write failed", http.StatusInternalServerError)
			return
		}
	}

	if reader.Err() != nil {
		log.Error().Err(reader.Err()).Msg("Error reading Arrow stream")
		http.Error(w, "Stream error", http.StatusInternalServerError)
		return
	}

	if err := writer.Close(); err != nil {
		http.Error(w, "Stream close failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apache.arrow.stream")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
