package main

import (
	"context"
	"flag"
	"math"
	"os"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/23skdu/longbow-pdist/internal/op"
)

var (
	listenAddr    = flag.String("listen", "", "Address to listen on for the HTTP server (e.g. :8080)")
	flightAddr    = flag.String("flight", "", "Address to listen on for the Flight server (e.g. :9090)")
	flagP         = flag.String("p", "2.0", "Minkowski exponent (accepts 'inf')")
	flagN         = flag.Int("n", 512, "Row count for bench/verify modes")
	flagM         = flag.Int("m", 128, "Row width for bench/verify modes")
	flagDType     = flag.String("dtype", "fp32", "Element type (fp32, fp16)")
	flagSeed      = flag.Int64("seed", 2023, "RNG seed for bench/verify input")
	flagUnits     = flag.Int("units", runtime.NumCPU(), "Compute units for the parallel engine")
	verifyMode    = flag.Bool("verify", false, "Check the engine against the CPU oracle and exit")
	benchMode     = flag.Bool("bench", false, "Time the engine against the CPU oracle and exit")
	cpuProfile    = flag.String("cpuprofile", "", "Write cpu profile to file")
	enableOTel    = flag.Bool("otel", false, "Enable OpenTelemetry tracing (stdout)")
	maxConcurrent = flag.Int("max-concurrent", 16384, "Maximum rows admitted concurrently by the HTTP server")
)

// parseExponent reads the p attribute, allowing "inf" for Chebyshev.
func parseExponent(s string) (float32, error) {
	if strings.EqualFold(s, "inf") {
		return float32(math.Inf(1)), nil
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}

func main() {
	// Initialize logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	flag.Parse()

	if *enableOTel {
		shutdown, err := initTracer()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize tracer")
		}
		defer shutdown(context.Background())
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create CPU profile file")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal().Err(err).Msg("Could not start CPU profile")
		}
		defer pprof.StopCPUProfile()
	}

	p, err := parseExponent(*flagP)
	if err != nil {
		log.Fatal().Err(err).Str("p", *flagP).Msg("Invalid exponent")
	}

	operator := &op.Operator{TotalUnits: *flagUnits}

	switch {
	case *verifyMode:
		if err := runVerify(operator, *flagN, *flagM, p, *flagDType, *flagSeed); err != nil {
			log.Fatal().Err(err).Msg("Verification failed")
		}
		return

	case *benchMode:
		if err := runBench(operator, *flagN, *flagM, p, *flagDType, *flagSeed); err != nil {
			log.Fatal().Err(err).Msg("Benchmark failed")
		}
		return
	}

	if *listenAddr == "" && *flightAddr == "" {
		log.Fatal().Msg("Nothing to do: pass -listen, -flight, -verify or -bench")
	}

	if *listenAddr != "" {
		go startServer(*listenAddr, operator, *maxConcurrent)
		if *flightAddr == "" {
			select {}
		}
	}

	if *flightAddr != "" {
		StartFlightServer(*flightAddr, operator)
	}
}

func initTracer() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("pdist"),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp.Shutdown, nil
}
