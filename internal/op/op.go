// Package op is the operator front-end: it validates attributes, runs
// shape inference, builds the tiling plan, and launches the parallel
// engine. All configuration failures surface here, before any unit runs.
package op

import (
	"context"
	"fmt"
	"runtime"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/23skdu/longbow-pdist/internal/engine"
	"github.com/23skdu/longbow-pdist/internal/plan"
	"github.com/23skdu/longbow-pdist/internal/tensor"
)

// DefaultP is the Minkowski exponent used when the attribute is absent.
const DefaultP float32 = 2.0

var tracer = otel.Tracer("pdist-op")

// InferShape returns the output length for an [n, m] input.
func InferShape(n, m int) (int, error) {
	if n < 0 || m <= 0 {
		return 0, fmt.Errorf("op: cannot infer output shape from input [%d, %d]", n, m)
	}
	return plan.OutputLen(n), nil
}

// Operator computes condensed pairwise Minkowski distances.
type Operator struct {
	// TotalUnits is the available compute-unit count. Zero means one
	// unit per CPU.
	TotalUnits int
}

func New() *Operator {
	return &Operator{TotalUnits: runtime.NumCPU()}
}

// Compute plans and runs one distance computation. p may be any exponent
// >= 0 including +Inf; callers without an explicit attribute pass
// DefaultP. The returned vector has the input's dtype and condensed
// triangular layout.
func (o *Operator) Compute(ctx context.Context, x *tensor.Matrix, p float32) (*tensor.Vector, error) {
	_, span := tracer.Start(ctx, "pdist.Compute")
	defer span.End()
	span.SetAttributes(
		attribute.Int("rows", x.Rows),
		attribute.Int("cols", x.Cols),
		attribute.Float64("p", float64(p)),
	)

	outLen, err := InferShape(x.Rows, x.Cols)
	if err != nil {
		return nil, err
	}

	pl, err := plan.Build(x.Rows, x.Cols, p, x.DType.Size(), o.TotalUnits)
	if err != nil {
		return nil, fmt.Errorf("op: planning failed: %w", err)
	}

	var desc [plan.DescriptorSize]byte
	if _, err := pl.Descriptor().Encode(desc[:]); err != nil {
		return nil, fmt.Errorf("op: descriptor encode failed: %w", err)
	}

	y := tensor.NewVector(outLen, x.DType)
	if err := engine.Launch(x, y, nil, desc[:]); err != nil {
		return nil, fmt.Errorf("op: launch failed: %w", err)
	}
	return y, nil
}
