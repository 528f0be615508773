// Package plan derives the static execution plan for a pairwise-distance
// invocation. Planning depends only on shape and dtype metadata, never on
// input values, so it runs once on the calling goroutine before any
// compute unit starts.
package plan

import (
	"fmt"
	"math"
)

// transferAlign is the bulk row-transfer alignment granularity in bytes.
// Staged rows are padded up to this boundary so a row moves as whole
// aligned blocks.
const transferAlign = 32

// Plan is the fixed descriptor broadcast read-only to every compute unit.
type Plan struct {
	N             uint32  // row count
	M             uint32  // raw row width in elements
	P             float32 // Minkowski exponent (>= 0, may be +Inf)
	AlignedRowLen uint32  // row width padded to the transfer alignment
	ActiveUnits   uint32  // units that will do work
}

// Build computes the plan for an n x m matrix of elemBytes-wide elements
// spread over totalUnits compute units.
func Build(n, m int, p float32, elemBytes, totalUnits int) (Plan, error) {
	if totalUnits <= 0 {
		return Plan{}, fmt.Errorf("plan: compute unit count unavailable (got %d)", totalUnits)
	}
	if elemBytes != 2 && elemBytes != 4 {
		return Plan{}, fmt.Errorf("plan: unsupported element width %d bytes", elemBytes)
	}
	if n < 0 || m <= 0 {
		return Plan{}, fmt.Errorf("plan: invalid shape [%d, %d]", n, m)
	}
	if math.IsNaN(float64(p)) || p < 0 {
		return Plan{}, fmt.Errorf("plan: invalid exponent %v", p)
	}

	rowBytes := m * elemBytes
	alignedRowLen := (rowBytes + transferAlign - 1) / transferAlign * transferAlign / elemBytes

	// Multi-unit dispatch is not worth the overhead below one row per unit.
	units := totalUnits
	if n < totalUnits {
		units = 1
	}

	return Plan{
		N:             uint32(n),
		M:             uint32(m),
		P:             p,
		AlignedRowLen: uint32(alignedRowLen),
		ActiveUnits:   uint32(units),
	}, nil
}

// OutputLen returns the condensed triangular output length n*(n-1)/2.
func OutputLen(n int) int {
	if n < 2 {
		return 0
	}
	return n * (n - 1) / 2
}
