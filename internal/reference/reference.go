// Package reference holds the sequential CPU oracle the parallel engine
// is verified against. It computes in float64 and leans on gonum, so any
// disagreement with the engine points at the engine.
package reference

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/23skdu/longbow-pdist/internal/tensor"
)

// Pdist computes the condensed pairwise Minkowski distance vector for x
// in float64, one pair at a time, in condensed layout order.
func Pdist(x *tensor.Matrix, p float32) []float64 {
	n, m := x.Rows, x.Cols
	out := make([]float64, 0, n*(n-1)/2)

	a := make([]float64, m)
	b := make([]float64, m)
	for i := 0; i < n; i++ {
		for k := 0; k < m; k++ {
			a[k] = float64(x.At(i, k))
		}
		for j := i + 1; j < n; j++ {
			for k := 0; k < m; k++ {
				b[k] = float64(x.At(j, k))
			}
			out = append(out, floats.Distance(a, b, float64(p)))
		}
	}
	return out
}

// Report summarizes an accuracy comparison between the oracle and the
// engine output.
type Report struct {
	MaxAbsErr  float64
	Mismatches int
	Checked    int
}

// Pass reports whether no element exceeded the tolerance.
func (r Report) Pass() bool {
	return r.Mismatches == 0
}

// Tolerance returns the accuracy threshold for an element type, relaxed
// for exponents above 2 where the log/exp path loses more bits.
func Tolerance(dtype tensor.DType, p float32) float64 {
	eps := 1e-4
	if dtype == tensor.Float16 {
		eps = 1e-2
	}
	if p > 2 && !math.IsInf(float64(p), 1) {
		eps *= 5
	}
	return eps
}

// Compare checks got against want element-wise. An element fails only if
// both its absolute and its relative error exceed eps.
func Compare(want []float64, got []float32, eps float64) Report {
	r := Report{Checked: len(want)}
	for i := range want {
		diff := math.Abs(want[i] - float64(got[i]))
		if diff > r.MaxAbsErr {
			r.MaxAbsErr = diff
		}
		if diff > eps && diff/(math.Abs(want[i])+1e-9) > eps {
			r.Mismatches++
		}
	}
	return r
}
