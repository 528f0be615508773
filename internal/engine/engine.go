// Package engine runs the parallel pairwise-distance computation. Each
// compute unit is an independent goroutine that owns a cyclic subset of
// rows, streams partner rows through a two-slot staging pipeline, and
// writes scalars straight into the condensed output vector.
package engine

import (
	"math"

	"github.com/23skdu/longbow-pdist/internal/plan"
	"github.com/23skdu/longbow-pdist/internal/simd"
	"github.com/23skdu/longbow-pdist/internal/tensor"
)

// logEps is added before the log transform on the general-exponent path
// so exactly-equal coordinates do not produce ln(0) = -Inf.
const logEps = 1e-20

// bufferNum is the staging depth: the fetch of row j+1 may overlap the
// compute on row j, but never runs more than one row ahead.
const bufferNum = 2

// Run executes a single compute unit against the shared input and output.
// It deserializes the tiling descriptor at entry, exactly as it arrives
// from the planner; workspace is accepted for the launch contract but the
// kernel needs no scratch beyond its own staging slots.
func Run(unit int, x *tensor.Matrix, y *tensor.Vector, _ []byte, tiling []byte) error {
	desc, err := plan.DecodeDescriptor(tiling)
	if err != nil {
		return err
	}
	u := &unitState{
		id:      unit,
		n:       int(desc.N),
		m:       int(desc.M),
		p:       desc.P,
		tileLen: int(desc.AlignedRowLen),
		stride:  int(desc.ActiveUnits),
		x:       x,
		y:       y,
	}
	u.process()
	return nil
}

type unitState struct {
	id      int
	n       int
	m       int
	p       float32
	tileLen int
	stride  int
	x       *tensor.Matrix
	y       *tensor.Vector
}

// process walks the unit's owned rows {id, id+stride, ...} and, for each
// owned row i, every partner j > i. Ownership partitions [0, n), so the
// unit set covers each unordered pair exactly once.
func (u *unitState) process() {
	if u.id >= u.stride || u.id >= u.n {
		return
	}

	rowI := newSlot(u.tileLen)
	diff := newSlot(u.tileLen)

	// Two staging slots ping-pong between a fetcher goroutine and the
	// compute loop. Both sides enumerate pairs in the same deterministic
	// order, so the channels carry only slot indices.
	slots := [bufferNum][]float32{newSlot(u.tileLen), newSlot(u.tileLen)}
	free := make(chan int, bufferNum)
	filled := make(chan int, bufferNum)
	free <- 0
	free <- 1

	go func() {
		for i := u.id; i < u.n; i += u.stride {
			for j := i + 1; j < u.n; j++ {
				s := <-free
				u.stage(slots[s], j)
				filled <- s
			}
		}
		close(filled)
	}()

	for i := u.id; i < u.n; i += u.stride {
		u.stage(rowI, i)
		for j := i + 1; j < u.n; j++ {
			s := <-filled
			d := u.distance(rowI, slots[s], diff)
			free <- s
			u.y.Set(pairOffset(u.n, i, j), d)
		}
	}
}

// newSlot allocates a zeroed staging buffer. stage only ever writes the
// first m elements, so the alignment padding stays zero for the lifetime
// of the slot and is neutral under the sum and max reductions.
func newSlot(tileLen int) []float32 {
	return make([]float32, tileLen)
}

// stage copies (and for float16 inputs, widens) one row into a slot.
func (u *unitState) stage(slot []float32, row int) {
	u.x.CopyRow(slot, row)
}

// distance computes the Minkowski distance between two staged rows over
// the full aligned length, using diff as elementwise scratch.
func (u *unitState) distance(rowI, rowJ, diff []float32) float32 {
	simd.Sub(diff, rowI, rowJ)
	simd.Abs(diff, diff)

	switch {
	case u.p == 1:
		return simd.ReduceSum(diff)

	case u.p == 2:
		simd.Mul(diff, diff, diff)
		return float32(math.Sqrt(float64(simd.ReduceSum(diff))))

	case math.IsInf(float64(u.p), 1):
		// Chebyshev: maximum reduction instead of sum.
		return simd.ReduceMax(diff)

	default:
		// |d|^p via exp(p * ln(d + eps)); the epsilon trades a tiny
		// deterministic bias for never propagating NaN on equal rows.
		simd.AddScalar(diff, logEps)
		simd.Log(diff, diff)
		simd.MulScalar(diff, u.p)
		simd.Exp(diff, diff)
		// The padding tail now holds eps^p rather than 0; clear it so
		// the reduction is unaffected by alignment.
		for k := u.m; k < u.tileLen; k++ {
			diff[k] = 0
		}
		sum := simd.ReduceSum(diff)
		if u.p == 0 {
			// No finite root exists at p = 0; emit the raw sum.
			return sum
		}
		return float32(math.Pow(float64(sum), 1/float64(u.p)))
	}
}

// pairOffset maps the pair (i, j), i < j, to its slot in the condensed
// triangular layout of an n-row distance matrix: pairs of all rows below
// i, plus the pair's position within row i's own run.
func pairOffset(n, i, j int) int {
	return (2*n-1-i)*i/2 + (j - i - 1)
}
