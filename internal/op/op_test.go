package op

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/longbow-pdist/internal/reference"
	"github.com/23skdu/longbow-pdist/internal/tensor"
)

func TestInferShape(t *testing.T) {
	n, err := InferShape(5, 3)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	n, err = InferShape(1, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = InferShape(-1, 3)
	assert.Error(t, err)

	_, err = InferShape(5, 0)
	assert.Error(t, err)
}

func TestComputeMatchesOracle(t *testing.T) {
	rng := rand.New(rand.NewSource(2023))
	n, m := 40, 19
	flat := make([]float32, n*m)
	for i := range flat {
		flat[i] = rng.Float32()*20 - 10
	}
	x, err := tensor.NewFloat32(n, m, flat)
	require.NoError(t, err)

	o := New()
	for _, p := range []float32{1, 1.5, 2, 3, float32(math.Inf(1))} {
		y, err := o.Compute(context.Background(), x, p)
		require.NoError(t, err)

		want := reference.Pdist(x, p)
		rep := reference.Compare(want, y.Float32(), reference.Tolerance(x.DType, p))
		assert.True(t, rep.Pass(), "p=%v: %d mismatches, max abs err %g", p, rep.Mismatches, rep.MaxAbsErr)
	}
}

func TestComputeFloat16MatchesOracle(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	n, m := 16, 9
	flat := make([]float32, n*m)
	for i := range flat {
		flat[i] = rng.Float32()*2 - 1
	}
	x, err := tensor.NewFloat16FromFloat32(n, m, flat)
	require.NoError(t, err)

	y, err := New().Compute(context.Background(), x, DefaultP)
	require.NoError(t, err)

	want := reference.Pdist(x, DefaultP)
	rep := reference.Compare(want, y.Float32(), reference.Tolerance(x.DType, DefaultP))
	assert.True(t, rep.Pass(), "%d mismatches, max abs err %g", rep.Mismatches, rep.MaxAbsErr)
}

func TestComputeConfigFailures(t *testing.T) {
	x, err := tensor.NewFloat32(3, 2, make([]float32, 6))
	require.NoError(t, err)

	o := &Operator{TotalUnits: 0}
	_, err = o.Compute(context.Background(), x, 2)
	assert.Error(t, err, "missing unit count is an operator-setup failure")

	o = New()
	_, err = o.Compute(context.Background(), x, float32(math.NaN()))
	assert.Error(t, err, "NaN exponent is a malformed attribute")
}

func TestComputeSingleRow(t *testing.T) {
	x, err := tensor.NewFloat32(1, 4, make([]float32, 4))
	require.NoError(t, err)

	y, err := New().Compute(context.Background(), x, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, y.Len)
}
