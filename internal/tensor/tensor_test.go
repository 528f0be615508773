package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFloat32ShapeChecks(t *testing.T) {
	_, err := NewFloat32(2, 3, make([]float32, 5))
	assert.Error(t, err, "length mismatch must fail")

	_, err = NewFloat32(2, 0, nil)
	assert.Error(t, err, "zero columns must fail")

	m, err := NewFloat32(2, 3, make([]float32, 6))
	require.NoError(t, err)
	assert.Equal(t, 4, m.DType.Size())
}

func TestCopyRowWidening(t *testing.T) {
	m, err := NewFloat16FromFloat32(2, 3, []float32{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, 2, m.DType.Size())

	dst := make([]float32, 8)
	dst[3] = 99 // past Cols, must stay untouched
	m.CopyRow(dst, 1)

	assert.Equal(t, float32(4), dst[0])
	assert.Equal(t, float32(5), dst[1])
	assert.Equal(t, float32(6), dst[2])
	assert.Equal(t, float32(99), dst[3])
}

func TestVectorRoundTrip(t *testing.T) {
	for _, dt := range []DType{Float32, Float16} {
		v := NewVector(3, dt)
		v.Set(0, 1.5)
		v.Set(2, -2.25)

		assert.Equal(t, float32(1.5), v.At(0), dt.String())
		assert.Equal(t, float32(0), v.At(1), dt.String())
		assert.Equal(t, float32(-2.25), v.At(2), dt.String())
		assert.Equal(t, []float32{1.5, 0, -2.25}, v.Float32(), dt.String())
	}
}

func TestParseDType(t *testing.T) {
	dt, err := ParseDType("")
	require.NoError(t, err)
	assert.Equal(t, Float32, dt)

	dt, err = ParseDType("fp16")
	require.NoError(t, err)
	assert.Equal(t, Float16, dt)

	_, err = ParseDType("fp64")
	assert.Error(t, err)
}
