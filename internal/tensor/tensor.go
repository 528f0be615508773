package tensor

import (
	"fmt"

	"github.com/x448/float16"
)

// DType identifies the element type of a Matrix or Vector.
type DType int

const (
	Float32 DType = iota
	Float16
)

// Size returns the element width in bytes.
func (d DType) Size() int {
	if d == Float16 {
		return 2
	}
	return 4
}

func (d DType) String() string {
	if d == Float16 {
		return "fp16"
	}
	return "fp32"
}

// ParseDType maps the wire names used by the HTTP/Flight surfaces.
func ParseDType(s string) (DType, error) {
	switch s {
	case "fp32", "":
		return Float32, nil
	case "fp16":
		return Float16, nil
	default:
		return 0, fmt.Errorf("tensor: unsupported dtype %q", s)
	}
}

// Matrix is a dense row-major matrix of row vectors. It is read-only to
// the planner and the engine; the backing slice stays owned by the caller.
// Float16 data is kept as raw IEEE binary16 bits and widened on access.
type Matrix struct {
	Rows  int
	Cols  int
	DType DType

	f32 []float32
	f16 []uint16
}

// NewFloat32 wraps caller-owned float32 data without copying.
func NewFloat32(rows, cols int, data []float32) (*Matrix, error) {
	if rows < 0 || cols <= 0 {
		return nil, fmt.Errorf("tensor: invalid shape [%d, %d]", rows, cols)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("tensor: data length %d does not match shape [%d, %d]", len(data), rows, cols)
	}
	return &Matrix{Rows: rows, Cols: cols, DType: Float32, f32: data}, nil
}

// NewFloat16 wraps caller-owned binary16 bits without copying.
func NewFloat16(rows, cols int, bits []uint16) (*Matrix, error) {
	if rows < 0 || cols <= 0 {
		return nil, fmt.Errorf("tensor: invalid shape [%d, %d]", rows, cols)
	}
	if len(bits) != rows*cols {
		return nil, fmt.Errorf("tensor: data length %d does not match shape [%d, %d]", len(bits), rows, cols)
	}
	return &Matrix{Rows: rows, Cols: cols, DType: Float16, f16: bits}, nil
}

// NewFloat16FromFloat32 quantizes float32 data to binary16 rows.
func NewFloat16FromFloat32(rows, cols int, data []float32) (*Matrix, error) {
	if len(data) != rows*cols {
		return nil, fmt.Errorf("tensor: data length %d does not match shape [%d, %d]", len(data), rows, cols)
	}
	bits := make([]uint16, len(data))
	for i, v := range data {
		bits[i] = float16.Fromfloat32(v).Bits()
	}
	return NewFloat16(rows, cols, bits)
}

// At returns element (i, j) widened to float32.
func (m *Matrix) At(i, j int) float32 {
	if m.DType == Float16 {
		return float16.Frombits(m.f16[i*m.Cols+j]).Float32()
	}
	return m.f32[i*m.Cols+j]
}

// CopyRow copies row i into dst, widening float16 elements. dst must hold
// at least Cols elements; anything past Cols is left untouched.
func (m *Matrix) CopyRow(dst []float32, i int) {
	base := i * m.Cols
	if m.DType == Float16 {
		src := m.f16[base : base+m.Cols]
		for k, b := range src {
			dst[k] = float16.Frombits(b).Float32()
		}
		return
	}
	copy(dst[:m.Cols], m.f32[base:base+m.Cols])
}

// Vector is a dense 1-D output buffer matching the input dtype.
// Elements are written at most once each, by the unit owning the index.
type Vector struct {
	Len   int
	DType DType

	f32 []float32
	f16 []uint16
}

// NewVector allocates a zeroed output vector.
func NewVector(n int, dtype DType) *Vector {
	v := &Vector{Len: n, DType: dtype}
	if dtype == Float16 {
		v.f16 = make([]uint16, n)
	} else {
		v.f32 = make([]float32, n)
	}
	return v
}

// Set stores a scalar at index i, narrowing for float16 outputs.
func (v *Vector) Set(i int, x float32) {
	if v.DType == Float16 {
		v.f16[i] = float16.Fromfloat32(x).Bits()
		return
	}
	v.f32[i] = x
}

// At returns element i widened to float32.
func (v *Vector) At(i int) float32 {
	if v.DType == Float16 {
		return float16.Frombits(v.f16[i]).Float32()
	}
	return v.f32[i]
}

// Float32 returns the contents widened to a fresh float32 slice.
func (v *Vector) Float32() []float32 {
	out := make([]float32, v.Len)
	for i := range out {
		out[i] = v.At(i)
	}
	return out
}
