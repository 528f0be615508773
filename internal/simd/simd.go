package simd

import "math"

// Dense float32 kernels for the distance engine. These mirror the bulk
// elementwise/reduce primitives of a vector unit as plain loops with
// 4-wide unrolling for better pipelining.

// Sub computes dst = a - b element-wise. Slices must share length.
func Sub(dst, a, b []float32) {
	i := 0
	for ; i <= len(dst)-4; i += 4 {
		dst[i] = a[i] - b[i]
		dst[i+1] = a[i+1] - b[i+1]
		dst[i+2] = a[i+2] - b[i+2]
		dst[i+3] = a[i+3] - b[i+3]
	}
	for ; i < len(dst); i++ {
		dst[i] = a[i] - b[i]
	}
}

// Abs computes dst = |a| element-wise. dst may alias a.
func Abs(dst, a []float32) {
	i := 0
	for ; i <= len(dst)-4; i += 4 {
		dst[i] = abs32(a[i])
		dst[i+1] = abs32(a[i+1])
		dst[i+2] = abs32(a[i+2])
		dst[i+3] = abs32(a[i+3])
	}
	for ; i < len(dst); i++ {
		dst[i] = abs32(a[i])
	}
}

func abs32(x float32) float32 {
	return math.Float32frombits(math.Float32bits(x) &^ (1 << 31))
}

// Mul computes dst = a * b element-wise. dst may alias either input.
func Mul(dst, a, b []float32) {
	i := 0
	for ; i <= len(dst)-4; i += 4 {
		dst[i] = a[i] * b[i]
		dst[i+1] = a[i+1] * b[i+1]
		dst[i+2] = a[i+2] * b[i+2]
		dst[i+3] = a[i+3] * b[i+3]
	}
	for ; i < len(dst); i++ {
		dst[i] = a[i] * b[i]
	}
}

// AddScalar computes dst += s element-wise, in place.
func AddScalar(dst []float32, s float32) {
	i := 0
	for ; i <= len(dst)-4; i += 4 {
		dst[i] += s
		dst[i+1] += s
		dst[i+2] += s
		dst[i+3] += s
	}
	for ; i < len(dst); i++ {
		dst[i] += s
	}
}

// MulScalar computes dst *= s element-wise, in place.
func MulScalar(dst []float32, s float32) {
	i := 0
	for ; i <= len(dst)-4; i += 4 {
		dst[i] *= s
		dst[i+1] *= s
		dst[i+2] *= s
		dst[i+3] *= s
	}
	for ; i < len(dst); i++ {
		dst[i] *= s
	}
}

// Log computes dst = ln(a) element-wise. dst may alias a.
func Log(dst, a []float32) {
	for i := range dst {
		dst[i] = float32(math.Log(float64(a[i])))
	}
}

// Exp computes dst = e^a element-wise. dst may alias a.
func Exp(dst, a []float32) {
	for i := range dst {
		dst[i] = float32(math.Exp(float64(a[i])))
	}
}

// ReduceSum returns the horizontal sum of a. Four independent float64
// accumulators keep the adds pipelined without losing low-order bits.
func ReduceSum(a []float32) float32 {
	var s0, s1, s2, s3 float64
	i := 0
	for ; i <= len(a)-4; i += 4 {
		s0 += float64(a[i])
		s1 += float64(a[i+1])
		s2 += float64(a[i+2])
		s3 += float64(a[i+3])
	}
	sum := s0 + s1 + s2 + s3
	for ; i < len(a); i++ {
		sum += float64(a[i])
	}
	return float32(sum)
}

// ReduceMax returns the horizontal maximum of a, or 0 for an empty slice.
func ReduceMax(a []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	m := a[0]
	for _, v := range a[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
