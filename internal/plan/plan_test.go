package plan

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAlignment(t *testing.T) {
	tests := []struct {
		name      string
		m         int
		elemBytes int
		want      uint32
	}{
		{"fp32 padded", 5, 4, 8},
		{"fp16 padded", 5, 2, 16},
		{"fp32 exact boundary", 8, 4, 8},
		{"fp16 exact boundary", 16, 2, 16},
		{"fp32 one element", 1, 4, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Build(100, tt.m, 2.0, tt.elemBytes, 8)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.AlignedRowLen)
			assert.GreaterOrEqual(t, p.AlignedRowLen, uint32(tt.m))
			assert.Zero(t, int(p.AlignedRowLen)*tt.elemBytes%32)
		})
	}
}

func TestBuildSmallNCollapse(t *testing.T) {
	// Fewer rows than units: always a single unit, whatever m and p are.
	for _, m := range []int{1, 5, 64} {
		for _, p := range []float32{1, 2, 3.5} {
			pl, err := Build(7, m, p, 4, 8)
			require.NoError(t, err)
			assert.Equal(t, uint32(1), pl.ActiveUnits)
		}
	}

	pl, err := Build(100, 5, 2.0, 4, 8)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), pl.ActiveUnits)

	// n == totalUnits keeps every unit active
	pl, err = Build(8, 5, 2.0, 4, 8)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), pl.ActiveUnits)
}

func TestBuildErrors(t *testing.T) {
	_, err := Build(10, 5, 2.0, 4, 0)
	assert.Error(t, err, "missing platform unit count must fail")

	_, err = Build(10, 5, 2.0, 8, 4)
	assert.Error(t, err, "unsupported element width must fail")

	_, err = Build(10, 0, 2.0, 4, 4)
	assert.Error(t, err, "empty rows must fail")

	_, err = Build(-1, 5, 2.0, 4, 4)
	assert.Error(t, err, "negative row count must fail")

	_, err = Build(10, 5, float32(math.NaN()), 4, 4)
	assert.Error(t, err, "NaN exponent must fail")

	_, err = Build(10, 5, -1, 4, 4)
	assert.Error(t, err, "negative exponent must fail")

	_, err = Build(10, 5, float32(math.Inf(1)), 4, 4)
	assert.NoError(t, err, "infinite exponent is a valid attribute")
}

func TestOutputLen(t *testing.T) {
	assert.Equal(t, 0, OutputLen(0))
	assert.Equal(t, 0, OutputLen(1))
	assert.Equal(t, 1, OutputLen(2))
	assert.Equal(t, 10, OutputLen(5))
	assert.Equal(t, 4950, OutputLen(100))
}

func TestDescriptorRoundTrip(t *testing.T) {
	pl, err := Build(100, 5, 3.5, 4, 8)
	require.NoError(t, err)

	var buf [DescriptorSize]byte
	n, err := pl.Descriptor().Encode(buf[:])
	require.NoError(t, err)
	assert.Equal(t, DescriptorSize, n)

	d, err := DecodeDescriptor(buf[:])
	require.NoError(t, err)
	assert.Equal(t, pl.Descriptor(), d)
}

func TestDescriptorLayout(t *testing.T) {
	// The wire layout is a contract: six little-endian u32 fields in order.
	d := Descriptor{
		N:             0x01020304,
		M:             0x05060708,
		P:             2.0,
		AlignedRowLen: 8,
		ActiveUnits:   4,
		Variant:       1,
	}
	var buf [DescriptorSize]byte
	_, err := d.Encode(buf[:])
	require.NoError(t, err)

	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, buf[0:4])
	assert.Equal(t, []byte{0x08, 0x07, 0x06, 0x05}, buf[4:8])
	// float32(2.0) is 0x40000000
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x40}, buf[8:12])
	assert.Equal(t, []byte{0x08, 0x00, 0x00, 0x00}, buf[12:16])
	assert.Equal(t, []byte{0x04, 0x00, 0x00, 0x00}, buf[16:20])
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, buf[20:24])
}

func TestDescriptorCapacityBound(t *testing.T) {
	d := Descriptor{}
	_, err := d.Encode(make([]byte, DescriptorSize-1))
	assert.Error(t, err)

	_, err = DecodeDescriptor(make([]byte, DescriptorSize-1))
	assert.Error(t, err)
}
