package plan

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DescriptorSize is the exact serialized size of a tiling descriptor.
const DescriptorSize = 24

// variantDefault tags the only kernel variant currently emitted.
const variantDefault = 1

// Descriptor is the fixed-layout record that carries planning results to
// the compute units. The producer and the consumer must agree on this
// layout exactly: six little-endian 32-bit fields, in field order. It is
// the sole channel between the planner and the engine.
type Descriptor struct {
	N             uint32
	M             uint32
	P             float32
	AlignedRowLen uint32
	ActiveUnits   uint32
	Variant       uint32
}

// Descriptor returns the serializable form of the plan.
func (p Plan) Descriptor() Descriptor {
	return Descriptor{
		N:             p.N,
		M:             p.M,
		P:             p.P,
		AlignedRowLen: p.AlignedRowLen,
		ActiveUnits:   p.ActiveUnits,
		Variant:       variantDefault,
	}
}

// Encode serializes the descriptor into buf and returns the byte count.
// buf must hold at least DescriptorSize bytes.
func (d Descriptor) Encode(buf []byte) (int, error) {
	if len(buf) < DescriptorSize {
		return 0, fmt.Errorf("plan: descriptor buffer too small: %d < %d", len(buf), DescriptorSize)
	}
	binary.LittleEndian.PutUint32(buf[0:], d.N)
	binary.LittleEndian.PutUint32(buf[4:], d.M)
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(d.P))
	binary.LittleEndian.PutUint32(buf[12:], d.AlignedRowLen)
	binary.LittleEndian.PutUint32(buf[16:], d.ActiveUnits)
	binary.LittleEndian.PutUint32(buf[20:], d.Variant)
	return DescriptorSize, nil
}

// DecodeDescriptor deserializes a descriptor produced by Encode.
func DecodeDescriptor(buf []byte) (Descriptor, error) {
	if len(buf) < DescriptorSize {
		return Descriptor{}, fmt.Errorf("plan: descriptor buffer too small: %d < %d", len(buf), DescriptorSize)
	}
	return Descriptor{
		N:             binary.LittleEndian.Uint32(buf[0:]),
		M:             binary.LittleEndian.Uint32(buf[4:]),
		P:             math.Float32frombits(binary.LittleEndian.Uint32(buf[8:])),
		AlignedRowLen: binary.LittleEndian.Uint32(buf[12:]),
		ActiveUnits:   binary.LittleEndian.Uint32(buf[16:]),
		Variant:       binary.LittleEndian.Uint32(buf[20:]),
	}, nil
}
