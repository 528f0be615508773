package client

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Arrow schemas shared by the Flight client and server: vectors travel as
// a FixedSizeList<float32> column, distances come back as a flat float32
// column in condensed triangular order.

// VectorSchema returns the request schema for rows of width m.
func VectorSchema(m int) *arrow.Schema {
	return arrow.NewSchema(
		[]arrow.Field{
			{Name: "vectors", Type: arrow.FixedSizeListOf(int32(m), arrow.PrimitiveTypes.Float32)},
		},
		nil,
	)
}

// DistanceSchema is the response schema.
func DistanceSchema() *arrow.Schema {
	return arrow.NewSchema(
		[]arrow.Field{
			{Name: "distances", Type: arrow.PrimitiveTypes.Float32},
		},
		nil,
	)
}

// BuildVectorRecord packs equal-length rows into a vectors record batch.
func BuildVectorRecord(mem memory.Allocator, vectors [][]float32) (arrow.RecordBatch, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("client: empty vector batch")
	}
	m := len(vectors[0])

	lb := array.NewFixedSizeListBuilder(mem, int32(m), arrow.PrimitiveTypes.Float32)
	defer lb.Release()
	vb := lb.ValueBuilder().(*array.Float32Builder)

	for _, row := range vectors {
		if len(row) != m {
			return nil, fmt.Errorf("client: ragged vector batch: row width %d != %d", len(row), m)
		}
		lb.Append(true)
		vb.AppendValues(row, nil)
	}

	col := lb.NewArray()
	defer col.Release()

	return array.NewRecordBatch(VectorSchema(m), []arrow.Array{col}, int64(len(vectors))), nil
}

// VectorsFromRecord extracts the flat row-major matrix from a vectors
// record batch, returning the shape alongside the data.
func VectorsFromRecord(rec arrow.RecordBatch) (n, m int, flat []float32, err error) {
	if rec.NumCols() == 0 {
		return 0, 0, nil, fmt.Errorf("client: record has no columns")
	}
	col := rec.Column(0)
	if idx := rec.Schema().FieldIndices("vectors"); len(idx) > 0 {
		col = rec.Column(idx[0])
	}

	fsl, ok := col.(*array.FixedSizeList)
	if !ok {
		return 0, 0, nil, fmt.Errorf("client: vectors column is %T, want FixedSizeList<float32>", col)
	}
	values, ok := fsl.ListValues().(*array.Float32)
	if !ok {
		return 0, 0, nil, fmt.Errorf("client: vector elements are %T, want float32", fsl.ListValues())
	}

	n = fsl.Len()
	m = int(fsl.DataType().(*arrow.FixedSizeListType).Len())
	flat = make([]float32, n*m)
	copy(flat, values.Float32Values())
	return n, m, flat, nil
}

// BuildDistanceRecord packs a condensed distance vector into the response
// record batch.
func BuildDistanceRecord(mem memory.Allocator, dists []float32) arrow.RecordBatch {
	fb := array.NewFloat32Builder(mem)
	defer fb.Release()
	fb.AppendValues(dists, nil)

	col := fb.NewArray()
	defer col.Release()

	return array.NewRecordBatch(DistanceSchema(), []arrow.Array{col}, int64(len(dists)))
}

// DistancesFromRecord extracts the condensed distance vector from a
// response record batch.
func DistancesFromRecord(rec arrow.RecordBatch) ([]float32, error) {
	if rec.NumCols() == 0 {
		return nil, fmt.Errorf("client: record has no columns")
	}
	col, ok := rec.Column(0).(*array.Float32)
	if !ok {
		return nil, fmt.Errorf("client: distances column is %T, want float32", rec.Column(0))
	}
	out := make([]float32, col.Len())
	copy(out, col.Float32Values())
	return out, nil
}
