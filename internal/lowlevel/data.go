package lowlevel

import (
	"imascore/internal/alerrors"
	"imascore/internal/types"
)

// defaultValue is what a read of missing data returns: the unset sentinel
// for scalars, an array with empty dimensions otherwise.
func defaultValue(dt types.DataType, dim int) (*types.Buffer, error) {
	if !dt.Valid() {
		return nil, alerrors.Errorf(alerrors.LowlevelErr, "Unknown data type=%d", int(dt))
	}
	if dim > 0 {
		return types.NewBuffer(dt, make([]int, dim)...), nil
	}
	b := &types.Buffer{Type: dt}
	switch dt {
	case types.CharData:
		b.Chars = []byte{types.EmptyChar}
	case types.IntegerData:
		b.Ints = []int32{types.EmptyInt}
	case types.DoubleData:
		b.Doubles = []float64{types.EmptyDouble}
	case types.ComplexData:
		b.Complex = []complex128{types.EmptyComplex}
	}
	return b, nil
}

func realAt(b *types.Buffer, i int) float64 {
	switch b.Type {
	case types.CharData:
		return float64(b.Chars[i])
	case types.IntegerData:
		return float64(b.Ints[i])
	}
	return b.Doubles[i]
}

// convertValue copies src element by element into a buffer of type dt.
// Complex data has no real conversion and reads as the default.
func convertValue(src *types.Buffer, dt types.DataType, dim int) (*types.Buffer, error) {
	if src.Type == types.ComplexData || !dt.Valid() {
		return defaultValue(dt, dim)
	}
	n := src.Len()
	out := &types.Buffer{Type: dt, Shape: append([]int(nil), src.Shape...)}
	switch dt {
	case types.CharData:
		out.Chars = make([]byte, n)
		for i := range out.Chars {
			out.Chars[i] = byte(realAt(src, i))
		}
	case types.IntegerData:
		out.Ints = make([]int32, n)
		for i := range out.Ints {
			out.Ints[i] = int32(realAt(src, i))
		}
	case types.DoubleData:
		out.Doubles = make([]float64, n)
		for i := range out.Doubles {
			out.Doubles[i] = realAt(src, i)
		}
	case types.ComplexData:
		out.Complex = make([]complex128, n)
		for i := range out.Complex {
			out.Complex[i] = complex(realAt(src, i), 0)
		}
	}
	return out, nil
}
