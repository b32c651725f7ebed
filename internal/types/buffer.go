package types

import "fmt"

// Buffer is an owned, typed, contiguous block of data with a shape.
// Exactly one of the storage slices matching Type is used. For timed data
// the last dimension of Shape is time, so a buffer holds Shape[last] slices
// of SliceLen() elements each.
type Buffer struct {
	Type  DataType
	Shape []int

	Chars   []byte
	Ints    []int32
	Doubles []float64
	Complex []complex128
}

// NewBuffer allocates a zeroed buffer of the given type and shape.
func NewBuffer(dt DataType, shape ...int) *Buffer {
	b := &Buffer{Type: dt, Shape: append([]int(nil), shape...)}
	n := product(shape)
	switch dt {
	case CharData:
		b.Chars = make([]byte, n)
	case IntegerData:
		b.Ints = make([]int32, n)
	case DoubleData:
		b.Doubles = make([]float64, n)
	case ComplexData:
		b.Complex = make([]complex128, n)
	}
	return b
}

// Doubles1D wraps a float64 vector as a one-dimensional buffer.
func Doubles1D(v ...float64) *Buffer {
	if v == nil {
		v = []float64{}
	}
	return &Buffer{Type: DoubleData, Shape: []int{len(v)}, Doubles: v}
}

// Ints1D wraps an int32 vector as a one-dimensional buffer.
func Ints1D(v ...int32) *Buffer {
	if v == nil {
		v = []int32{}
	}
	return &Buffer{Type: IntegerData, Shape: []int{len(v)}, Ints: v}
}

// String1D wraps a string as a one-dimensional character buffer.
func String1D(s string) *Buffer {
	return &Buffer{Type: CharData, Shape: []int{len(s)}, Chars: []byte(s)}
}

// ScalarDouble returns a zero-dimensional double buffer.
func ScalarDouble(v float64) *Buffer {
	return &Buffer{Type: DoubleData, Doubles: []float64{v}}
}

// ScalarInt returns a zero-dimensional integer buffer.
func ScalarInt(v int32) *Buffer {
	return &Buffer{Type: IntegerData, Ints: []int32{v}}
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// Dim returns the number of dimensions.
func (b *Buffer) Dim() int { return len(b.Shape) }

// Len returns the number of stored elements.
func (b *Buffer) Len() int {
	switch b.Type {
	case CharData:
		return len(b.Chars)
	case IntegerData:
		return len(b.Ints)
	case DoubleData:
		return len(b.Doubles)
	case ComplexData:
		return len(b.Complex)
	}
	return 0
}

// SliceLen returns the number of elements in one time slice, i.e. the
// product of all dimensions except the last. A scalar or 1D buffer has
// slices of one element.
func (b *Buffer) SliceLen() int {
	if len(b.Shape) == 0 {
		return 1
	}
	return product(b.Shape[:len(b.Shape)-1])
}

// Released reports whether the storage has been handed off.
func (b *Buffer) Released() bool {
	return b.Chars == nil && b.Ints == nil && b.Doubles == nil && b.Complex == nil
}

// Release drops the storage. It marks the point where ownership of the data
// was transferred; a released buffer must not be read again.
func (b *Buffer) Release() {
	b.Chars, b.Ints, b.Doubles, b.Complex = nil, nil, nil, nil
	b.Shape = nil
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	c := &Buffer{Type: b.Type, Shape: append([]int(nil), b.Shape...)}
	switch b.Type {
	case CharData:
		c.Chars = append([]byte(nil), b.Chars...)
	case IntegerData:
		c.Ints = append([]int32(nil), b.Ints...)
	case DoubleData:
		c.Doubles = append([]float64(nil), b.Doubles...)
	case ComplexData:
		c.Complex = append([]complex128(nil), b.Complex...)
	}
	return c
}

// Block copies the block of n elements at block index first into a new
// buffer with the given shape.
func (b *Buffer) Block(first, n int, shape []int) (*Buffer, error) {
	lo, hi := first*n, (first+1)*n
	if first < 0 || hi > b.Len() {
		return nil, fmt.Errorf("block %d of %d elements out of range (len %d)", first, n, b.Len())
	}
	return b.span(lo, hi, shape), nil
}

// Blocks copies blocks [first, last] of n elements each.
func (b *Buffer) Blocks(first, last, n int, shape []int) (*Buffer, error) {
	lo, hi := first*n, (last+1)*n
	if first < 0 || last < first || hi > b.Len() {
		return nil, fmt.Errorf("blocks [%d,%d] of %d elements out of range (len %d)", first, last, n, b.Len())
	}
	return b.span(lo, hi, shape), nil
}

func (b *Buffer) span(lo, hi int, shape []int) *Buffer {
	c := &Buffer{Type: b.Type, Shape: append([]int(nil), shape...)}
	switch b.Type {
	case CharData:
		c.Chars = append([]byte(nil), b.Chars[lo:hi]...)
	case IntegerData:
		c.Ints = append([]int32(nil), b.Ints[lo:hi]...)
	case DoubleData:
		c.Doubles = append([]float64(nil), b.Doubles[lo:hi]...)
	case ComplexData:
		c.Complex = append([]complex128(nil), b.Complex[lo:hi]...)
	}
	return c
}

// AppendData appends the elements of o, which must have the same type.
func (b *Buffer) AppendData(o *Buffer) error {
	if o.Type != b.Type {
		return fmt.Errorf("cannot append %s to %s", o.Type, b.Type)
	}
	b.Chars = append(b.Chars, o.Chars...)
	b.Ints = append(b.Ints, o.Ints...)
	b.Doubles = append(b.Doubles, o.Doubles...)
	b.Complex = append(b.Complex, o.Complex...)
	return nil
}

// Truncate keeps the first n elements.
func (b *Buffer) Truncate(n int) {
	switch b.Type {
	case CharData:
		b.Chars = b.Chars[:n]
	case IntegerData:
		b.Ints = b.Ints[:n]
	case DoubleData:
		b.Doubles = b.Doubles[:n]
	case ComplexData:
		b.Complex = b.Complex[:n]
	}
}

// String returns the character content up to the first NUL byte.
func (b *Buffer) String() string {
	for i, c := range b.Chars {
		if c == 0 {
			return string(b.Chars[:i])
		}
	}
	return string(b.Chars)
}

// HasNonZeroShape reports whether b carries data worth writing: scalars
// must not hold the unset sentinel and arrays must have no empty dimension
// (lists of strings excepted).
func (b *Buffer) HasNonZeroShape() bool {
	if b == nil || b.Released() {
		return false
	}
	if len(b.Shape) == 0 {
		if b.Len() == 0 {
			return false
		}
		switch b.Type {
		case IntegerData:
			return b.Ints[0] != EmptyInt
		case DoubleData:
			return b.Doubles[0] != EmptyDouble
		case ComplexData:
			return b.Complex[0] != EmptyComplex
		}
		return true
	}
	if b.Type == CharData && len(b.Shape) > 1 {
		return true
	}
	for _, s := range b.Shape {
		if s == 0 {
			return false
		}
	}
	return true
}
