package storage

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"imascore/internal/types"
)

// Wire layout, protobuf encoded:
//
//	Struct { repeated Entry entries = 1; }
//	Entry  { string path = 1; Leaf leaf = 2; AOS aos = 3; }
//	Leaf   { int32 dtype = 1; repeated int64 shape = 2; string timebase = 3;
//	         repeated sint32 ints = 4; repeated double doubles = 5;
//	         bytes chars = 6; repeated double complex = 7; }
//	AOS    { string timebase = 1; repeated Struct elements = 2; }
//
// Complex values are stored as consecutive real, imaginary pairs.

var errTruncated = errors.New("storage: truncated message")

// MarshalStruct encodes a tree. Fields are written in path order so equal
// trees give equal bytes.
func MarshalStruct(s *Struct) []byte {
	return appendStruct(nil, s)
}

func appendStruct(b []byte, s *Struct) []byte {
	for _, path := range s.Paths() {
		n := s.Fields[path]
		var e []byte
		e = protowire.AppendTag(e, 1, protowire.BytesType)
		e = protowire.AppendString(e, path)
		switch {
		case n.Leaf != nil:
			e = protowire.AppendTag(e, 2, protowire.BytesType)
			e = protowire.AppendBytes(e, appendLeaf(nil, n.Leaf))
		case n.AOS != nil:
			e = protowire.AppendTag(e, 3, protowire.BytesType)
			e = protowire.AppendBytes(e, appendAOS(nil, n.AOS))
		}
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, e)
	}
	return b
}

func appendPacked(b []byte, num protowire.Number, body []byte) []byte {
	if len(body) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body)
}

func appendLeaf(b []byte, l *Leaf) []byte {
	d := l.Data
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(d.Type))

	var shape []byte
	for _, s := range d.Shape {
		shape = protowire.AppendVarint(shape, uint64(s))
	}
	b = appendPacked(b, 2, shape)

	if l.Timebase != "" {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, l.Timebase)
	}

	var body []byte
	switch d.Type {
	case types.IntegerData:
		for _, v := range d.Ints {
			body = protowire.AppendVarint(body, protowire.EncodeZigZag(int64(v)))
		}
		b = appendPacked(b, 4, body)
	case types.DoubleData:
		for _, v := range d.Doubles {
			body = protowire.AppendFixed64(body, math.Float64bits(v))
		}
		b = appendPacked(b, 5, body)
	case types.CharData:
		b = appendPacked(b, 6, d.Chars)
	case types.ComplexData:
		for _, v := range d.Complex {
			body = protowire.AppendFixed64(body, math.Float64bits(real(v)))
			body = protowire.AppendFixed64(body, math.Float64bits(imag(v)))
		}
		b = appendPacked(b, 7, body)
	}
	return b
}

func appendAOS(b []byte, a *AOS) []byte {
	if a.Timebase != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, a.Timebase)
	}
	for _, e := range a.Elements {
		if e == nil {
			e = NewStruct()
		}
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, appendStruct(nil, e))
	}
	return b
}

// fields iterates over the fields of a message.
func fields(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		var (
			v []byte
			x uint64
		)
		switch typ {
		case protowire.BytesType:
			v, n = protowire.ConsumeBytes(b)
		case protowire.VarintType:
			x, n = protowire.ConsumeVarint(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if err := fn(num, typ, v, x); err != nil {
			return err
		}
	}
	return nil
}

// UnmarshalStruct decodes a tree written by MarshalStruct.
func UnmarshalStruct(b []byte) (*Struct, error) {
	s := NewStruct()
	err := fields(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if num != 1 || typ != protowire.BytesType {
			return nil
		}
		return decodeEntry(s, v)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func decodeEntry(s *Struct, b []byte) error {
	var (
		path string
		node Node
	)
	err := fields(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if typ != protowire.BytesType {
			return nil
		}
		var err error
		switch num {
		case 1:
			path = string(v)
		case 2:
			node.Leaf, err = decodeLeaf(v)
		case 3:
			node.AOS, err = decodeAOS(v)
		}
		return err
	})
	if err != nil {
		return err
	}
	if node.Leaf == nil && node.AOS == nil {
		return fmt.Errorf("storage: field %q has no value", path)
	}
	s.Fields[path] = &node
	return nil
}

func decodeLeaf(b []byte) (*Leaf, error) {
	l := &Leaf{}
	d := &types.Buffer{}
	err := fields(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch num {
		case 1:
			d.Type = types.DataType(x)
		case 2:
			for len(v) > 0 {
				s, n := protowire.ConsumeVarint(v)
				if n < 0 {
					return protowire.ParseError(n)
				}
				d.Shape = append(d.Shape, int(s))
				v = v[n:]
			}
		case 3:
			l.Timebase = string(v)
		case 4:
			for len(v) > 0 {
				z, n := protowire.ConsumeVarint(v)
				if n < 0 {
					return protowire.ParseError(n)
				}
				d.Ints = append(d.Ints, int32(protowire.DecodeZigZag(z)))
				v = v[n:]
			}
		case 5:
			if len(v)%8 != 0 {
				return errTruncated
			}
			for ; len(v) > 0; v = v[8:] {
				f, _ := protowire.ConsumeFixed64(v)
				d.Doubles = append(d.Doubles, math.Float64frombits(f))
			}
		case 6:
			d.Chars = append([]byte(nil), v...)
		case 7:
			if len(v)%16 != 0 {
				return errTruncated
			}
			for ; len(v) > 0; v = v[16:] {
				re, _ := protowire.ConsumeFixed64(v)
				im, _ := protowire.ConsumeFixed64(v[8:])
				d.Complex = append(d.Complex, complex(math.Float64frombits(re), math.Float64frombits(im)))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !d.Type.Valid() {
		return nil, fmt.Errorf("storage: invalid data type %d", int(d.Type))
	}
	// empty arrays decode to empty, not released, storage
	switch d.Type {
	case types.CharData:
		if d.Chars == nil {
			d.Chars = []byte{}
		}
	case types.IntegerData:
		if d.Ints == nil {
			d.Ints = []int32{}
		}
	case types.DoubleData:
		if d.Doubles == nil {
			d.Doubles = []float64{}
		}
	case types.ComplexData:
		if d.Complex == nil {
			d.Complex = []complex128{}
		}
	}
	l.Data = d
	return l, nil
}

func decodeAOS(b []byte) (*AOS, error) {
	a := &AOS{}
	err := fields(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case 1:
			a.Timebase = string(v)
		case 2:
			e, err := UnmarshalStruct(v)
			if err != nil {
				return err
			}
			a.Elements = append(a.Elements, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}
