package persist

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrCorrupt is returned when the input is not valid state.
	ErrCorrupt = errors.New("corrupt state")
	// ErrVersion is returned for state written by a newer format.
	ErrVersion = errors.New("unsupported state version")
)

type encoder struct {
	b []byte
}

func (e *encoder) putUint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.VarintType)
	e.b = protowire.AppendVarint(e.b, v)
}

func (e *encoder) putInt(num protowire.Number, v int64) {
	e.putUint(num, protowire.EncodeZigZag(v))
}

func (e *encoder) putBool(num protowire.Number, v bool) {
	e.putUint(num, protowire.EncodeBool(v))
}

func (e *encoder) putString(num protowire.Number, s string) {
	if s == "" {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendString(e.b, s)
}

func (e *encoder) putBytes(num protowire.Number, b []byte) {
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, b)
}

func (e *encoder) putMessage(num protowire.Number, fn func(*encoder)) {
	var sub encoder
	fn(&sub)
	e.putBytes(num, sub.b)
}

// packed writes zigzag varints, zeros included, so positions survive.
func (e *encoder) putPacked(num protowire.Number, vs []int64) {
	if len(vs) == 0 {
		return
	}
	var buf []byte
	for _, v := range vs {
		buf = protowire.AppendVarint(buf, protowire.EncodeZigZag(v))
	}
	e.putBytes(num, buf)
}

func corrupt(what string, err error) error {
	return fmt.Errorf("decode %s: %w: %v", what, ErrCorrupt, err)
}

// walk calls fn for every varint and length-delimited field of a message.
// Other wire types are skipped.
func walk(what string, b []byte, fn func(num protowire.Number, v uint64, data []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return corrupt(what, protowire.ParseError(n))
		}
		b = b[n:]
		var v uint64
		var data []byte
		switch typ {
		case protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			data, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return corrupt(what, protowire.ParseError(n))
		}
		b = b[n:]
		if typ != protowire.VarintType && typ != protowire.BytesType {
			continue
		}
		if err := fn(num, v, data); err != nil {
			return err
		}
	}
	return nil
}

func unpack(what string, data []byte) ([]int64, error) {
	var out []int64
	for len(data) > 0 {
		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return nil, corrupt(what, protowire.ParseError(n))
		}
		out = append(out, protowire.DecodeZigZag(v))
		data = data[n:]
	}
	return out, nil
}

// unpackExact unpacks a table that must have exactly size entries.
func unpackExact(what string, data []byte, size int) ([]int64, error) {
	vs, err := unpack(what, data)
	if err != nil {
		return nil, err
	}
	if len(vs) != size {
		return nil, corrupt(what, fmt.Errorf("%d values, want %d", len(vs), size))
	}
	return vs, nil
}

func sint(v uint64) int64 { return protowire.DecodeZigZag(v) }
