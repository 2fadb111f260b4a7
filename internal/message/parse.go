package message

import (
	"fmt"
	"math"

	"github.com/danmuck/msgbuf/internal/buffer"
	"github.com/danmuck/msgbuf/internal/datatype"
)

// Pair is the (count, displacement) element of a two- or three-part list.
type Pair struct {
	Count        Opt
	Displacement Opt
}

// Parse builds a Descriptor from a list-shaped description, the form used by
// dynamic callers such as the HTTP API:
//
//	[buf]  [buf, X]  [buf, countOrPair, type]  [buf, count, disp, type]
//
// In the two-part form X is a type specifier (nil, string code, handle,
// TypeSpec) or else a count or Pair. Buffers may be buffer.Buffer values,
// []byte, or slices of registered element types. Anything else fails with
// ErrMalformed.
func Parse(parts ...any) (Descriptor, error) {
	if len(parts) == 0 || len(parts) > 4 {
		return Descriptor{}, fmt.Errorf("%w: expected 1 to 4 parts, got %d", ErrMalformed, len(parts))
	}
	buf, err := asBuffer(parts[0])
	if err != nil {
		return Descriptor{}, err
	}

	switch len(parts) {
	case 1:
		return Bare(buf), nil
	case 2:
		if spec, ok := asTypeSpec(parts[1]); ok {
			return WithType(buf, spec), nil
		}
		count, disp, err := asExtent(parts[1])
		if err != nil {
			return Descriptor{}, err
		}
		return WithCount(buf, count, disp), nil
	case 3:
		count, disp, err := asExtent(parts[1])
		if err != nil {
			return Descriptor{}, err
		}
		spec, ok := asTypeSpec(parts[2])
		if !ok {
			return Descriptor{}, fmt.Errorf("%w: bad type specifier %T", ErrMalformed, parts[2])
		}
		return WithCountType(buf, count, disp, spec), nil
	default:
		count, err := asOpt(parts[1])
		if err != nil {
			return Descriptor{}, err
		}
		disp, err := asOpt(parts[2])
		if err != nil {
			return Descriptor{}, err
		}
		spec, ok := asTypeSpec(parts[3])
		if !ok {
			return Descriptor{}, fmt.Errorf("%w: bad type specifier %T", ErrMalformed, parts[3])
		}
		return Full(buf, count, disp, spec), nil
	}
}

func asBuffer(v any) (buffer.Buffer, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case buffer.Buffer:
		if buffer.IsNil(b) {
			return nil, nil
		}
		return b, nil
	case []byte:
		return buffer.Raw(b), nil
	case []int8:
		return buffer.Of(b), nil
	case []int16:
		return buffer.Of(b), nil
	case []uint16:
		return buffer.Of(b), nil
	case []int32:
		return buffer.Of(b), nil
	case []uint32:
		return buffer.Of(b), nil
	case []int64:
		return buffer.Of(b), nil
	case []uint64:
		return buffer.Of(b), nil
	case []float32:
		return buffer.Of(b), nil
	case []float64:
		return buffer.Of(b), nil
	default:
		return nil, fmt.Errorf("%w: unsupported buffer %T", ErrMalformed, v)
	}
}

func asTypeSpec(v any) (TypeSpec, bool) {
	switch t := v.(type) {
	case nil:
		return Native(), true
	case string:
		return Code(t), true
	case *datatype.Datatype:
		return Handle(t), true
	case TypeSpec:
		return t, true
	default:
		return TypeSpec{}, false
	}
}

func asExtent(v any) (Opt, Opt, error) {
	switch p := v.(type) {
	case Pair:
		return p.Count, p.Displacement, nil
	case [2]any:
		return asPair(p[0], p[1])
	case []any:
		if len(p) != 2 {
			return Opt{}, Opt{}, fmt.Errorf("%w: (count, displacement) needs 2 items, got %d", ErrMalformed, len(p))
		}
		return asPair(p[0], p[1])
	default:
		count, err := asOpt(v)
		return count, Opt{}, err
	}
}

func asPair(c, d any) (Opt, Opt, error) {
	count, err := asOpt(c)
	if err != nil {
		return Opt{}, Opt{}, err
	}
	disp, err := asOpt(d)
	if err != nil {
		return Opt{}, Opt{}, err
	}
	return count, disp, nil
}

func asOpt(v any) (Opt, error) {
	switch n := v.(type) {
	case nil:
		return Opt{}, nil
	case Opt:
		return n, nil
	case int:
		return Int(n), nil
	case int8:
		return Int(int(n)), nil
	case int16:
		return Int(int(n)), nil
	case int32:
		return Int(int(n)), nil
	case int64:
		if n > math.MaxInt || n < math.MinInt {
			return Opt{}, fmt.Errorf("%w: integer %d overflows int", ErrMalformed, n)
		}
		return Int(int(n)), nil
	case uint:
		return fromUnsigned(uint64(n))
	case uint8:
		return Int(int(n)), nil
	case uint16:
		return Int(int(n)), nil
	case uint32:
		return fromUnsigned(uint64(n))
	case uint64:
		return fromUnsigned(n)
	case float64:
		// JSON numbers arrive as float64.
		if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
			return Opt{}, fmt.Errorf("%w: non-integral extent %v", ErrMalformed, n)
		}
		return Int(int(n)), nil
	default:
		return Opt{}, fmt.Errorf("%w: bad count or displacement %T", ErrMalformed, v)
	}
}

func fromUnsigned(n uint64) (Opt, error) {
	if n > math.MaxInt {
		return Opt{}, fmt.Errorf("%w: integer %d overflows int", ErrMalformed, n)
	}
	return Int(int(n)), nil
}
