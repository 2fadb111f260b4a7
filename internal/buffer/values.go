package buffer

import "github.com/danmuck/msgbuf/internal/datatype"

// Float64s widens the buffer contents for display and comparison.
func (b *Typed[T]) Float64s() []float64 {
	if b == nil {
		return nil
	}
	out := make([]float64, len(b.data))
	for i, v := range b.data {
		out[i] = float64(v)
	}
	return out
}

// Zero resets every element to its zero value.
func (b *Typed[T]) Zero() {
	if b == nil {
		return
	}
	clear(b.data)
}

// Numeric is a self-describing buffer whose contents can be read as float64.
type Numeric interface {
	SelfDescribing
	Float64s() []float64
	Zero()
}

// FromValues allocates a buffer of the datatype named by code and fills it
// with values, truncating toward the element type. Bool elements hold 0 or 1.
func FromValues(code string, values []float64) (Numeric, error) {
	dt, err := datatype.Lookup(code)
	if err != nil {
		return nil, err
	}
	switch dt {
	case datatype.Char, datatype.SignedChar:
		return build(convert[int8](values), dt)
	case datatype.Bool:
		return build(truth(values), dt)
	case datatype.UnsignedChar:
		return build(convert[uint8](values), dt)
	case datatype.Short:
		return build(convert[int16](values), dt)
	case datatype.UnsignedShort:
		return build(convert[uint16](values), dt)
	case datatype.Int:
		return build(convert[int32](values), dt)
	case datatype.Unsigned:
		return build(convert[uint32](values), dt)
	case datatype.Long, datatype.LongLong:
		return build(convert[int64](values), dt)
	case datatype.UnsignedLong, datatype.UnsignedLongLong:
		return build(convert[uint64](values), dt)
	case datatype.Float:
		return build(convert[float32](values), dt)
	default:
		return build(convert[float64](values), dt)
	}
}

// Zeros allocates a zeroed buffer of n elements of the datatype named by code.
func Zeros(code string, n int) (Numeric, error) {
	if n < 0 {
		n = 0
	}
	return FromValues(code, make([]float64, n))
}

func build[T datatype.Element](data []T, dt *datatype.Datatype) (Numeric, error) {
	b, err := As(data, dt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func convert[T datatype.Element](values []float64) []T {
	out := make([]T, len(values))
	for i, v := range values {
		out[i] = T(v)
	}
	return out
}

func truth(values []float64) []uint8 {
	out := make([]uint8, len(values))
	for i, v := range values {
		if v != 0 {
			out[i] = 1
		}
	}
	return out
}
