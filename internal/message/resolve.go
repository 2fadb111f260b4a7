package message

import (
	"fmt"

	"github.com/danmuck/msgbuf/internal/buffer"
	"github.com/danmuck/msgbuf/internal/datatype"
)

// Resolved is a validated transfer window:
// 0 <= Displacement, 0 <= Count, Displacement+Count <= Capacity().
type Resolved struct {
	Buffer       []byte
	Datatype     *datatype.Datatype
	Count        int
	Displacement int
}

// Capacity is the number of whole elements of Datatype that fit in Buffer.
func (r Resolved) Capacity() int {
	if r.Datatype.Size() == 0 {
		return 0
	}
	return len(r.Buffer) / r.Datatype.Size()
}

// Offset is the byte offset of the first element in the window.
func (r Resolved) Offset() int {
	return r.Displacement * r.Datatype.Size()
}

// Bytes is the byte length of the window.
func (r Resolved) Bytes() int {
	return r.Count * r.Datatype.Size()
}

// Window returns the bytes covered by the descriptor. It aliases Buffer.
func (r Resolved) Window() []byte {
	lo, hi := r.Offset(), r.Offset()+r.Bytes()
	return r.Buffer[lo:hi:hi]
}

// Resolve validates d and computes its transfer window. It has no side
// effects and is safe for concurrent use.
func Resolve(d Descriptor) (Resolved, error) {
	var (
		dt          *datatype.Datatype
		count, disp Opt
		err         error
	)
	buf := d.buf
	if buffer.IsNil(buf) {
		buf = nil
	}
	switch d.shape {
	case ShapeBare:
		if buf == nil {
			// A missing buffer stands for the empty message.
			return Resolved{Datatype: datatype.UnsignedChar}, nil
		}
		native, n, ok := buffer.Native(buf)
		if !ok {
			return Resolved{}, fmt.Errorf("%w: bare buffer must self-describe", ErrNoDatatype)
		}
		dt, count = native, Int(n)
	case ShapeType:
		dt, err = resolveType(buf, d.dtype)
	case ShapeCount:
		dt, err = resolveType(buf, Native())
		count, disp = d.count, d.disp
	case ShapeCountType, ShapeFull:
		dt, err = resolveType(buf, d.dtype)
		count, disp = d.count, d.disp
	default:
		return Resolved{}, fmt.Errorf("%w: shape %s", ErrMalformed, d.shape)
	}
	if err != nil {
		return Resolved{}, err
	}
	return resolveExtent(buf, dt, count, disp)
}

func resolveType(buf buffer.Buffer, spec TypeSpec) (*datatype.Datatype, error) {
	switch spec.kind {
	case specCode:
		dt, err := datatype.Lookup(spec.code)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLookup, err)
		}
		return dt, nil
	case specHandle:
		if !spec.handle.Valid() {
			return nil, fmt.Errorf("%w: unregistered datatype handle", ErrMalformed)
		}
		return spec.handle, nil
	default:
		dt, _, ok := buffer.Native(buf)
		if !ok {
			return nil, fmt.Errorf("%w: no datatype given", ErrNoDatatype)
		}
		return dt, nil
	}
}

// resolveExtent fills defaults and checks bounds. Displacement is resolved
// first because the default count depends on it.
func resolveExtent(buf buffer.Buffer, dt *datatype.Datatype, count, disp Opt) (Resolved, error) {
	var raw []byte
	if buf != nil {
		raw = buf.Bytes()
	}
	capacity := len(raw) / dt.Size()

	d, ok := disp.Get()
	if !ok {
		d = 0
	}
	if d < 0 {
		return Resolved{}, fmt.Errorf("%w: displacement=%d", ErrNegativeDisplacement, d)
	}

	c, ok := count.Get()
	if !ok {
		c = max(capacity-d, 0)
	}
	if c < 0 {
		return Resolved{}, fmt.Errorf("%w: count=%d", ErrNegativeCount, c)
	}

	if buf == nil && c > 0 {
		return Resolved{}, fmt.Errorf("%w: count=%d", ErrNullBuffer, c)
	}
	if d > capacity || c > capacity-d {
		return Resolved{}, fmt.Errorf(
			"%w: displacement=%d count=%d capacity=%d datatype=%s",
			ErrOutOfBounds, d, c, capacity, dt,
		)
	}

	return Resolved{Buffer: raw, Datatype: dt, Count: c, Displacement: d}, nil
}
