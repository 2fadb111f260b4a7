// Package buffer defines the memory views handed to the descriptor resolver.
//
// Buffers are owned by the caller. Nothing in this package copies the
// underlying storage; Bytes returns a view that aliases it.
package buffer

import (
	"errors"
	"unsafe"

	"github.com/danmuck/msgbuf/internal/datatype"
)

// Buffer is a contiguous, caller-owned memory region.
type Buffer interface {
	Bytes() []byte
}

// SelfDescribing is a Buffer that knows its native element type and length.
type SelfDescribing interface {
	Buffer
	Datatype() *datatype.Datatype
	Len() int
}

var ErrSizeMismatch = errors.New("buffer: element size does not match datatype")

// IsNil reports whether b holds no memory at all, including a nil *Typed
// stored in the interface.
func IsNil(b Buffer) bool {
	if b == nil {
		return true
	}
	sd, ok := b.(SelfDescribing)
	return ok && sd.Datatype() == nil
}

// Raw is untyped memory with no native element type.
type Raw []byte

// Alloc returns n bytes of zeroed raw memory.
func Alloc(n int) Raw {
	return make(Raw, n)
}

func (r Raw) Bytes() []byte {
	return r
}

// Typed views a Go slice as a self-describing buffer.
type Typed[T datatype.Element] struct {
	data []T
	dt   *datatype.Datatype
}

// Of wraps data with the datatype that matches T.
func Of[T datatype.Element](data []T) *Typed[T] {
	return &Typed[T]{data: data, dt: datatype.Of[T]()}
}

// As wraps data under an explicit datatype of the same width, e.g. int64
// storage described as "long long".
func As[T datatype.Element](data []T, dt *datatype.Datatype) (*Typed[T], error) {
	var zero T
	if !dt.Valid() || int(unsafe.Sizeof(zero)) != dt.Size() {
		return nil, ErrSizeMismatch
	}
	return &Typed[T]{data: data, dt: dt}, nil
}

// Slice returns the wrapped slice.
func (b *Typed[T]) Slice() []T {
	if b == nil {
		return nil
	}
	return b.data
}

func (b *Typed[T]) Bytes() []byte {
	if b == nil || len(b.data) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&b.data[0])), len(b.data)*int(unsafe.Sizeof(zero)))
}

func (b *Typed[T]) Datatype() *datatype.Datatype {
	if b == nil {
		return nil
	}
	return b.dt
}

func (b *Typed[T]) Len() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// ByteLen returns the total byte length of b. A nil buffer has length 0.
func ByteLen(b Buffer) int {
	if b == nil {
		return 0
	}
	return len(b.Bytes())
}

// Native reports b's native datatype and element count when b self-describes.
func Native(b Buffer) (*datatype.Datatype, int, bool) {
	sd, ok := b.(SelfDescribing)
	if !ok || sd.Datatype() == nil {
		return nil, 0, false
	}
	return sd.Datatype(), sd.Len(), true
}
