// Package message resolves flexible buffer descriptions into exact transfer
// descriptors.
//
// A Descriptor is built with one of five constructors, one per accepted shape:
//
//	Bare(buf)                            [buf]
//	WithType(buf, t)                     [buf, t]
//	WithCount(buf, count, disp)          [buf, count] or [buf, (count, disp)]
//	WithCountType(buf, count, disp, t)   [buf, count, t] or [buf, (count, disp), t]
//	Full(buf, count, disp, t)            [buf, count, disp, t]
//
// Resolve turns a Descriptor into a Resolved value or fails with an error that
// matches either ErrValue or ErrLookup.
package message

import (
	"fmt"
	"strconv"

	"github.com/danmuck/msgbuf/internal/buffer"
	"github.com/danmuck/msgbuf/internal/datatype"
)

// Opt is an optional count or displacement. The zero value is unset.
type Opt struct {
	v   int
	set bool
}

// Int returns a set Opt.
func Int(v int) Opt {
	return Opt{v: v, set: true}
}

// Get returns the value and whether it was set.
func (o Opt) Get() (int, bool) {
	return o.v, o.set
}

func (o Opt) String() string {
	if !o.set {
		return "None"
	}
	return strconv.Itoa(o.v)
}

type specKind uint8

const (
	specNative specKind = iota
	specCode
	specHandle
)

// TypeSpec selects the element type of a descriptor. The zero value defers
// to the buffer's native type.
type TypeSpec struct {
	kind   specKind
	code   string
	handle *datatype.Datatype
}

// Native defers to the buffer's own element type.
func Native() TypeSpec {
	return TypeSpec{}
}

// Code names a type by its registry code.
func Code(code string) TypeSpec {
	return TypeSpec{kind: specCode, code: code}
}

// Handle passes a datatype handle through unchanged.
func Handle(dt *datatype.Datatype) TypeSpec {
	return TypeSpec{kind: specHandle, handle: dt}
}

func (s TypeSpec) String() string {
	switch s.kind {
	case specCode:
		return strconv.Quote(s.code)
	case specHandle:
		return s.handle.String()
	default:
		return "None"
	}
}

// Shape tags which constructor built a Descriptor.
type Shape uint8

const (
	ShapeInvalid Shape = iota
	ShapeBare
	ShapeType
	ShapeCount
	ShapeCountType
	ShapeFull
)

func (s Shape) String() string {
	switch s {
	case ShapeBare:
		return "bare"
	case ShapeType:
		return "buffer+type"
	case ShapeCount:
		return "buffer+count"
	case ShapeCountType:
		return "buffer+count+type"
	case ShapeFull:
		return "buffer+count+displacement+type"
	default:
		return "invalid"
	}
}

// Descriptor is a caller-built message description. The zero value is
// invalid and fails resolution with ErrMalformed.
type Descriptor struct {
	shape Shape
	buf   buffer.Buffer
	count Opt
	disp  Opt
	dtype TypeSpec
}

// Bare describes a self-describing buffer in full.
func Bare(buf buffer.Buffer) Descriptor {
	return Descriptor{shape: ShapeBare, buf: buf}
}

// WithType describes the whole buffer as elements of t.
func WithType(buf buffer.Buffer, t TypeSpec) Descriptor {
	return Descriptor{shape: ShapeType, buf: buf, dtype: t}
}

// WithCount describes a window of the buffer in its native type.
func WithCount(buf buffer.Buffer, count, disp Opt) Descriptor {
	return Descriptor{shape: ShapeCount, buf: buf, count: count, disp: disp}
}

// WithCountType describes a window of the buffer as elements of t.
func WithCountType(buf buffer.Buffer, count, disp Opt, t TypeSpec) Descriptor {
	return Descriptor{shape: ShapeCountType, buf: buf, count: count, disp: disp, dtype: t}
}

// Full describes every field explicitly.
func Full(buf buffer.Buffer, count, disp Opt, t TypeSpec) Descriptor {
	return Descriptor{shape: ShapeFull, buf: buf, count: count, disp: disp, dtype: t}
}

func (d Descriptor) Shape() Shape {
	return d.shape
}

func (d Descriptor) Buffer() buffer.Buffer {
	return d.buf
}

func (d Descriptor) String() string {
	buf := "None"
	if d.buf != nil {
		buf = fmt.Sprintf("<%d bytes>", buffer.ByteLen(d.buf))
	}
	switch d.shape {
	case ShapeBare:
		return buf
	case ShapeType:
		return fmt.Sprintf("[%s, %s]", buf, d.dtype)
	case ShapeCount:
		return fmt.Sprintf("[%s, (%s, %s)]", buf, d.count, d.disp)
	case ShapeCountType:
		return fmt.Sprintf("[%s, (%s, %s), %s]", buf, d.count, d.disp, d.dtype)
	case ShapeFull:
		return fmt.Sprintf("[%s, %s, %s, %s]", buf, d.count, d.disp, d.dtype)
	default:
		return "<invalid descriptor>"
	}
}
