// Package datatype owns the primitive element type registry.
//
// The registry is built once at package init and is read-only afterwards, so
// lookups need no locking.
package datatype

import (
	"errors"
	"fmt"
	"reflect"
)

// Datatype is an opaque handle for a primitive element kind.
type Datatype struct {
	name string
	code string
	size int
}

// Name returns the C-style name of the element kind.
func (t *Datatype) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}

// Code returns the canonical single-character type code.
func (t *Datatype) Code() string {
	if t == nil {
		return ""
	}
	return t.code
}

// Size returns the element width in bytes.
func (t *Datatype) Size() int {
	if t == nil {
		return 0
	}
	return t.size
}

func (t *Datatype) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.name
}

// Valid reports whether t is a registered handle.
func (t *Datatype) Valid() bool {
	if t == nil || t.size <= 0 {
		return false
	}
	reg, ok := registry[t.code]
	return ok && reg == t
}

// Registered handles.
var (
	Char             = &Datatype{name: "char", code: "c", size: 1}
	SignedChar       = &Datatype{name: "signed char", code: "b", size: 1}
	UnsignedChar     = &Datatype{name: "unsigned char", code: "B", size: 1}
	Short            = &Datatype{name: "short", code: "h", size: 2}
	UnsignedShort    = &Datatype{name: "unsigned short", code: "H", size: 2}
	Int              = &Datatype{name: "int", code: "i", size: 4}
	Unsigned         = &Datatype{name: "unsigned int", code: "I", size: 4}
	Long             = &Datatype{name: "long", code: "l", size: 8}
	UnsignedLong     = &Datatype{name: "unsigned long", code: "L", size: 8}
	LongLong         = &Datatype{name: "long long", code: "q", size: 8}
	UnsignedLongLong = &Datatype{name: "unsigned long long", code: "Q", size: 8}
	Float            = &Datatype{name: "float", code: "f", size: 4}
	Double           = &Datatype{name: "double", code: "d", size: 8}
	Bool             = &Datatype{name: "bool", code: "?", size: 1}
)

var ordered = []*Datatype{
	Char, SignedChar, UnsignedChar,
	Short, UnsignedShort,
	Int, Unsigned,
	Long, UnsignedLong,
	LongLong, UnsignedLongLong,
	Float, Double,
	Bool,
}

var registry = func() map[string]*Datatype {
	m := make(map[string]*Datatype, len(ordered))
	for _, t := range ordered {
		if _, dup := m[t.code]; dup {
			panic("datatype: duplicate code " + t.code)
		}
		m[t.code] = t
	}
	return m
}()

// ErrUnknownCode is matched by every failed code lookup.
var ErrUnknownCode = errors.New("datatype: unknown type code")

// UnknownCodeError reports the code that was not found in the registry.
type UnknownCodeError struct {
	Code string
}

func (e UnknownCodeError) Error() string {
	return fmt.Sprintf("datatype: unknown type code %q", e.Code)
}

func (e UnknownCodeError) Is(target error) bool {
	return target == ErrUnknownCode
}

// Lookup maps a type code to its registered handle.
func Lookup(code string) (*Datatype, error) {
	t, ok := registry[code]
	if !ok {
		return nil, UnknownCodeError{Code: code}
	}
	return t, nil
}

// All returns the registered handles in registry order.
func All() []*Datatype {
	out := make([]*Datatype, len(ordered))
	copy(out, ordered)
	return out
}

// Codes returns the registered codes in registry order.
func Codes() []string {
	out := make([]string, 0, len(ordered))
	for _, t := range ordered {
		out = append(out, t.code)
	}
	return out
}

// Element constrains Go types that map onto a registered datatype.
type Element interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

// Of returns the native datatype of a Go element type.
func Of[T Element]() *Datatype {
	switch reflect.TypeFor[T]().Kind() {
	case reflect.Int8:
		return SignedChar
	case reflect.Uint8:
		return UnsignedChar
	case reflect.Int16:
		return Short
	case reflect.Uint16:
		return UnsignedShort
	case reflect.Int32:
		return Int
	case reflect.Uint32:
		return Unsigned
	case reflect.Int64:
		return Long
	case reflect.Uint64:
		return UnsignedLong
	case reflect.Float32:
		return Float
	default:
		return Double
	}
}
