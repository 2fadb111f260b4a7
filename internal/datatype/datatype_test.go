package datatype

import (
	"errors"
	"testing"
)

func TestLookupRegisteredCodes(t *testing.T) {
	want := map[string]int{
		"h": 2, "i": 4, "l": 8,
		"H": 2, "I": 4, "L": 8,
		"f": 4, "d": 8, "B": 1,
	}
	for code, size := range want {
		dt, err := Lookup(code)
		if err != nil {
			t.Fatalf("lookup %q: %v", code, err)
		}
		if dt.Code() != code || dt.Size() != size {
			t.Fatalf("lookup %q: got code=%q size=%d", code, dt.Code(), dt.Size())
		}
		if !dt.Valid() {
			t.Fatalf("expected %q handle to be valid", code)
		}
	}
}

func TestLookupUnknownCode(t *testing.T) {
	_, err := Lookup("\x00")
	if !errors.Is(err, ErrUnknownCode) {
		t.Fatalf("expected ErrUnknownCode, got %v", err)
	}
	var unknown UnknownCodeError
	if !errors.As(err, &unknown) || unknown.Code != "\x00" {
		t.Fatalf("expected UnknownCodeError for NUL code, got %v", err)
	}
	if _, err := Lookup(""); !errors.Is(err, ErrUnknownCode) {
		t.Fatalf("expected empty code to fail lookup, got %v", err)
	}
}

func TestCodesAreUniqueAndOrdered(t *testing.T) {
	codes := Codes()
	if len(codes) != len(All()) {
		t.Fatalf("codes/all length mismatch: %d vs %d", len(codes), len(All()))
	}
	seen := map[string]bool{}
	for _, c := range codes {
		if seen[c] {
			t.Fatalf("duplicate code %q", c)
		}
		seen[c] = true
	}
	if codes[0] != "c" || codes[len(codes)-1] != "?" {
		t.Fatalf("unexpected registry order: %v", codes)
	}
}

func TestZeroHandleIsInvalid(t *testing.T) {
	var zero Datatype
	if zero.Valid() {
		t.Fatalf("zero handle must not be valid")
	}
	var nilHandle *Datatype
	if nilHandle.Valid() || nilHandle.Size() != 0 || nilHandle.String() != "<nil>" {
		t.Fatalf("nil handle accessors misbehaved")
	}
}

type celsius float32

func TestOfMapsGoTypes(t *testing.T) {
	cases := []struct {
		got  *Datatype
		want *Datatype
	}{
		{Of[int8](), SignedChar},
		{Of[uint8](), UnsignedChar},
		{Of[int16](), Short},
		{Of[uint16](), UnsignedShort},
		{Of[int32](), Int},
		{Of[uint32](), Unsigned},
		{Of[int64](), Long},
		{Of[uint64](), UnsignedLong},
		{Of[float32](), Float},
		{Of[float64](), Double},
		{Of[celsius](), Float},
	}
	for i, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("case %d: got %v want %v", i, tc.got, tc.want)
		}
	}
}
