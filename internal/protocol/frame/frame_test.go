package frame

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/danmuck/msgbuf/internal/protocol/tlv"
)

func TestReadWriteFrameRoundTrip(t *testing.T) {
	payload := tlv.EncodeFields([]tlv.Field{tlv.String(1, "i"), tlv.Bytes(2, []byte{1, 0, 0, 0})})
	in := Frame{
		Header:  Header{Type: TypeData, Sequence: 42},
		Payload: payload,
	}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, in, DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	out, err := ReadFrame(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if out.Header.Magic != Magic || out.Header.Version != Version {
		t.Fatalf("writer did not stamp magic/version: %+v", out.Header)
	}
	if out.Header.Type != TypeData || out.Header.Sequence != 42 || out.Header.PayloadLen != uint64(len(payload)) {
		t.Fatalf("header mismatch: %+v", out.Header)
	}
	if !bytes.Equal(out.Payload, payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestReadFrameMalformedHeaderIsDeterministic(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{1, 2, 3}), DefaultLimits())
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestReadFrameCleanEOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil), DefaultLimits())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestReadFrameInvalidMagic(t *testing.T) {
	buf := EncodeHeader(Header{Magic: 1, Version: Version, Type: TypeData})
	_, err := ReadFrame(bytes.NewReader(buf), DefaultLimits())
	if !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
}

func TestReadFrameUnsupportedVersion(t *testing.T) {
	buf := EncodeHeader(Header{Magic: Magic, Version: 9, Type: TypeData})
	_, err := ReadFrame(bytes.NewReader(buf), DefaultLimits())
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestFramePayloadLimits(t *testing.T) {
	limits := Limits{MaxPayloadBytes: 4}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, Frame{Payload: make([]byte, 5)}, limits); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge on write, got %v", err)
	}

	head := EncodeHeader(Header{Magic: Magic, Version: Version, Type: TypeData, PayloadLen: 5})
	if _, err := ReadFrame(bytes.NewReader(head), limits); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge on read, got %v", err)
	}
}

func TestReadFrameShortPayload(t *testing.T) {
	head := EncodeHeader(Header{Magic: Magic, Version: Version, Type: TypeData, PayloadLen: 8})
	data := append(head, 1, 2, 3)
	if _, err := ReadFrame(bytes.NewReader(data), DefaultLimits()); !errors.Is(err, ErrShortPayload) {
		t.Fatalf("expected ErrShortPayload, got %v", err)
	}
}
