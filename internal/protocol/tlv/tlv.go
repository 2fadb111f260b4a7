package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderLen is id(2) + type(1) + length(4).
const HeaderLen = 7

var (
	ErrShortFieldHeader = errors.New("tlv: short field header")
	ErrShortFieldValue  = errors.New("tlv: short field value")
	ErrTypeMismatch     = errors.New("tlv: field type mismatch")
	ErrInvalidLength    = errors.New("tlv: invalid value length")
)

// Type IDs.
const (
	TypeU32    uint8 = 3
	TypeU64    uint8 = 4
	TypeString uint8 = 6
	TypeBytes  uint8 = 7
)

// Field is one decoded TLV field.
type Field struct {
	ID    uint16
	Type  uint8
	Value []byte
}

func U32(id uint16, v uint32) Field {
	return Field{ID: id, Type: TypeU32, Value: binary.BigEndian.AppendUint32(nil, v)}
}

func U64(id uint16, v uint64) Field {
	return Field{ID: id, Type: TypeU64, Value: binary.BigEndian.AppendUint64(nil, v)}
}

func String(id uint16, v string) Field {
	return Field{ID: id, Type: TypeString, Value: []byte(v)}
}

// Bytes wraps v without copying; the caller must not reuse v until encoded.
func Bytes(id uint16, v []byte) Field {
	return Field{ID: id, Type: TypeBytes, Value: v}
}

func (f Field) U32() (uint32, error) {
	if f.Type != TypeU32 {
		return 0, ErrTypeMismatch
	}
	if len(f.Value) != 4 {
		return 0, ErrInvalidLength
	}
	return binary.BigEndian.Uint32(f.Value), nil
}

func (f Field) U64() (uint64, error) {
	if f.Type != TypeU64 {
		return 0, ErrTypeMismatch
	}
	if len(f.Value) != 8 {
		return 0, ErrInvalidLength
	}
	return binary.BigEndian.Uint64(f.Value), nil
}

func (f Field) Str() (string, error) {
	if f.Type != TypeString {
		return "", ErrTypeMismatch
	}
	return string(f.Value), nil
}

// EncodedLen is the wire size of fields.
func EncodedLen(fields []Field) int {
	n := 0
	for _, f := range fields {
		n += HeaderLen + len(f.Value)
	}
	return n
}

func AppendField(dst []byte, f Field) []byte {
	dst = binary.BigEndian.AppendUint16(dst, f.ID)
	dst = append(dst, f.Type)
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(f.Value)))
	return append(dst, f.Value...)
}

func EncodeFields(fields []Field) []byte {
	out := make([]byte, 0, EncodedLen(fields))
	for _, f := range fields {
		out = AppendField(out, f)
	}
	return out
}

// DecodeFields splits payload into fields. Values alias payload.
func DecodeFields(payload []byte) ([]Field, error) {
	fields := make([]Field, 0, 5)
	i := 0
	for i < len(payload) {
		if len(payload)-i < HeaderLen {
			return nil, ErrShortFieldHeader
		}
		id := binary.BigEndian.Uint16(payload[i : i+2])
		typeID := payload[i+2]
		l := binary.BigEndian.Uint32(payload[i+3 : i+7])
		i += HeaderLen
		if uint64(len(payload)-i) < uint64(l) {
			return nil, ErrShortFieldValue
		}
		end := i + int(l)
		fields = append(fields, Field{ID: id, Type: typeID, Value: payload[i:end:end]})
		i = end
	}
	return fields, nil
}

func GetField(fields []Field, id uint16) (Field, bool) {
	for _, f := range fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

func MustType(f Field, expected uint8) error {
	if f.Type != expected {
		return fmt.Errorf("tlv: field %d type mismatch: got %d want %d", f.ID, f.Type, expected)
	}
	return nil
}
