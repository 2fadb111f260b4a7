package p2p

import (
	"fmt"

	"github.com/danmuck/msgbuf/internal/datatype"
	"github.com/danmuck/msgbuf/internal/message"
	"github.com/danmuck/msgbuf/internal/protocol/frame"
	"github.com/danmuck/msgbuf/internal/protocol/schema"
	"github.com/danmuck/msgbuf/internal/protocol/tlv"
)

// envelope is one data frame after decoding.
type envelope struct {
	source   int
	tag      int
	datatype *datatype.Datatype
	count    int
	data     []byte
}

func (e envelope) matches(source, tag int) bool {
	return (source == AnySource || source == e.source) && (tag == AnyTag || tag == e.tag)
}

func encodeEnvelope(source, tag int, r message.Resolved) []byte {
	return tlv.EncodeFields([]tlv.Field{
		tlv.U32(schema.FieldSource, uint32(source)),
		tlv.U32(schema.FieldTag, uint32(tag)),
		tlv.String(schema.FieldDatatype, r.Datatype.Code()),
		tlv.U64(schema.FieldCount, uint64(r.Count)),
		tlv.Bytes(schema.FieldData, r.Window()),
	})
}

func envelopeLen(r message.Resolved) int {
	// Five field headers, u32 source and tag, u64 count, code, data.
	return 5*tlv.HeaderLen + 4 + 4 + 8 + len(r.Datatype.Code()) + r.Bytes()
}

func decodeEnvelope(f frame.Frame) (envelope, error) {
	fields, err := tlv.DecodeFields(f.Payload)
	if err != nil {
		return envelope{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	if err := schema.Validate(f.Header.Type, fields); err != nil {
		return envelope{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}

	get := func(id uint16) tlv.Field {
		field, _ := tlv.GetField(fields, id)
		return field
	}
	source, err := get(schema.FieldSource).U32()
	if err != nil {
		return envelope{}, fmt.Errorf("%w: source: %w", ErrMalformedEnvelope, err)
	}
	tag, err := get(schema.FieldTag).U32()
	if err != nil {
		return envelope{}, fmt.Errorf("%w: tag: %w", ErrMalformedEnvelope, err)
	}
	count, err := get(schema.FieldCount).U64()
	if err != nil {
		return envelope{}, fmt.Errorf("%w: count: %w", ErrMalformedEnvelope, err)
	}
	code, _ := get(schema.FieldDatatype).Str()
	dt, err := datatype.Lookup(code)
	if err != nil {
		return envelope{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	data := get(schema.FieldData).Value
	if count > uint64(len(data)) || uint64(len(data)) != count*uint64(dt.Size()) {
		return envelope{}, fmt.Errorf(
			"%w: %d bytes for %d elements of %s", ErrMalformedEnvelope, len(data), count, dt,
		)
	}
	return envelope{
		source:   int(source),
		tag:      int(tag),
		datatype: dt,
		count:    int(count),
		data:     data,
	}, nil
}
