package schema

import (
	"fmt"

	"github.com/danmuck/msgbuf/internal/protocol/frame"
	"github.com/danmuck/msgbuf/internal/protocol/tlv"
	"github.com/rs/zerolog/log"
)

// Field IDs of a data envelope.
const (
	FieldSource   uint16 = 1
	FieldTag      uint16 = 2
	FieldDatatype uint16 = 3
	FieldCount    uint16 = 4
	FieldData     uint16 = 5
)

type Requirement struct {
	ID   uint16
	Type uint8
}

type ValidationError struct {
	FrameType uint16
	FieldID   uint16
	Reason    string
}

func (e ValidationError) Error() string {
	if e.FieldID == 0 {
		return fmt.Sprintf("schema: frame_type=%d: %s", e.FrameType, e.Reason)
	}
	return fmt.Sprintf("schema: frame_type=%d field=%d: %s", e.FrameType, e.FieldID, e.Reason)
}

var requirements = map[uint16][]Requirement{
	frame.TypeData: {
		{FieldSource, tlv.TypeU32},
		{FieldTag, tlv.TypeU32},
		{FieldDatatype, tlv.TypeString},
		{FieldCount, tlv.TypeU64},
		{FieldData, tlv.TypeBytes},
	},
}

// Validate enforces required fields and required field types for a frame type.
// Unknown fields are ignored.
func Validate(frameType uint16, fields []tlv.Field) error {
	reqs, ok := requirements[frameType]
	if !ok {
		log.Error().Uint16("frame_type", frameType).Msg("schema.Validate unknown frame type")
		return ValidationError{FrameType: frameType, Reason: "unknown frame_type"}
	}
	for _, req := range reqs {
		f, found := tlv.GetField(fields, req.ID)
		if !found {
			log.Error().
				Uint16("frame_type", frameType).
				Uint16("field_id", req.ID).
				Msg("schema.Validate missing field")
			return ValidationError{FrameType: frameType, FieldID: req.ID, Reason: "missing required field"}
		}
		if f.Type != req.Type {
			log.Error().
				Uint16("frame_type", frameType).
				Uint16("field_id", req.ID).
				Uint8("got", f.Type).
				Uint8("want", req.Type).
				Msg("schema.Validate type mismatch")
			return ValidationError{FrameType: frameType, FieldID: req.ID, Reason: "type mismatch"}
		}
	}
	log.Trace().Uint16("frame_type", frameType).Int("fields", len(fields)).Msg("schema.Validate ok")
	return nil
}
