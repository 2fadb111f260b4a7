package message

import "errors"

// Failure kinds. Every resolver error matches exactly one of these with
// errors.Is, so callers can separate bad type codes from bad extents.
var (
	ErrValue  = errors.New("message: invalid value")
	ErrLookup = errors.New("message: lookup failed")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string {
	return e.msg
}

func (e *kindError) Unwrap() error {
	return e.kind
}

// Value failures.
var (
	ErrNegativeCount        error = &kindError{kind: ErrValue, msg: "message: negative count"}
	ErrNegativeDisplacement error = &kindError{kind: ErrValue, msg: "message: negative displacement"}
	ErrOutOfBounds          error = &kindError{kind: ErrValue, msg: "message: out of bounds, message truncated"}
	ErrNullBuffer           error = &kindError{kind: ErrValue, msg: "message: null buffer with non-empty request"}
	ErrNoDatatype           error = &kindError{kind: ErrValue, msg: "message: buffer has no native datatype"}
	ErrMalformed            error = &kindError{kind: ErrValue, msg: "message: malformed descriptor"}
)
