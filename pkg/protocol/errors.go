package protocol

import "errors"

var (
    ErrTruncated      = errors.New("truncated frame")
    ErrUnknownType    = errors.New("unknown message type")
    ErrLengthMismatch = errors.New("payload length mismatch")
    ErrEmptyBody      = errors.New("empty body")
)

// EncodeError reports a failure to serialize a typed sub-message.
type EncodeError struct {
    Type Type
    Err  error
}

func (e *EncodeError) Error() string { return "encode " + e.Type.String() + ": " + e.Err.Error() }
func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError reports a frame that could not be parsed. The frame is dropped;
// the session that carried it stays usable.
type DecodeError struct {
    Type Type
    Err  error
}

func (e *DecodeError) Error() string { return "decode " + e.Type.String() + ": " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }
