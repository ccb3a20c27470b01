package peering

import "errors"

var ErrNotOpen = errors.New("connection not open")

// SendError reports a failed send on one connection.
type SendError struct {
    Addr string
    Err  error
}

func (e *SendError) Error() string { return "send to " + e.Addr + ": " + e.Err.Error() }
func (e *SendError) Unwrap() error { return e.Err }
