package overlay

import "errors"

var (
    ErrRegistryFull     = errors.New("peer registry full")
    ErrAlreadyConnected = errors.New("already connected")
    ErrSelfConnect      = errors.New("refusing to connect to self")
    ErrNotRunning       = errors.New("service not running")
)

// BindError reports that the listen address could not be acquired.
type BindError struct {
    Addr string
    Err  error
}

func (e *BindError) Error() string { return "bind " + e.Addr + ": " + e.Err.Error() }
func (e *BindError) Unwrap() error { return e.Err }
