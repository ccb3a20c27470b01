package overlay

import (
    "strings"

    "pearnet/pkg/transport"
    "pearnet/pkg/transport/mem"
    tquic "pearnet/pkg/transport/quic"
    ttcp "pearnet/pkg/transport/tcp"
)

// NewTransport constructs a Transport by config kind.
func NewTransport(kind string, opts transport.Options) (transport.Transport, error) {
    switch strings.ToLower(strings.TrimSpace(kind)) {
    case "", "tcp":
        return ttcp.New(opts), nil
    case "quic":
        t, err := tquic.New(opts)
        if err != nil { return nil, err }
        return t, nil
    case "mem", "inproc":
        return mem.New(opts), nil
    case "winpipe", "pipe":
        return newWinPipeTransport(opts)
    default:
        return nil, ErrUnknownKind(kind)
    }
}

// ErrUnknownKind reports an unsupported transport kind.
type ErrUnknownKind string

func (e ErrUnknownKind) Error() string { return "unknown transport kind: " + string(e) }
