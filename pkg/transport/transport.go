package transport

import (
    "context"
    "errors"
    "net"
    "time"
)

// Kind identifies transport/link type.
type Kind int

const (
    KindUnknown Kind = iota
    KindTCP
    KindQUIC
    KindWinPipe
    KindMem
)

func (k Kind) String() string {
    switch k {
    case KindTCP:
        return "tcp"
    case KindQUIC:
        return "quic"
    case KindWinPipe:
        return "winpipe"
    case KindMem:
        return "mem"
    default:
        return "unknown"
    }
}

var (
    ErrListenerClosed = errors.New("listener closed")
    ErrFrameTooLarge  = errors.New("frame too large")
    ErrSessionClosed  = errors.New("session closed")
)

// DefaultMaxFrame bounds a single frame when Options.MaxFrame is unset.
const DefaultMaxFrame = 64 << 10

// Options tunes sessions created by a transport.
type Options struct {
    // WriteTimeout bounds a single SendBytes call; 0 disables the deadline.
    WriteTimeout time.Duration
    // MaxFrame is the largest frame RecvBytes accepts.
    MaxFrame int
    // KeepAlive period for socket transports; 0 uses the OS default.
    KeepAlive time.Duration
}

func (o Options) maxFrame() int {
    if o.MaxFrame <= 0 { return DefaultMaxFrame }
    return o.MaxFrame
}

// Quality is a point-in-time view of link activity.
type Quality struct {
    EstablishedAt time.Time
    LastSeen      time.Time
}

// Session is one bidirectional framed link to a peer.
type Session interface {
    Kind() Kind
    LocalAddr() net.Addr
    RemoteAddr() net.Addr

    // SendBytes writes one frame. Safe for concurrent callers.
    SendBytes([]byte) error
    // RecvBytes blocks for the next frame. Exactly one reader is expected.
    RecvBytes() ([]byte, error)

    Quality() Quality

    // Close closes both directions and unblocks RecvBytes.
    Close() error
}

// Listener accepts inbound sessions.
type Listener interface {
    // Accept blocks until an inbound session is available or ctx is done.
    Accept(ctx context.Context) (Session, error)
    // Addr returns the local listening address.
    Addr() net.Addr
    // Close stops the listener and unblocks Accept.
    Close() error
}

// Transport provides dialing/listening for a specific link kind.
type Transport interface {
    Kind() Kind
    // Listen starts accepting inbound sessions on address (transport-specific format).
    Listen(ctx context.Context, address string) (Listener, error)
    // Dial creates an outbound session to address.
    Dial(ctx context.Context, address string) (Session, error)
}
