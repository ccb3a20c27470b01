// Package peering runs one overlay connection: its receive loop, its send
// path, its periodic ping and the per-message routing rules.
package peering

import (
    "context"
    "errors"
    "io"
    "net"
    "sync"
    "sync/atomic"
    "time"

    "go.uber.org/zap"

    "pearnet/pkg/protocol"
    "pearnet/pkg/transport"
)

// State of a connection. Transitions only move forward.
type State int32

const (
    StateConnecting State = iota
    StateOpen
    StateClosing
    StateClosed
)

func (s State) String() string {
    switch s {
    case StateConnecting:
        return "connecting"
    case StateOpen:
        return "open"
    case StateClosing:
        return "closing"
    case StateClosed:
        return "closed"
    default:
        return "unknown"
    }
}

// Info is a snapshot of one connection for status displays.
type Info struct {
    Address       string
    Advertised    string
    Kind          transport.Kind
    State         State
    Outbound      bool
    EstablishedAt time.Time
    LastSeen      time.Time
    MsgsIn        uint64
    MsgsOut       uint64
    BytesIn       uint64
    BytesOut      uint64
}

// Conn owns one session to one peer.
type Conn struct {
    addr     string
    sess     transport.Session
    env      *Env
    router   *Router
    outbound bool
    log      *zap.Logger

    state atomic.Int32

    advMu      sync.RWMutex
    advertised string

    timerMu   sync.Mutex
    pingTimer *time.Timer
    stopped   bool

    closeOnce sync.Once
    done      chan struct{}

    msgsIn, msgsOut, bytesIn, bytesOut atomic.Uint64
}

// NewConn wraps s in the Connecting state. addr is the registry key.
func NewConn(addr string, s transport.Session, env *Env, outbound bool) *Conn {
    c := &Conn{
        addr:     addr,
        sess:     s,
        env:      env,
        outbound: outbound,
        done:     make(chan struct{}),
        log:      zap.L().With(zap.String("peer", addr), zap.String("kind", s.Kind().String())),
    }
    c.router = &Router{origin: c, env: env, log: c.log}
    return c
}

func (c *Conn) Address() string { return c.addr }

// Advertised is the listen address the peer announced in its SYN, if any.
func (c *Conn) Advertised() string {
    c.advMu.RLock(); defer c.advMu.RUnlock()
    return c.advertised
}

func (c *Conn) setAdvertised(a string) {
    c.advMu.Lock(); c.advertised = a; c.advMu.Unlock()
}

func (c *Conn) State() State { return State(c.state.Load()) }

func (c *Conn) Outbound() bool { return c.outbound }

// Done is closed once the connection reaches StateClosed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// SelfAddr is the address this node advertises over this connection.
func (c *Conn) SelfAddr() string { return c.env.SelfAddr(c.sess.LocalAddr()) }

func (c *Conn) Info() Info {
    q := c.sess.Quality()
    return Info{
        Address:       c.addr,
        Advertised:    c.Advertised(),
        Kind:          c.sess.Kind(),
        State:         c.State(),
        Outbound:      c.outbound,
        EstablishedAt: q.EstablishedAt,
        LastSeen:      q.LastSeen,
        MsgsIn:        c.msgsIn.Load(),
        MsgsOut:       c.msgsOut.Load(),
        BytesIn:       c.bytesIn.Load(),
        BytesOut:      c.bytesOut.Load(),
    }
}

// Send encodes m and writes it. It is safe for concurrent use. A transport
// failure closes the connection and removes it from the registry.
func (c *Conn) Send(m *protocol.Message) error {
    if c.State() != StateOpen {
        return &SendError{Addr: c.addr, Err: ErrNotOpen}
    }
    buf, err := protocol.Encode(m)
    if err != nil { return &SendError{Addr: c.addr, Err: err} }
    if err := c.sess.SendBytes(buf); err != nil {
        if !errors.Is(err, transport.ErrFrameTooLarge) {
            c.log.Warn("send failed; closing connection", zap.Stringer("type", m.Type), zap.Error(err))
            _ = c.Close()
        }
        return &SendError{Addr: c.addr, Err: err}
    }
    c.msgsOut.Add(1)
    c.bytesOut.Add(uint64(len(buf)))
    return nil
}

// Run opens the connection, starts the ping task and blocks in the receive
// loop until the connection closes or ctx is done.
func (c *Conn) Run(ctx context.Context) {
    if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen)) { return }
    c.log.Info("connection open", zap.Bool("outbound", c.outbound), zap.String("raddr", c.sess.RemoteAddr().String()))

    stop := context.AfterFunc(ctx, func() { _ = c.Close() })
    defer stop()

    if c.outbound {
        if err := c.Send(protocol.NewSyn(c.SelfAddr(), c.env.Format)); err != nil {
            c.log.Warn("syn failed", zap.Error(err))
        }
    }
    c.schedulePing(c.env.Ping.initial())
    c.receiveLoop()
    _ = c.Close()
}

func (c *Conn) receiveLoop() {
    for {
        buf, err := c.sess.RecvBytes()
        if err != nil {
            if c.State() == StateOpen {
                if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
                    c.log.Info("peer closed connection")
                } else {
                    c.log.Warn("receive failed", zap.Error(err))
                }
            }
            return
        }
        if c.State() != StateOpen { return }
        c.msgsIn.Add(1)
        c.bytesIn.Add(uint64(len(buf)))

        m, err := protocol.Decode(buf)
        if err != nil {
            c.log.Warn("dropping malformed frame", zap.Int("bytes", len(buf)), zap.Error(err))
            continue
        }
        c.router.Route(m)
    }
}

func (c *Conn) schedulePing(d time.Duration) {
    c.timerMu.Lock(); defer c.timerMu.Unlock()
    if c.stopped { return }
    c.pingTimer = time.AfterFunc(d, c.firePing)
}

func (c *Conn) firePing() {
    if c.State() != StateOpen { return }
    m := protocol.NewPing(c.env.Ping.ttl())
    c.env.Pings.Remember(m.GUID, c.SelfAddr())
    if err := c.Send(m); err != nil {
        c.log.Debug("ping not sent", zap.Error(err))
        return
    }
    c.log.Debug("ping sent", zap.Stringer("guid", m.GUID))
    c.schedulePing(c.env.Ping.period())
}

// Close moves the connection to Closed: the ping timer is cancelled, the
// session is closed (unblocking the receive loop) and the registry entry is
// dropped. Safe to call more than once and from any goroutine.
func (c *Conn) Close() error {
    var err error
    c.closeOnce.Do(func() {
        c.state.Store(int32(StateClosing))
        c.timerMu.Lock()
        c.stopped = true
        if c.pingTimer != nil { c.pingTimer.Stop() }
        c.timerMu.Unlock()

        err = c.sess.Close()
        if c.env.Registry != nil { c.env.Registry.RemovePeer(c.addr, c) }
        c.state.Store(int32(StateClosed))
        close(c.done)
        c.log.Info("connection closed")
    })
    return err
}

// Shutdown sends a best-effort Bye before closing.
func (c *Conn) Shutdown() error {
    if c.State() == StateOpen {
        _ = c.Send(protocol.NewBye())
    }
    return c.Close()
}
